package dataset

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// writePair writes a 2s×s sample with a uniform left and right half.
func writePair(t *testing.T, path string, s int, left, right color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2*s, s))
	for y := 0; y < s; y++ {
		for x := 0; x < 2*s; x++ {
			if x < s {
				img.Set(x, y, left)
			} else {
				img.Set(x, y, right)
			}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) string {
	dir := t.TempDir()
	writePair(t, filepath.Join(dir, "0_0001.png"), 20, color.White, color.Black)
	writePair(t, filepath.Join(dir, "3_0002.png"), 20, color.Black, color.White)
	writePair(t, filepath.Join(dir, "7_0003.png"), 20, color.RGBA{255, 0, 0, 255}, color.White)
	writePair(t, filepath.Join(dir, "notes_x.png"), 20, color.White, color.White)
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func approx(a, b float64) bool { return math.Abs(a-b) < 0.02 }

func TestOpen(t *testing.T) {
	d, err := Open(fixture(t), 8, 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	labels := []int{0, 3, 7}
	for i, s := range d.Samples() {
		if s.Label != labels[i] {
			t.Errorf("sample %d label = %d, want %d", i, s.Label, labels[i])
		}
	}
	if d.MaxLabel() != 7 {
		t.Errorf("MaxLabel() = %d, want 7", d.MaxLabel())
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(t.TempDir(), 8, 1); err == nil {
		t.Error("Expected error for empty directory")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing"), 8, 1); err == nil {
		t.Error("Expected error for missing directory")
	}
	if _, err := Open(t.TempDir(), 8, 2); err == nil {
		t.Error("Expected error for 2 channels")
	}
}

func TestBatchGray(t *testing.T) {
	d, err := Open(fixture(t), 8, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Batch([]int{1, 0})
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if !tensor.EqualShapes(b.RealA.Shape(), []int{2, 1, 8, 8}) || !tensor.SameShape(b.RealA, b.RealB) {
		t.Fatalf("shapes = %v / %v", b.RealA.Shape(), b.RealB.Shape())
	}
	if b.Labels[0] != 3 || b.Labels[1] != 0 {
		t.Errorf("Labels = %v, want [3 0]", b.Labels)
	}
	// Sample 3: black target on the left, white source on the right.
	if !approx(b.RealB.Data()[0], -1) || !approx(b.RealA.Data()[0], 1) {
		t.Errorf("sample 0 target %v source %v", b.RealB.Data()[0], b.RealA.Data()[0])
	}
	if !approx(b.RealB.Data()[64], 1) || !approx(b.RealA.Data()[64], -1) {
		t.Errorf("sample 1 target %v source %v", b.RealB.Data()[64], b.RealA.Data()[64])
	}
}

func TestBatchRGB(t *testing.T) {
	d, err := Open(fixture(t), 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Batch([]int{2})
	if err != nil {
		t.Fatal(err)
	}
	plane := 16
	r, g, bl := b.RealB.Data()[0], b.RealB.Data()[plane], b.RealB.Data()[2*plane]
	if !approx(r, 1) || !approx(g, -1) || !approx(bl, -1) {
		t.Errorf("red target decoded as %v %v %v", r, g, bl)
	}
}

func TestBatchRejectsOddWidth(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 5, 4))
	f, err := os.Create(filepath.Join(dir, "1_odd.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	d, err := Open(dir, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Batch([]int{0}); err == nil {
		t.Error("Expected error for odd width")
	}
}

func TestBatches(t *testing.T) {
	d, err := Open(fixture(t), 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	groups := d.Batches(rand.New(rand.NewSource(1)), 2)
	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Fatalf("groups = %v", groups)
	}
	seen := map[int]bool{}
	for _, g := range groups {
		for _, i := range g {
			seen[i] = true
		}
	}
	if len(seen) != 3 {
		t.Errorf("indices covered = %v", seen)
	}

	again := d.Batches(rand.New(rand.NewSource(1)), 2)
	for i := range groups {
		for j := range groups[i] {
			if groups[i][j] != again[i][j] {
				t.Fatal("same seed produced a different order")
			}
		}
	}
}

func TestSaveGrid(t *testing.T) {
	a := tensor.Full(-1, 2, 1, 3, 3)
	b := tensor.Full(1, 2, 1, 3, 3)
	path := filepath.Join(t.TempDir(), "sample", "grid.png")
	if err := SaveGrid(path, a, b); err != nil {
		t.Fatalf("SaveGrid() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 6 {
		t.Fatalf("grid bounds = %v", img.Bounds())
	}
	if r, _, _, _ := img.At(0, 5).RGBA(); r != 0 {
		t.Errorf("left column pixel = %d, want black", r)
	}
	if r, _, _, _ := img.At(5, 0).RGBA(); r>>8 != 255 {
		t.Errorf("right column pixel = %d, want white", r>>8)
	}
}

func TestGridRejectsMismatch(t *testing.T) {
	if _, err := Grid(tensor.New(1, 1, 2, 2), tensor.New(1, 1, 3, 3)); err == nil {
		t.Error("Expected error for mismatched columns")
	}
	if _, err := Grid(); err == nil {
		t.Error("Expected error for empty grid")
	}
}
