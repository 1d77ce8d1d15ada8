// Package dataset loads paired glyph images for training.
//
// Each sample is a PNG named "<label>_<anything>.png" holding two square
// glyphs side by side: the target style on the left and the source style on
// the right.
package dataset

import (
	"image"
	"image/color"
	_ "image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/logging"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/parallel"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Sample is one paired image on disk.
type Sample struct {
	Label int
	Path  string
}

// Batch holds decoded images in NCHW layout, normalised to [-1, 1].
type Batch struct {
	Labels []int
	// RealA is the source glyph, RealB the target.
	RealA, RealB *tensor.Tensor
}

// Dataset is an ordered list of samples decoded on demand.
type Dataset struct {
	samples   []Sample
	imageSize int
	channels  int
}

// Open scans dir for sample PNGs. Files whose name does not start with a
// numeric label are skipped.
func Open(dir string, imageSize, channels int) (*Dataset, error) {
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("dataset: %d channels, want 1 or 3", channels)
	}
	if imageSize < 1 {
		return nil, errors.Errorf("dataset: image size %d", imageSize)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: read directory")
	}
	d := &Dataset{imageSize: imageSize, channels: channels}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		label, ok := parseLabel(name)
		if !ok {
			logging.Logger().Warn("dataset: skipping file without label", "file", name)
			continue
		}
		d.samples = append(d.samples, Sample{Label: label, Path: filepath.Join(dir, name)})
	}
	if len(d.samples) == 0 {
		return nil, errors.Errorf("dataset: no samples in %s", dir)
	}
	sort.Slice(d.samples, func(i, j int) bool { return d.samples[i].Path < d.samples[j].Path })
	return d, nil
}

func parseLabel(name string) (int, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	label, err := strconv.Atoi(prefix)
	if err != nil || label < 0 {
		return 0, false
	}
	return label, true
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.samples) }

// Samples returns the samples in load order.
func (d *Dataset) Samples() []Sample { return d.samples }

// MaxLabel returns the largest label present.
func (d *Dataset) MaxLabel() int {
	m := 0
	for _, s := range d.samples {
		m = max(m, s.Label)
	}
	return m
}

// Batches splits a permutation of the samples into groups of batchSize.
// The last group may be shorter.
func (d *Dataset) Batches(rng *rand.Rand, batchSize int) [][]int {
	order := rng.Perm(len(d.samples))
	var out [][]int
	for start := 0; start < len(order); start += batchSize {
		out = append(out, order[start:min(start+batchSize, len(order))])
	}
	return out
}

// Batch decodes the samples at indices. Decoding runs in parallel.
func (d *Dataset) Batch(indices []int) (*Batch, error) {
	n, c, s := len(indices), d.channels, d.imageSize
	b := &Batch{
		Labels: make([]int, n),
		RealA:  tensor.New(n, c, s, s),
		RealB:  tensor.New(n, c, s, s),
	}
	per := c * s * s
	errs := make([]error, n)
	parallel.Each(n, func(i int) {
		sample := d.samples[indices[i]]
		b.Labels[i] = sample.Label
		target, source, err := d.decode(sample.Path)
		if err != nil {
			errs[i] = err
			return
		}
		copy(b.RealB.Data()[i*per:(i+1)*per], target)
		copy(b.RealA.Data()[i*per:(i+1)*per], source)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// decode splits a paired image into its target and source halves.
func (d *Dataset) decode(path string) (target, source []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataset: open sample")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dataset: decode %s", path)
	}
	r := img.Bounds()
	if r.Dx() < 2 || r.Dx()%2 != 0 {
		return nil, nil, errors.Errorf("dataset: %s is %dx%d, want an even width", path, r.Dx(), r.Dy())
	}
	half := r.Dx() / 2
	left := image.Rect(r.Min.X, r.Min.Y, r.Min.X+half, r.Max.Y)
	right := image.Rect(r.Min.X+half, r.Min.Y, r.Max.X, r.Max.Y)
	return ToCHW(img, left, d.imageSize, d.channels), ToCHW(img, right, d.imageSize, d.channels), nil
}

// ToCHW resizes the region r of img to size×size and returns it in CHW
// order scaled to [-1, 1]. One channel yields luminance.
func ToCHW(img image.Image, r image.Rectangle, size, channels int) []float64 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, r, xdraw.Src, nil)

	out := make([]float64, channels*size*size)
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			px := dst.RGBAAt(x, y)
			i := y*size + x
			if channels == 1 {
				g := color.GrayModel.Convert(px).(color.Gray)
				out[i] = normalise(g.Y)
				continue
			}
			out[i] = normalise(px.R)
			out[plane+i] = normalise(px.G)
			out[2*plane+i] = normalise(px.B)
		}
	}
	return out
}

func normalise(v uint8) float64 {
	return float64(v)/127.5 - 1
}
