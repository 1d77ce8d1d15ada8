package layer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/activations"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// TestDenseForwardShape tests that Dense flattens spatial input.
func TestDenseForwardShape(t *testing.T) {
	d := NewDense(rand.New(rand.NewSource(1)), 12, 5)
	out := d.Forward(autograd.Constant(tensor.New(2, 3, 2, 2)))
	if got := out.Shape(); !tensor.EqualShapes(got, []int{2, 5}) {
		t.Errorf("shape = %v, want [2 5]", got)
	}
	if len(d.Params()) != 2 {
		t.Errorf("Params() returned %d tensors, want 2", len(d.Params()))
	}
	if d.InSize() != 12 || d.OutSize() != 5 {
		t.Errorf("sizes = %d -> %d, want 12 -> 5", d.InSize(), d.OutSize())
	}
}

// TestConv2DOutputSize tests the spatial size arithmetic.
func TestConv2DOutputSize(t *testing.T) {
	tests := []struct {
		kernel, stride, pad, in, want int
	}{
		{4, 2, 1, 256, 128},
		{5, 2, 2, 256, 128},
		{5, 2, 2, 15, 8},
		{3, 1, 1, 7, 7},
	}
	rng := rand.New(rand.NewSource(1))
	for _, tt := range tests {
		c := NewConv2D(rng, 1, 1, tt.kernel, tt.stride, tt.pad)
		if got := c.OutputSize(tt.in); got != tt.want {
			t.Errorf("k%d s%d p%d: OutputSize(%d) = %d, want %d", tt.kernel, tt.stride, tt.pad, tt.in, got, tt.want)
		}
		out := c.Forward(autograd.Constant(tensor.New(1, 1, tt.in, tt.in)))
		if out.Value.Dim(2) != tt.want {
			t.Errorf("forward height = %d, want %d", out.Value.Dim(2), tt.want)
		}
	}
}

// TestConvTranspose2DDoublesResolution tests the U-Net upsampling geometry.
func TestConvTranspose2DDoublesResolution(t *testing.T) {
	c := NewConvTranspose2D(rand.New(rand.NewSource(1)), 4, 2, 4, 2, 1)
	if got := c.OutputSize(8); got != 16 {
		t.Errorf("OutputSize(8) = %d, want 16", got)
	}
	out := c.Forward(autograd.Constant(tensor.New(3, 4, 8, 8)))
	if got := out.Shape(); !tensor.EqualShapes(got, []int{3, 2, 16, 16}) {
		t.Errorf("shape = %v, want [3 2 16 16]", got)
	}
}

// TestInitIsSeeded tests that identical seeds give identical weights.
func TestInitIsSeeded(t *testing.T) {
	a := NewConv2D(rand.New(rand.NewSource(42)), 3, 8, 4, 2, 1)
	b := NewConv2D(rand.New(rand.NewSource(42)), 3, 8, 4, 2, 1)
	if !a.W.Value.Equal(b.W.Value) {
		t.Error("same seed produced different weights")
	}
	var sq float64
	for _, v := range a.W.Value.Data() {
		sq += v * v
	}
	std := math.Sqrt(sq / float64(a.W.Value.Len()))
	if std < InitStd/2 || std > InitStd*2 {
		t.Errorf("weight std = %v, want about %v", std, InitStd)
	}
	for _, v := range a.B.Value.Data() {
		if v != 0 {
			t.Fatal("biases should start at zero")
		}
	}
}

// TestEmbeddingLookup tests row gathering.
func TestEmbeddingLookup(t *testing.T) {
	e := NewEmbedding(rand.New(rand.NewSource(3)), 5, 4)
	out := e.Lookup([]int{4, 0, 4})
	if got := out.Shape(); !tensor.EqualShapes(got, []int{3, 4}) {
		t.Fatalf("shape = %v, want [3 4]", got)
	}
	table := e.Table.Value.Data()
	for j := 0; j < 4; j++ {
		if out.Value.Data()[j] != table[16+j] || out.Value.Data()[8+j] != table[16+j] {
			t.Fatalf("row mismatch at column %d", j)
		}
	}
}

// TestSequentialCollectsParams tests parameter aggregation.
func TestSequentialCollectsParams(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := Sequential{
		NewConv2D(rng, 1, 2, 3, 1, 1),
		Activation{Act: activations.NewLeakyReLU(0.2)},
		NewDense(rng, 2*4*4, 3),
	}
	if got := len(s.Params()); got != 4 {
		t.Errorf("len(Params()) = %d, want 4", got)
	}
	out := s.Forward(autograd.Constant(tensor.New(2, 1, 4, 4)))
	if got := out.Shape(); !tensor.EqualShapes(got, []int{2, 3}) {
		t.Errorf("shape = %v, want [2 3]", got)
	}
}

// TestCPUDevice tests device reporting.
func TestCPUDevice(t *testing.T) {
	d := GetDefaultDevice()
	if d.Type() != CPU || !d.IsAvailable() {
		t.Fatalf("default device = %v, available %v", d.Type(), d.IsAvailable())
	}
	if d.Workers() < 1 {
		t.Errorf("Workers() = %d, want >= 1", d.Workers())
	}
	if d.Name() == "" {
		t.Error("Name() should not be empty")
	}
}
