package tensor

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestFromSliceShapeMismatch(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, 2, 2)
	if !errors.Is(err, ErrShape) {
		t.Fatalf("FromSlice error = %v, want ErrShape", err)
	}
}

func TestReshapeInfersDimension(t *testing.T) {
	x := New(2, 3, 4)
	r, err := x.Reshape(2, -1)
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if got := r.Shape(); !EqualShapes(got, []int{2, 12}) {
		t.Errorf("shape = %v, want [2 12]", got)
	}
	r.Data()[0] = 7
	if x.Data()[0] != 7 {
		t.Error("Reshape should share data with the source tensor")
	}
	if _, err := x.Reshape(5, -1); !errors.Is(err, ErrShape) {
		t.Errorf("Reshape(5, -1) error = %v, want ErrShape", err)
	}
}

func TestConcatChannelAxis(t *testing.T) {
	// Two samples, a has 1 channel, b has 2 channels, 1x2 spatial.
	a := MustFromSlice([]float64{1, 2, 3, 4}, 2, 1, 1, 2)
	b := MustFromSlice([]float64{5, 6, 7, 8, 9, 10, 11, 12}, 2, 2, 1, 2)

	c, err := Concat(1, a, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if !EqualShapes(c.Shape(), []int{2, 3, 1, 2}) {
		t.Fatalf("shape = %v, want [2 3 1 2]", c.Shape())
	}
	want := []float64{1, 2, 5, 6, 7, 8, 3, 4, 9, 10, 11, 12}
	for i, v := range c.Data() {
		if v != want[i] {
			t.Errorf("data[%d] = %v, want %v", i, v, want[i])
		}
	}

	parts, err := Split(c, 1, 1, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !parts[0].Equal(a) || !parts[1].Equal(b) {
		t.Error("Split did not invert Concat")
	}
}

func TestConcatRejectsMismatchedBatch(t *testing.T) {
	a := New(4, 3, 8, 8)
	b := New(5, 3, 8, 8)
	if _, err := Concat(1, a, b); !errors.Is(err, ErrShape) {
		t.Errorf("Concat error = %v, want ErrShape", err)
	}
}

func TestIsFinite(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want bool
	}{
		{"finite", []float64{0, -1, 3.5}, true},
		{"nan", []float64{0, math.NaN()}, false},
		{"inf", []float64{math.Inf(1), 0}, false},
		{"neg inf", []float64{math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := MustFromSlice(tt.data, len(tt.data))
			if got := x.IsFinite(); got != tt.want {
				t.Errorf("IsFinite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	x := MustFromSlice([]float64{1, 2, 3}, 3)
	y := MustFromSlice([]float64{1, 1, 1}, 3)
	x.AddInPlace(y)
	x.AddScaledInPlace(2, y)
	x.ScaleInPlace(0.5)
	want := []float64{2, 2.5, 3}
	for i, v := range x.Data() {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Errorf("data[%d] = %v, want %v", i, v, want[i])
		}
	}
	if got := x.Mean(); math.Abs(got-2.5) > 1e-12 {
		t.Errorf("Mean() = %v, want 2.5", got)
	}
	if got := x.Distance(New(3)); math.Abs(got-math.Sqrt(4+6.25+9)) > 1e-12 {
		t.Errorf("Distance() = %v", got)
	}
}
