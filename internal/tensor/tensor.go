// Package tensor provides dense float64 tensors in row-major (NCHW) layout.
package tensor

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrShape is returned when tensor shapes are incompatible.
var ErrShape = errors.New("tensor: shape mismatch")

// Tensor is a dense multi-dimensional array.
// Data is stored contiguously; the element at index (i0, i1, ..., ik)
// lives at data[((i0*d1+i1)*d2+i2)...].
type Tensor struct {
	shape []int
	data  []float64
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	n := numElements(shape)
	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  make([]float64, n),
	}
}

// FromSlice wraps data in a tensor of the given shape. The slice is not copied.
func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	if n := numElements(shape); n != len(data) {
		return nil, errors.Wrapf(ErrShape, "shape %v holds %d elements, data has %d", shape, n, len(data))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}, nil
}

// MustFromSlice is like FromSlice but panics on a shape error.
func MustFromSlice(data []float64, shape ...int) *Tensor {
	t, err := FromSlice(data, shape...)
	if err != nil {
		panic(err)
	}
	return t
}

// Full returns a tensor of the given shape with every element set to v.
func Full(v float64, shape ...int) *Tensor {
	t := New(shape...)
	t.Fill(v)
	return t
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in shape %v", shape))
		}
		n *= d
	}
	return n
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Dim returns the size of axis i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the backing slice. Mutations are visible to the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape: append([]int(nil), t.shape...),
		data:  append([]float64(nil), t.data...),
	}
}

// Reshape returns a view sharing t's data with a new shape.
// One dimension may be -1 and is inferred.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	shape = append([]int(nil), shape...)
	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				return nil, errors.Wrapf(ErrShape, "reshape %v: more than one inferred dimension", shape)
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			return nil, errors.Wrapf(ErrShape, "reshape %v of %v", shape, t.shape)
		}
		shape[infer] = len(t.data) / known
	}
	if numElements(shape) != len(t.data) {
		return nil, errors.Wrapf(ErrShape, "reshape %v of %v", shape, t.shape)
	}
	return &Tensor{shape: shape, data: t.data}, nil
}

// MustReshape is like Reshape but panics on error.
func (t *Tensor) MustReshape(shape ...int) *Tensor {
	r, err := t.Reshape(shape...)
	if err != nil {
		panic(err)
	}
	return r
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Zero sets every element to 0.
func (t *Tensor) Zero() {
	clear(t.data)
}

// AddInPlace adds o element-wise into t.
func (t *Tensor) AddInPlace(o *Tensor) {
	if len(t.data) != len(o.data) {
		panic(fmt.Sprintf("tensor: AddInPlace %v + %v", t.shape, o.shape))
	}
	floats.Add(t.data, o.data)
}

// AddScaledInPlace performs t += alpha * o.
func (t *Tensor) AddScaledInPlace(alpha float64, o *Tensor) {
	if len(t.data) != len(o.data) {
		panic(fmt.Sprintf("tensor: AddScaledInPlace %v + %v", t.shape, o.shape))
	}
	floats.AddScaled(t.data, alpha, o.data)
}

// ScaleInPlace multiplies every element by c.
func (t *Tensor) ScaleInPlace(c float64) {
	floats.Scale(c, t.data)
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float64 {
	if len(t.data) == 0 {
		return 0
	}
	return floats.Sum(t.data) / float64(len(t.data))
}

// Item returns the single element of a one-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on shape %v", t.shape))
	}
	return t.data[0]
}

// IsFinite reports whether every element is neither NaN nor ±Inf.
func (t *Tensor) IsFinite() bool {
	if floats.HasNaN(t.data) {
		return false
	}
	for _, v := range t.data {
		if math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Distance returns the L2 distance between t and o.
func (t *Tensor) Distance(o *Tensor) float64 {
	return floats.Distance(t.data, o.data, 2)
}

// Equal reports whether t and o have the same shape and identical elements.
func (t *Tensor) Equal(o *Tensor) bool {
	return SameShape(t, o) && floats.Equal(t.data, o.data)
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	return EqualShapes(a.shape, b.shape)
}

// EqualShapes compares two shapes.
func EqualShapes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer with the shape only; data can be large.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
