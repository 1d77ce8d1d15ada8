// Package layer provides parameterised neural network layers built on the
// autograd engine.
package layer

import (
	"math/rand"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/activations"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// InitStd is the standard deviation of the normal weight initialisation.
const InitStd = 0.02

// Layer is a differentiable module with trainable parameters.
type Layer interface {
	Forward(x *autograd.Var) *autograd.Var
	Params() []*autograd.Var
}

// normalParam draws a parameter from N(0, InitStd²).
func normalParam(rng *rand.Rand, shape ...int) *autograd.Var {
	t := tensor.New(shape...)
	d := t.Data()
	for i := range d {
		d[i] = rng.NormFloat64() * InitStd
	}
	return autograd.NewParam(t)
}

func zeroParam(shape ...int) *autograd.Var {
	return autograd.NewParam(tensor.New(shape...))
}

// Dense is a fully connected layer: y = x·Wᵀ + b.
type Dense struct {
	W, B    *autograd.Var
	inSize  int
	outSize int
}

// NewDense creates a dense layer mapping (N, in) to (N, out).
func NewDense(rng *rand.Rand, in, out int) *Dense {
	return &Dense{
		W:       normalParam(rng, out, in),
		B:       zeroParam(out),
		inSize:  in,
		outSize: out,
	}
}

// Forward flattens x to (N, in) when needed and applies the layer.
func (d *Dense) Forward(x *autograd.Var) *autograd.Var {
	if x.Value.Rank() != 2 {
		x = autograd.Flatten(x)
	}
	return autograd.Linear(x, d.W, d.B)
}

// Params returns weights then biases.
func (d *Dense) Params() []*autograd.Var {
	return []*autograd.Var{d.W, d.B}
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

// Activation adapts an element-wise activation to the Layer interface.
type Activation struct {
	Act activations.Activation
}

func (a Activation) Forward(x *autograd.Var) *autograd.Var {
	return autograd.Activate(x, a.Act)
}

func (a Activation) Params() []*autograd.Var { return nil }

// Sequential chains layers.
type Sequential []Layer

// Forward runs x through every layer in order.
func (s Sequential) Forward(x *autograd.Var) *autograd.Var {
	for _, l := range s {
		x = l.Forward(x)
	}
	return x
}

// Params concatenates the parameters of every layer.
func (s Sequential) Params() []*autograd.Var {
	var params []*autograd.Var
	for _, l := range s {
		params = append(params, l.Params()...)
	}
	return params
}
