package autograd

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/activations"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/parallel"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Add sums vars of identical shape.
func Add(vs ...*Var) *Var {
	if len(vs) == 0 {
		panic("autograd: Add of no operands")
	}
	out := vs[0].Value.Clone()
	for _, v := range vs[1:] {
		if !tensor.SameShape(out, v.Value) {
			panic(fmt.Sprintf("autograd: Add %v + %v", out, v.Value))
		}
		out.AddInPlace(v.Value)
	}
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		grads := make([]*tensor.Tensor, len(vs))
		for i := range vs {
			grads[i] = grad
		}
		return grads
	}, vs...)
}

// Scale multiplies x by the constant c.
func Scale(x *Var, c float64) *Var {
	out := x.Value.Clone()
	out.ScaleInPlace(c)
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		g := grad.Clone()
		g.ScaleInPlace(c)
		return []*tensor.Tensor{g}
	}, x)
}

// Reshape returns x viewed with a new shape; -1 infers one dimension.
func Reshape(x *Var, shape ...int) *Var {
	out := x.Value.MustReshape(shape...)
	inShape := x.Value.Shape()
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		return []*tensor.Tensor{grad.MustReshape(inShape...)}
	}, x)
}

// Flatten reshapes x to (N, -1).
func Flatten(x *Var) *Var {
	return Reshape(x, x.Value.Dim(0), -1)
}

// Concat joins vars along axis. It panics on incompatible shapes; callers
// validate user-supplied shapes beforehand.
func Concat(axis int, vs ...*Var) *Var {
	values := make([]*tensor.Tensor, len(vs))
	sizes := make([]int, len(vs))
	for i, v := range vs {
		values[i] = v.Value
		sizes[i] = v.Value.Dim(axis)
	}
	out, err := tensor.Concat(axis, values...)
	if err != nil {
		panic(err)
	}
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		parts, err := tensor.Split(grad, axis, sizes...)
		if err != nil {
			panic(err)
		}
		return parts
	}, vs...)
}

// Activate applies act element-wise.
func Activate(x *Var, act activations.Activation) *Var {
	in := x.Value.Data()
	out := tensor.New(x.Value.Shape()...)
	od := out.Data()
	for i, v := range in {
		od[i] = act.Activate(v)
	}
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		g := tensor.New(grad.Shape()...)
		gd, up := g.Data(), grad.Data()
		for i, v := range in {
			gd[i] = up[i] * act.Derivative(v)
		}
		return []*tensor.Tensor{g}
	}, x)
}

// Tile broadcasts a (N, C) var over an h×w grid, giving (N, C, h, w).
func Tile(x *Var, h, w int) *Var {
	if x.Value.Rank() != 2 {
		panic(fmt.Sprintf("autograd: Tile expects (N, C), got %v", x.Value))
	}
	n, c := x.Value.Dim(0), x.Value.Dim(1)
	hw := h * w
	in := x.Value.Data()
	out := tensor.New(n, c, h, w)
	od := out.Data()
	for i := 0; i < n*c; i++ {
		v := in[i]
		row := od[i*hw : (i+1)*hw]
		for j := range row {
			row[j] = v
		}
	}
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		g := tensor.New(n, c)
		gd, up := g.Data(), grad.Data()
		parallel.Each(n*c, func(i int) {
			s := 0.0
			for _, v := range up[i*hw : (i+1)*hw] {
				s += v
			}
			gd[i] = s
		})
		return []*tensor.Tensor{g}
	}, x)
}

// Sum reduces x to a scalar of shape (1).
func Sum(x *Var) *Var {
	shape := x.Value.Shape()
	return NewOp(tensor.MustFromSlice([]float64{x.Value.Sum()}, 1), func(grad *tensor.Tensor) []*tensor.Tensor {
		return []*tensor.Tensor{tensor.Full(grad.Item(), shape...)}
	}, x)
}
