// Package autograd implements reverse-mode automatic differentiation over
// tensor.Tensor values.
//
// A computation is recorded as a graph of Vars while it runs. Leaves are
// parameters (trainable or frozen) and constants; every other Var is the
// result of an op and remembers how to push its gradient back to its
// parents. Ops whose parents all have gradient tracking disabled record
// nothing, so frozen sub-graphs cost only their forward computation.
package autograd

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// BackwardFunc maps the gradient of an op's output to one gradient per
// parent, in parent order. A nil entry means "no contribution".
type BackwardFunc func(grad *tensor.Tensor) []*tensor.Tensor

// Var is a node of the computation graph.
type Var struct {
	// Value is the forward result.
	Value *tensor.Tensor
	// Grad accumulates d(root)/d(Value) during Backward. Leaves keep it
	// until ZeroGrad; intermediate nodes release it once consumed.
	Grad *tensor.Tensor

	requiresGrad bool
	leaf         bool
	parents      []*Var
	backward     BackwardFunc
}

// NewParam returns a trainable leaf holding value.
func NewParam(value *tensor.Tensor) *Var {
	return &Var{Value: value, requiresGrad: true, leaf: true}
}

// Constant returns a leaf that never receives gradients.
func Constant(value *tensor.Tensor) *Var {
	return &Var{Value: value, leaf: true}
}

// NewOp records the result of an op. If none of the parents requires a
// gradient the result is a plain constant and backward is dropped.
func NewOp(value *tensor.Tensor, backward BackwardFunc, parents ...*Var) *Var {
	track := false
	for _, p := range parents {
		if p.requiresGrad {
			track = true
			break
		}
	}
	if !track {
		return &Var{Value: value}
	}
	return &Var{
		Value:        value,
		requiresGrad: true,
		parents:      parents,
		backward:     backward,
	}
}

// RequiresGrad reports whether gradients flow into v.
func (v *Var) RequiresGrad() bool {
	return v.requiresGrad
}

// SetRequiresGrad enables or disables gradient tracking on a leaf.
// Graphs recorded afterwards honour the new setting; graphs recorded
// before keep the setting they were built with.
func (v *Var) SetRequiresGrad(on bool) {
	if !v.leaf {
		panic("autograd: SetRequiresGrad on a non-leaf Var")
	}
	v.requiresGrad = on
}

// IsLeaf reports whether v was created by NewParam or Constant.
func (v *Var) IsLeaf() bool {
	return v.leaf
}

// ZeroGrad drops the accumulated gradient.
func (v *Var) ZeroGrad() {
	v.Grad = nil
}

// Shape is shorthand for v.Value.Shape().
func (v *Var) Shape() []int {
	return v.Value.Shape()
}

// Detach returns a constant sharing v's value.
func Detach(v *Var) *Var {
	return &Var{Value: v.Value}
}

// Backward propagates gradients from the scalar root to every Var that
// requires them. Leaf gradients accumulate across calls.
func Backward(root *Var) {
	if root.Value.Len() != 1 {
		panic(fmt.Sprintf("autograd: Backward on non-scalar %v", root.Value))
	}
	if !root.requiresGrad {
		return
	}

	order := topoSort(root)
	root.Grad = tensor.Full(1, root.Value.Shape()...)
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		if v.backward == nil || v.Grad == nil {
			continue
		}
		grads := v.backward(v.Grad)
		for j, p := range v.parents {
			if j >= len(grads) || grads[j] == nil || !p.requiresGrad {
				continue
			}
			accumulate(p, grads[j])
		}
		if !v.leaf {
			v.Grad = nil
		}
	}
}

func accumulate(v *Var, g *tensor.Tensor) {
	if g.Len() != v.Value.Len() {
		panic(fmt.Sprintf("autograd: gradient %v for value %v", g, v.Value))
	}
	if v.Grad == nil {
		v.Grad = tensor.New(v.Value.Shape()...)
	}
	v.Grad.AddInPlace(g)
}

// topoSort returns the tracked nodes reachable from root so that every
// node appears after all of its parents.
func topoSort(root *Var) []*Var {
	var order []*Var
	visited := make(map[*Var]bool)
	type frame struct {
		v    *Var
		next int
	}
	stack := []frame{{v: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.v.parents) {
			p := top.v.parents[top.next]
			top.next++
			if p.requiresGrad && !visited[p] {
				visited[p] = true
				stack = append(stack, frame{v: p})
			}
			continue
		}
		order = append(order, top.v)
		stack = stack[:len(stack)-1]
	}
	return order
}
