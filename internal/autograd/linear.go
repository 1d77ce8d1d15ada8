package autograd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Linear computes x·wᵀ + b for x (N, in), w (out, in) and b (out) or nil.
func Linear(x, w, b *Var) *Var {
	if x.Value.Rank() != 2 || w.Value.Rank() != 2 || x.Value.Dim(1) != w.Value.Dim(1) {
		panic(fmt.Sprintf("autograd: Linear input %v, weight %v", x.Value, w.Value))
	}
	n, in, outF := x.Value.Dim(0), x.Value.Dim(1), w.Value.Dim(0)

	xm := mat.NewDense(n, in, x.Value.Data())
	wm := mat.NewDense(outF, in, w.Value.Data())
	out := tensor.New(n, outF)
	om := mat.NewDense(n, outF, out.Data())
	om.Mul(xm, wm.T())
	if b != nil {
		bd := b.Value.Data()
		od := out.Data()
		for i := 0; i < n; i++ {
			row := od[i*outF : (i+1)*outF]
			for j := range row {
				row[j] += bd[j]
			}
		}
	}

	parents := []*Var{x, w}
	if b != nil {
		parents = append(parents, b)
	}
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		gm := mat.NewDense(n, outF, grad.Data())
		grads := make([]*tensor.Tensor, len(parents))
		if x.RequiresGrad() {
			gx := tensor.New(n, in)
			mat.NewDense(n, in, gx.Data()).Mul(gm, wm)
			grads[0] = gx
		}
		if w.RequiresGrad() {
			gw := tensor.New(outF, in)
			mat.NewDense(outF, in, gw.Data()).Mul(gm.T(), xm)
			grads[1] = gw
		}
		if b != nil && b.RequiresGrad() {
			gb := tensor.New(outF)
			gbd, gd := gb.Data(), grad.Data()
			for i := 0; i < n; i++ {
				for j := 0; j < outF; j++ {
					gbd[j] += gd[i*outF+j]
				}
			}
			grads[2] = gb
		}
		return grads
	}, parents...)
}

// Embedding gathers rows of table (num, dim) for each id, giving (len(ids), dim).
func Embedding(table *Var, ids []int) *Var {
	if table.Value.Rank() != 2 {
		panic(fmt.Sprintf("autograd: Embedding table %v", table.Value))
	}
	num, dim := table.Value.Dim(0), table.Value.Dim(1)
	td := table.Value.Data()
	out := tensor.New(len(ids), dim)
	od := out.Data()
	for i, id := range ids {
		if id < 0 || id >= num {
			panic(fmt.Sprintf("autograd: embedding id %d out of range [0, %d)", id, num))
		}
		copy(od[i*dim:(i+1)*dim], td[id*dim:(id+1)*dim])
	}
	ids = append([]int(nil), ids...)
	return NewOp(out, func(grad *tensor.Tensor) []*tensor.Tensor {
		gt := tensor.New(num, dim)
		gtd, gd := gt.Data(), grad.Data()
		for i, id := range ids {
			row := gtd[id*dim : (id+1)*dim]
			for j, v := range gd[i*dim : (i+1)*dim] {
				row[j] += v
			}
		}
		return []*tensor.Tensor{gt}
	}, table)
}
