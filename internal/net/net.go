// Package net provides the generator and discriminator networks and the
// helpers shared by anything that owns a set of parameters.
package net

import (
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
)

// Network is anything that owns trainable parameters.
type Network interface {
	Parameters() []*autograd.Var
}

// SetTrainable enables or disables gradient tracking on every parameter of
// every network passed. Nil networks are skipped.
func SetTrainable(trainable bool, nets ...Network) {
	for _, n := range nets {
		if n == nil {
			continue
		}
		for _, p := range n.Parameters() {
			p.SetRequiresGrad(trainable)
		}
	}
}

// IsTrainable reports whether every parameter of n tracks gradients.
func IsTrainable(n Network) bool {
	for _, p := range n.Parameters() {
		if !p.RequiresGrad() {
			return false
		}
	}
	return true
}

// CountParams returns the number of scalar parameters of n.
func CountParams(n Network) int {
	total := 0
	for _, p := range n.Parameters() {
		total += p.Value.Len()
	}
	return total
}

type paramOwner interface {
	Params() []*autograd.Var
}

func collect(owners ...paramOwner) []*autograd.Var {
	var params []*autograd.Var
	for _, o := range owners {
		params = append(params, o.Params()...)
	}
	return params
}
