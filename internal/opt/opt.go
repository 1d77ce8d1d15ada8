// Package opt provides optimization algorithms.
package opt

import (
	"math"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/parallel"
)

// Optimizer updates a fixed set of parameters from their accumulated
// gradients.
type Optimizer interface {
	// Params returns the parameters owned by the optimizer.
	Params() []*autograd.Var

	// ZeroGrad clears the gradient of every owned parameter.
	ZeroGrad()

	// Step applies one update. Parameters without a gradient, or with
	// gradient tracking disabled, are left untouched.
	Step()

	LearningRate() float64
	SetLearningRate(lr float64)
}

// Adam implements the Adam optimizer with bias-corrected moments kept per
// parameter.
type Adam struct {
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	lr     float64
	params []*autograd.Var
	m, v   [][]float64
	steps  []int64
}

// NewAdam creates an Adam optimizer over params with default betas.
func NewAdam(params []*autograd.Var, learningRate float64) *Adam {
	a := &Adam{
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		lr:      learningRate,
		params:  params,
		m:       make([][]float64, len(params)),
		v:       make([][]float64, len(params)),
		steps:   make([]int64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, p.Value.Len())
		a.v[i] = make([]float64, p.Value.Len())
	}
	return a
}

func (a *Adam) Params() []*autograd.Var { return a.params }

func (a *Adam) LearningRate() float64 { return a.lr }

func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

func (a *Adam) Step() {
	parallel.Each(len(a.params), func(i int) {
		p := a.params[i]
		if p.Grad == nil || !p.RequiresGrad() {
			return
		}
		a.steps[i]++
		t := float64(a.steps[i])
		c1 := 1 - math.Pow(a.Beta1, t)
		c2 := 1 - math.Pow(a.Beta2, t)

		w, g := p.Value.Data(), p.Grad.Data()
		m, v := a.m[i], a.v[i]
		for j := range w {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g[j]
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g[j]*g[j]
			w[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.Epsilon)
		}
	})
}

// AdamState is a snapshot of an Adam optimizer, aligned with its Params.
type AdamState struct {
	LearningRate float64
	Steps        []int64
	M, V         [][]float64
}

// State returns a deep copy of the optimizer state.
func (a *Adam) State() AdamState {
	s := AdamState{
		LearningRate: a.lr,
		Steps:        append([]int64(nil), a.steps...),
		M:            make([][]float64, len(a.m)),
		V:            make([][]float64, len(a.v)),
	}
	for i := range a.m {
		s.M[i] = append([]float64(nil), a.m[i]...)
		s.V[i] = append([]float64(nil), a.v[i]...)
	}
	return s
}

// SetState restores a snapshot taken from an optimizer over parameters of
// the same shapes.
func (a *Adam) SetState(s AdamState) error {
	if len(s.Steps) != len(a.params) || len(s.M) != len(a.params) || len(s.V) != len(a.params) {
		return errors.Errorf("opt: state for %d params, optimizer has %d", len(s.Steps), len(a.params))
	}
	for i, p := range a.params {
		if len(s.M[i]) != p.Value.Len() || len(s.V[i]) != p.Value.Len() {
			return errors.Errorf("opt: state moment %d has %d values, param has %d", i, len(s.M[i]), p.Value.Len())
		}
	}
	a.lr = s.LearningRate
	copy(a.steps, s.Steps)
	for i := range a.params {
		copy(a.m[i], s.M[i])
		copy(a.v[i], s.V[i])
	}
	return nil
}
