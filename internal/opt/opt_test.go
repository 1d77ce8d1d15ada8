package opt

import (
	"math"
	"testing"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

func param(vals ...float64) *autograd.Var {
	return autograd.NewParam(tensor.MustFromSlice(vals, len(vals)))
}

// TestAdamFirstStep tests that the first bias-corrected step moves every
// weight by roughly lr against the sign of its gradient.
func TestAdamFirstStep(t *testing.T) {
	p := param(1, 2, 3)
	p.Grad = tensor.MustFromSlice([]float64{0.5, -2, 1e-3}, 3)

	a := NewAdam([]*autograd.Var{p}, 0.1)
	a.Beta1 = 0.5
	a.Step()

	expected := []float64{0.9, 2.1, 2.9}
	for i, w := range p.Value.Data() {
		if math.Abs(w-expected[i]) > 1e-4 {
			t.Errorf("param[%d] = %v, want %v", i, w, expected[i])
		}
	}
}

// TestAdamMatchesReference tests two steps against a hand-unrolled update.
func TestAdamMatchesReference(t *testing.T) {
	p := param(0.5)
	a := NewAdam([]*autograd.Var{p}, 0.01)
	a.Beta1 = 0.5

	grads := []float64{0.2, -0.4}
	w, m, v := 0.5, 0.0, 0.0
	for step, g := range grads {
		p.Grad = tensor.MustFromSlice([]float64{g}, 1)
		a.Step()

		m = 0.5*m + 0.5*g
		v = 0.999*v + 0.001*g*g
		tt := float64(step + 1)
		w -= 0.01 * (m / (1 - math.Pow(0.5, tt))) / (math.Sqrt(v/(1-math.Pow(0.999, tt))) + 1e-8)
		if got := p.Value.Item(); math.Abs(got-w) > 1e-12 {
			t.Fatalf("step %d: param = %v, want %v", step, got, w)
		}
	}
}

// TestAdamSkipsFrozenAndGradless tests that untouched params stay put.
func TestAdamSkipsFrozenAndGradless(t *testing.T) {
	frozen := param(1)
	frozen.Grad = tensor.MustFromSlice([]float64{1}, 1)
	frozen.SetRequiresGrad(false)
	noGrad := param(2)

	a := NewAdam([]*autograd.Var{frozen, noGrad}, 0.1)
	a.Step()

	if frozen.Value.Item() != 1 || noGrad.Value.Item() != 2 {
		t.Errorf("params changed: %v %v", frozen.Value.Item(), noGrad.Value.Item())
	}
	if s := a.State(); s.Steps[0] != 0 || s.Steps[1] != 0 {
		t.Errorf("step counters advanced: %v", s.Steps)
	}
}

// TestAdamZeroGrad tests gradient clearing.
func TestAdamZeroGrad(t *testing.T) {
	p := param(1)
	p.Grad = tensor.MustFromSlice([]float64{1}, 1)
	a := NewAdam([]*autograd.Var{p}, 0.1)
	a.ZeroGrad()
	if p.Grad != nil {
		t.Error("ZeroGrad left a gradient behind")
	}
}

// TestAdamStateRoundTrip tests that a restored optimizer continues exactly
// like the original.
func TestAdamStateRoundTrip(t *testing.T) {
	p1, p2 := param(1, -1), param(1, -1)
	a1 := NewAdam([]*autograd.Var{p1}, 0.05)
	a2 := NewAdam([]*autograd.Var{p2}, 0.3)

	p1.Grad = tensor.MustFromSlice([]float64{0.3, 0.1}, 2)
	a1.Step()
	p2.Value = p1.Value.Clone()

	if err := a2.SetState(a1.State()); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if a2.LearningRate() != 0.05 {
		t.Errorf("LearningRate() = %v, want 0.05", a2.LearningRate())
	}

	for _, p := range []*autograd.Var{p1, p2} {
		p.Grad = tensor.MustFromSlice([]float64{-0.2, 0.7}, 2)
	}
	a1.Step()
	a2.Step()
	if !p1.Value.Equal(p2.Value) {
		t.Errorf("diverged after restore: %v vs %v", p1.Value, p2.Value)
	}
}

// TestAdamSetStateRejectsMismatch tests error handling.
func TestAdamSetStateRejectsMismatch(t *testing.T) {
	a := NewAdam([]*autograd.Var{param(1, 2)}, 0.1)
	other := NewAdam([]*autograd.Var{param(1, 2, 3)}, 0.1)
	if err := a.SetState(other.State()); err == nil {
		t.Error("Expected error for mismatched moment length")
	}
	if err := a.SetState(AdamState{}); err == nil {
		t.Error("Expected error for empty state")
	}
}

// TestStepLR tests the halving schedule with a floor.
func TestStepLR(t *testing.T) {
	a := NewAdam(nil, 0.001)
	s := NewStepLR(a, 2, 0.5, 0.0002)

	tests := []struct {
		epoch    int
		expected float64
	}{
		{1, 0.001},
		{2, 0.0005},
		{3, 0.0005},
		{4, 0.00025},
		{6, 0.0002},
	}
	epoch := 0
	for _, tt := range tests {
		for epoch < tt.epoch {
			s.Step()
			epoch++
		}
		if got := s.GetLR(); math.Abs(got-tt.expected) > 1e-15 {
			t.Errorf("epoch %d: lr = %v, want %v", tt.epoch, got, tt.expected)
		}
	}
	if s.LastEpoch() != 6 {
		t.Errorf("LastEpoch() = %d, want 6", s.LastEpoch())
	}
}

// TestStepLRDisabled tests that a non-positive step size never decays.
func TestStepLRDisabled(t *testing.T) {
	a := NewAdam(nil, 0.01)
	s := NewStepLR(a, 0, 0.5, 0)
	for i := 0; i < 5; i++ {
		s.Step()
	}
	if s.GetLR() != 0.01 {
		t.Errorf("lr = %v, want 0.01", s.GetLR())
	}
}
