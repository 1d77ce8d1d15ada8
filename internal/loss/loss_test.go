package loss

import (
	"math"
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

func param(data []float64, shape ...int) *autograd.Var {
	return autograd.NewParam(tensor.MustFromSlice(data, shape...))
}

// TestCategoryForward tests cross entropy against hand-computed values.
func TestCategoryForward(t *testing.T) {
	tests := []struct {
		name     string
		logits   []float64
		labels   []int
		expected float64
	}{
		{"Uniform", []float64{0, 0, 0, 0}, []int{2}, math.Log(4)},
		{"Confident correct", []float64{20, 0, 0}, []int{0}, 2 * math.Exp(-20)},
		{"Two samples", []float64{1, 2, 3, 1}, []int{1, 0}, 0.5 * (math.Log(math.E+math.E*math.E) - 2 + math.Log(math.Exp(3)+math.E) - 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := len(tt.logits) / len(tt.labels)
			got := Category(param(tt.logits, len(tt.labels), k), tt.labels).Value.Item()
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("Category() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestCategoryRejectsOutOfRangeLabel tests programmer-error handling.
func TestCategoryRejectsOutOfRangeLabel(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for out-of-range label")
		}
	}()
	Category(param([]float64{0, 0}, 1, 2), []int{2})
}

// TestBinaryPolarity tests that the same logits are judged differently
// depending on the target polarity.
func TestBinaryPolarity(t *testing.T) {
	logits := []float64{3, -1, 0.5}
	realLoss := RealBinary(param(logits, 3, 1)).Value.Item()
	fakeLoss := FakeBinary(param(logits, 3, 1)).Value.Item()

	var wantReal, wantFake float64
	for _, x := range logits {
		p := 1 / (1 + math.Exp(-x))
		wantReal -= math.Log(p)
		wantFake -= math.Log(1 - p)
	}
	wantReal /= 3
	wantFake /= 3

	if math.Abs(realLoss-wantReal) > 1e-9 {
		t.Errorf("RealBinary() = %v, want %v", realLoss, wantReal)
	}
	if math.Abs(fakeLoss-wantFake) > 1e-9 {
		t.Errorf("FakeBinary() = %v, want %v", fakeLoss, wantFake)
	}
	if got := Binary(param(logits, 3), Real).Value.Item(); got != realLoss {
		t.Errorf("Binary(Real) = %v, RealBinary = %v", got, realLoss)
	}
}

// TestBinaryStableForExtremeLogits tests that huge logits stay finite.
func TestBinaryStableForExtremeLogits(t *testing.T) {
	for _, x := range []float64{-1000, 1000} {
		for _, p := range []Polarity{Real, Fake} {
			v := Binary(param([]float64{x}, 1), p).Value.Item()
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("Binary(%v, %v) = %v", x, p, v)
			}
		}
	}
}

// TestLossesNonNegative tests non-negativity on random finite input.
func TestLossesNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		data := make([]float64, 12)
		for i := range data {
			data[i] = rng.NormFloat64() * 10
		}
		labels := []int{rng.Intn(4), rng.Intn(4), rng.Intn(4)}
		values := map[string]float64{
			"category": Category(param(data, 3, 4), labels).Value.Item(),
			"real":     RealBinary(param(data, 12)).Value.Item(),
			"fake":     FakeBinary(param(data, 12)).Value.Item(),
			"l1":       L1(param(data[:6], 6), param(data[6:], 6)).Value.Item(),
			"mse":      MSE(param(data[:6], 6), param(data[6:], 6)).Value.Item(),
		}
		for name, v := range values {
			if v < 0 || math.IsNaN(v) {
				t.Fatalf("trial %d: %s loss = %v", trial, name, v)
			}
		}
	}
}

// TestL1AndMSEForward tests the reconstruction losses.
func TestL1AndMSEForward(t *testing.T) {
	a := param([]float64{1, 2, 3}, 3)
	b := param([]float64{0, 2, 5}, 3)
	if got := L1(a, b).Value.Item(); math.Abs(got-1) > 1e-12 {
		t.Errorf("L1() = %v, want 1", got)
	}
	if got := MSE(a, b).Value.Item(); math.Abs(got-5.0/3) > 1e-12 {
		t.Errorf("MSE() = %v, want %v", got, 5.0/3)
	}
}

// TestLengthMismatchPanics tests error handling.
func TestLengthMismatchPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for length mismatch")
		}
	}()
	MSE(param([]float64{1, 2}, 2), param([]float64{1}, 1))
}

// TestGradients checks each loss against central differences.
func TestGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	rnd := func(n int) []float64 {
		d := make([]float64, n)
		for i := range d {
			d[i] = rng.NormFloat64()
		}
		return d
	}

	cases := map[string]struct {
		inputs []*autograd.Var
		build  func(in []*autograd.Var) *autograd.Var
	}{
		"category": {
			[]*autograd.Var{param(rnd(8), 2, 4)},
			func(in []*autograd.Var) *autograd.Var { return Category(in[0], []int{1, 3}) },
		},
		"real": {
			[]*autograd.Var{param(rnd(4), 4, 1)},
			func(in []*autograd.Var) *autograd.Var { return RealBinary(in[0]) },
		},
		"fake": {
			[]*autograd.Var{param(rnd(4), 4, 1)},
			func(in []*autograd.Var) *autograd.Var { return FakeBinary(in[0]) },
		},
		"l1": {
			[]*autograd.Var{param(rnd(5), 5), param(rnd(5), 5)},
			func(in []*autograd.Var) *autograd.Var { return L1(in[0], in[1]) },
		},
		"mse": {
			[]*autograd.Var{param(rnd(5), 5), param(rnd(5), 5)},
			func(in []*autograd.Var) *autograd.Var { return MSE(in[0], in[1]) },
		},
	}

	const h = 1e-6
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			autograd.Backward(c.build(c.inputs))
			for vi, v := range c.inputs {
				data := v.Value.Data()
				for i := range data {
					orig := data[i]
					data[i] = orig + h
					up := c.build(c.inputs).Value.Item()
					data[i] = orig - h
					down := c.build(c.inputs).Value.Item()
					data[i] = orig
					numeric := (up - down) / (2 * h)
					if got := v.Grad.Data()[i]; math.Abs(got-numeric) > 1e-5 {
						t.Errorf("input %d elem %d: analytic %v, numeric %v", vi, i, got, numeric)
					}
				}
			}
		})
	}
}
