package activations

import (
	"math"
	"testing"
)

// TestActivate checks forward values for every activation.
func TestActivate(t *testing.T) {
	tests := []struct {
		name     string
		act      Activation
		input    float64
		expected float64
	}{
		{"ReLU negative", ReLU{}, -1, 0},
		{"ReLU positive", ReLU{}, 2.5, 2.5},
		{"LeakyReLU negative", NewLeakyReLU(0.2), -2, -0.4},
		{"LeakyReLU positive", NewLeakyReLU(0.2), 3, 3},
		{"Sigmoid zero", Sigmoid{}, 0, 0.5},
		{"Sigmoid large negative", Sigmoid{}, -800, 0},
		{"Sigmoid large positive", Sigmoid{}, 800, 1},
		{"Tanh zero", Tanh{}, 0, 0},
		{"Tanh one", Tanh{}, 1, math.Tanh(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.act.Activate(tt.input)
			if math.IsNaN(got) || math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Activate(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestDerivativeMatchesFiniteDifference compares analytic derivatives with
// central differences away from the kinks.
func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	acts := map[string]Activation{
		"ReLU":      ReLU{},
		"LeakyReLU": NewLeakyReLU(0.2),
		"Sigmoid":   Sigmoid{},
		"Tanh":      Tanh{},
	}
	const h = 1e-6
	for name, act := range acts {
		for _, x := range []float64{-2.3, -0.7, 0.4, 1.9} {
			numeric := (act.Activate(x+h) - act.Activate(x-h)) / (2 * h)
			if got := act.Derivative(x); math.Abs(got-numeric) > 1e-5 {
				t.Errorf("%s.Derivative(%v) = %v, numeric %v", name, x, got, numeric)
			}
		}
	}
}
