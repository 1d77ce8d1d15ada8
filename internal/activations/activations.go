// Package activations holds the element-wise non-linearities used by the
// generator and discriminator, each paired with its derivative so that
// autograd.Activate can back-propagate through it.
package activations

import "math"

// Activation maps a pre-activation value and gives the slope at that value.
// Derivative takes the input x, not the output, because autograd keeps the
// input of every Activate op.
type Activation interface {
	Activate(x float64) float64
	Derivative(x float64) float64
}

// ReLU opens each decoder block of the U-Net generator.
type ReLU struct{}

func (ReLU) Activate(x float64) float64 {
	return max(x, 0)
}

func (ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Sigmoid turns realism logits into the probabilities reported as real_d
// and fake_d, and backs the binary adversarial loss.
type Sigmoid struct{}

func (Sigmoid) Activate(x float64) float64 {
	// Pick the form whose exp argument is non-positive.
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func (s Sigmoid) Derivative(x float64) float64 {
	p := s.Activate(x)
	return p * (1 - p)
}

// LeakyReLU follows every encoder and discriminator convolution; both
// networks use a slope of 0.2.
type LeakyReLU struct {
	Alpha float64
}

func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

func (l *LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

func (l *LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

// Tanh bounds generated glyphs to the [-1, 1] range of normalised images.
type Tanh struct{}

func (Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

func (Tanh) Derivative(x float64) float64 {
	y := math.Tanh(x)
	return 1 - y*y
}
