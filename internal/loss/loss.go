// Package loss provides the differentiable objectives used to train the
// generator and discriminator. Every loss reduces to a scalar mean.
package loss

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/activations"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Polarity is the constant target of a binary adversarial loss.
type Polarity int

const (
	// Fake targets all-zeros: the scored samples should be judged generated.
	Fake Polarity = iota
	// Real targets all-ones: the scored samples should be judged genuine.
	Real
)

func (p Polarity) String() string {
	if p == Real {
		return "real"
	}
	return "fake"
}

func (p Polarity) target() float64 {
	if p == Real {
		return 1
	}
	return 0
}

func scalar(v float64) *tensor.Tensor {
	return tensor.MustFromSlice([]float64{v}, 1)
}

// Category computes the mean softmax cross-entropy of logits (N, K) against
// integer labels in [0, K).
func Category(logits *autograd.Var, labels []int) *autograd.Var {
	v := logits.Value
	if v.Rank() != 2 || v.Dim(0) != len(labels) {
		panic(fmt.Sprintf("loss: Category logits %v for %d labels", v, len(labels)))
	}
	n, k := v.Dim(0), v.Dim(1)
	ld := v.Data()

	// Softmax probabilities are kept for the backward pass.
	probs := make([]float64, n*k)
	var sum float64
	for i, label := range labels {
		if label < 0 || label >= k {
			panic(fmt.Sprintf("loss: label %d out of range [0, %d)", label, k))
		}
		row := ld[i*k : (i+1)*k]
		maxVal := row[0]
		for _, x := range row[1:] {
			maxVal = math.Max(maxVal, x)
		}
		var z float64
		p := probs[i*k : (i+1)*k]
		for j, x := range row {
			p[j] = math.Exp(x - maxVal)
			z += p[j]
		}
		for j := range p {
			p[j] /= z
		}
		// -log softmax(row)[label] = log z + max - row[label]
		sum += math.Log(z) + maxVal - row[label]
	}
	labels = append([]int(nil), labels...)

	return autograd.NewOp(scalar(sum/float64(n)), func(grad *tensor.Tensor) []*tensor.Tensor {
		scale := grad.Item() / float64(n)
		g := tensor.New(n, k)
		gd := g.Data()
		for i, label := range labels {
			for j := 0; j < k; j++ {
				gd[i*k+j] = probs[i*k+j] * scale
			}
			gd[i*k+label] -= scale
		}
		return []*tensor.Tensor{g}
	}, logits)
}

// Binary computes the mean binary cross-entropy of raw logits against the
// constant target given by polarity. It is evaluated in the
// log-sum-exp form max(x,0) - x*t + log(1+exp(-|x|)).
func Binary(logits *autograd.Var, polarity Polarity) *autograd.Var {
	t := polarity.target()
	ld := logits.Value.Data()
	n := len(ld)
	if n == 0 {
		panic("loss: Binary on empty logits")
	}
	var sum float64
	for _, x := range ld {
		sum += math.Max(x, 0) - x*t + math.Log1p(math.Exp(-math.Abs(x)))
	}
	shape := logits.Value.Shape()

	return autograd.NewOp(scalar(sum/float64(n)), func(grad *tensor.Tensor) []*tensor.Tensor {
		scale := grad.Item() / float64(n)
		g := tensor.New(shape...)
		gd := g.Data()
		for i, x := range ld {
			gd[i] = (activations.Sigmoid{}.Activate(x) - t) * scale
		}
		return []*tensor.Tensor{g}
	}, logits)
}

// RealBinary penalises logits for not being judged genuine.
func RealBinary(logits *autograd.Var) *autograd.Var {
	return Binary(logits, Real)
}

// FakeBinary penalises logits for not being judged generated.
func FakeBinary(logits *autograd.Var) *autograd.Var {
	return Binary(logits, Fake)
}

// L1 computes the mean absolute difference between pred and target.
func L1(pred, target *autograd.Var) *autograd.Var {
	pd, td := sameLength("L1", pred, target)
	n := len(pd)
	var sum float64
	for i := range pd {
		sum += math.Abs(pd[i] - td[i])
	}
	shape := pred.Value.Shape()

	return autograd.NewOp(scalar(sum/float64(n)), func(grad *tensor.Tensor) []*tensor.Tensor {
		scale := grad.Item() / float64(n)
		gp := tensor.New(shape...)
		gpd := gp.Data()
		for i := range pd {
			switch d := pd[i] - td[i]; {
			case d > 0:
				gpd[i] = scale
			case d < 0:
				gpd[i] = -scale
			}
		}
		gt := gp.Clone()
		gt.ScaleInPlace(-1)
		return []*tensor.Tensor{gp, gt}
	}, pred, target)
}

// MSE computes the mean squared difference between a and b.
func MSE(a, b *autograd.Var) *autograd.Var {
	ad, bd := sameLength("MSE", a, b)
	n := len(ad)
	var sum float64
	for i := range ad {
		d := ad[i] - bd[i]
		sum += d * d
	}
	shape := a.Value.Shape()

	return autograd.NewOp(scalar(sum/float64(n)), func(grad *tensor.Tensor) []*tensor.Tensor {
		scale := 2 * grad.Item() / float64(n)
		ga := tensor.New(shape...)
		gad := ga.Data()
		for i := range ad {
			gad[i] = (ad[i] - bd[i]) * scale
		}
		gb := ga.Clone()
		gb.ScaleInPlace(-1)
		return []*tensor.Tensor{ga, gb.MustReshape(b.Value.Shape()...)}
	}, a, b)
}

func sameLength(name string, a, b *autograd.Var) ([]float64, []float64) {
	ad, bd := a.Value.Data(), b.Value.Data()
	if len(ad) != len(bd) || len(ad) == 0 {
		panic(fmt.Sprintf("loss: %s of %v and %v", name, a.Value, b.Value))
	}
	return ad, bd
}
