package model

import (
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/tensor"
)

// Report holds the diagnostics of one completed step.
type Report struct {
	Step int64

	DLoss float64
	GLoss float64

	// Generator terms, unweighted.
	CheatLoss    float64
	L1Loss       float64
	ConstLoss    float64
	CategoryLoss float64

	// Discriminator terms, unweighted.
	DRealBinaryLoss   float64
	DFakeBinaryLoss   float64
	DRealCategoryLoss float64
	DFakeCategoryLoss float64

	// RealD and FakeD are per-sample realism probabilities.
	RealD []float64
	FakeD []float64

	FakeB *tensor.Tensor
}

// MeanRealD returns the batch mean of RealD.
func (r Report) MeanRealD() float64 { return mean(r.RealD) }

// MeanFakeD returns the batch mean of FakeD.
func (r Report) MeanFakeD() float64 { return mean(r.FakeD) }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
