package model

import (
	"math"

	"github.com/pkg/errors"
)

// Options are the architecture and optimisation hyper-parameters.
type Options struct {
	InputNC      int
	EmbeddingNum int
	EmbeddingDim int
	NGF          int
	NDF          int
	ImageSize    int

	LconstPenalty    float64
	LcategoryPenalty float64
	L1Penalty        float64
	LR               float64

	// Seed drives weight initialisation of the reference networks.
	Seed int64
}

// DefaultOptions returns the reference zi2zi hyper-parameters.
func DefaultOptions() Options {
	return Options{
		InputNC:          3,
		EmbeddingNum:     40,
		EmbeddingDim:     128,
		NGF:              64,
		NDF:              64,
		ImageSize:        256,
		LconstPenalty:    15,
		LcategoryPenalty: 1,
		L1Penalty:        100,
		LR:               0.001,
	}
}

// Validate checks the options that the orchestrator itself relies on.
func (o Options) Validate() error {
	switch {
	case o.InputNC < 1:
		return errors.Errorf("model: input_nc %d < 1", o.InputNC)
	case o.EmbeddingNum < 1:
		return errors.Errorf("model: embedding_num %d < 1", o.EmbeddingNum)
	case o.ImageSize < 1:
		return errors.Errorf("model: image_size %d < 1", o.ImageSize)
	case !validLR(o.LR):
		return errors.Errorf("model: learning rate %v must be positive and finite", o.LR)
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"L1_penalty", o.L1Penalty},
		{"Lcategory_penalty", o.LcategoryPenalty},
		{"Lconst_penalty", o.LconstPenalty},
	} {
		if p.value < 0 || math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return errors.Errorf("model: %s %v must be non-negative and finite", p.name, p.value)
		}
	}
	return nil
}

func validLR(lr float64) bool {
	return lr > 0 && !math.IsInf(lr, 1)
}
