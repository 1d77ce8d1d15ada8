package net

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/activations"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/layer"
)

// DiscriminatorConfig sizes a Discriminator.
type DiscriminatorConfig struct {
	InputNC      int
	EmbeddingNum int
	NDF          int
	ImageSize    int
}

// Discriminator scores channel-concatenated (source, target) pairs for
// realism and predicts their style category.
type Discriminator struct {
	trunk    layer.Sequential
	realism  *layer.Dense
	category *layer.Dense
}

// NewDiscriminator builds four stride-2 5×5 conv blocks followed by a
// realism head and a category head.
func NewDiscriminator(rng *rand.Rand, cfg DiscriminatorConfig) (*Discriminator, error) {
	if cfg.ImageSize < 16 || cfg.ImageSize%16 != 0 {
		return nil, errors.Errorf("net: discriminator image size %d must be a positive multiple of 16", cfg.ImageSize)
	}
	if cfg.InputNC < 1 || cfg.NDF < 1 || cfg.EmbeddingNum < 1 {
		return nil, errors.Errorf("net: invalid discriminator config %+v", cfg)
	}

	d := &Discriminator{}
	leaky := layer.Activation{Act: activations.NewLeakyReLU(0.2)}
	in := 2 * cfg.InputNC
	for _, mult := range []int{1, 2, 4, 8} {
		conv := layer.NewConv2D(rng, in, cfg.NDF*mult, 5, 2, 2)
		d.trunk = append(d.trunk, conv, leaky)
		in = conv.OutChannels()
	}
	side := cfg.ImageSize / 16
	features := in * side * side
	d.realism = layer.NewDense(rng, features, 1)
	d.category = layer.NewDense(rng, features, cfg.EmbeddingNum)
	return d, nil
}

// Score returns realism logits (N, 1) and category logits (N, embedding_num).
func (d *Discriminator) Score(pairs *autograd.Var) (logit, categoryLogits *autograd.Var) {
	h := autograd.Flatten(d.trunk.Forward(pairs))
	return d.realism.Forward(h), d.category.Forward(h)
}

// Parameters returns conv then head parameters in a fixed order.
func (d *Discriminator) Parameters() []*autograd.Var {
	return collect(d.trunk, d.realism, d.category)
}
