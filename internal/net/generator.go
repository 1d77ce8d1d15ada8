package net

import (
	"math/bits"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/activations"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
	"github.com/FlavioCFOliveira/GoZi2Zi/internal/layer"
)

// GeneratorConfig sizes a UNetGenerator.
type GeneratorConfig struct {
	InputNC      int
	EmbeddingNum int
	EmbeddingDim int
	NGF          int
	ImageSize    int
}

// UNetGenerator is an encoder/decoder with skip connections. The style
// embedding of each sample's label is tiled over the bottleneck and
// concatenated to it before decoding.
type UNetGenerator struct {
	downs     []*layer.Conv2D
	ups       []*layer.ConvTranspose2D
	embedding *layer.Embedding
	leaky     activations.Activation
	imageSize int
	inputNC   int
}

// NewUNetGenerator builds a generator with log2(ImageSize) down blocks, so
// the bottleneck is 1×1.
func NewUNetGenerator(rng *rand.Rand, cfg GeneratorConfig) (*UNetGenerator, error) {
	if cfg.ImageSize < 2 || bits.OnesCount(uint(cfg.ImageSize)) != 1 {
		return nil, errors.Errorf("net: generator image size %d is not a power of two", cfg.ImageSize)
	}
	if cfg.InputNC < 1 || cfg.NGF < 1 || cfg.EmbeddingNum < 1 || cfg.EmbeddingDim < 1 {
		return nil, errors.Errorf("net: invalid generator config %+v", cfg)
	}
	depth := bits.Len(uint(cfg.ImageSize)) - 1

	width := func(i int) int {
		return cfg.NGF * min(1<<i, 8)
	}

	g := &UNetGenerator{
		downs:     make([]*layer.Conv2D, depth),
		ups:       make([]*layer.ConvTranspose2D, depth),
		embedding: layer.NewEmbedding(rng, cfg.EmbeddingNum, cfg.EmbeddingDim),
		leaky:     activations.NewLeakyReLU(0.2),
		imageSize: cfg.ImageSize,
		inputNC:   cfg.InputNC,
	}
	in := cfg.InputNC
	for i := range g.downs {
		g.downs[i] = layer.NewConv2D(rng, in, width(i), 4, 2, 1)
		in = width(i)
	}
	for j := depth - 1; j >= 0; j-- {
		upIn := 2 * width(j)
		if j == depth-1 {
			upIn = width(j) + cfg.EmbeddingDim
		}
		upOut := cfg.InputNC
		if j > 0 {
			upOut = width(j - 1)
		}
		g.ups[j] = layer.NewConvTranspose2D(rng, upIn, upOut, 4, 2, 1)
	}
	return g, nil
}

// encode returns the activation of every down block.
func (g *UNetGenerator) encode(x *autograd.Var) []*autograd.Var {
	feats := make([]*autograd.Var, len(g.downs))
	h := x
	for i, conv := range g.downs {
		if i > 0 {
			h = autograd.Activate(h, g.leaky)
		}
		h = conv.Forward(h)
		feats[i] = h
	}
	return feats
}

// Encode returns the flattened bottleneck of images, shape (N, -1).
func (g *UNetGenerator) Encode(images *autograd.Var) *autograd.Var {
	feats := g.encode(images)
	return autograd.Flatten(feats[len(feats)-1])
}

// Generate translates source images into the style selected by labels. It
// returns the generated images and the flattened source encoding.
func (g *UNetGenerator) Generate(labels []int, source *autograd.Var) (generated, encoding *autograd.Var) {
	feats := g.encode(source)
	bottleneck := feats[len(feats)-1]
	encoding = autograd.Flatten(bottleneck)

	style := autograd.Tile(g.embedding.Lookup(labels), bottleneck.Value.Dim(2), bottleneck.Value.Dim(3))
	h := autograd.Concat(1, bottleneck, style)
	for j := len(g.ups) - 1; j >= 0; j-- {
		h = autograd.Activate(h, activations.ReLU{})
		h = g.ups[j].Forward(h)
		if j > 0 {
			h = autograd.Concat(1, h, feats[j-1])
		}
	}
	return autograd.Activate(h, activations.Tanh{}), encoding
}

// Parameters returns down, up and embedding parameters in a fixed order.
func (g *UNetGenerator) Parameters() []*autograd.Var {
	layers := make([]paramOwner, 0, len(g.downs)+len(g.ups)+1)
	for _, d := range g.downs {
		layers = append(layers, d)
	}
	for _, u := range g.ups {
		layers = append(layers, u)
	}
	layers = append(layers, g.embedding)
	return collect(layers...)
}

// Depth returns the number of down blocks.
func (g *UNetGenerator) Depth() int { return len(g.downs) }
