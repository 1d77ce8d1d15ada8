package layer

import (
	"math/rand"

	"github.com/FlavioCFOliveira/GoZi2Zi/internal/autograd"
)

// Embedding maps integer indices to dense embedding vectors.
// Table shape: [numEmbeddings, embeddingDim]
type Embedding struct {
	Table *autograd.Var

	embeddingDim int
}

// NewEmbedding creates a new embedding layer with N(0, 1) entries.
func NewEmbedding(rng *rand.Rand, numEmbeddings, embeddingDim int) *Embedding {
	e := &Embedding{
		Table:        zeroParam(numEmbeddings, embeddingDim),
		embeddingDim: embeddingDim,
	}
	d := e.Table.Value.Data()
	for i := range d {
		d[i] = rng.NormFloat64()
	}
	return e
}

// Lookup returns the (len(ids), embeddingDim) rows for ids.
func (e *Embedding) Lookup(ids []int) *autograd.Var {
	return autograd.Embedding(e.Table, ids)
}

// Params returns the embedding table.
func (e *Embedding) Params() []*autograd.Var {
	return []*autograd.Var{e.Table}
}

// EmbeddingDim returns the vector size.
func (e *Embedding) EmbeddingDim() int {
	return e.embeddingDim
}
