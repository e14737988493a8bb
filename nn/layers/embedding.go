package layers

import (
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/nn/initializers"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// Embedding is a lookup table mapping integer indices to dense rows,
// built directly on the Gather/GatherBackward tensor primitives.
type Embedding struct {
	*nn.Module
	NumEmbeddings, Dim int
}

// NewEmbedding builds an Embedding table with normal(0,1)-initialized rows.
func NewEmbedding(numEmbeddings, dim int, rng *rand.Rand) (*Embedding, error) {
	m := nn.New("Embedding")
	weight, err := initializers.Normal(0, 1)(tensor.NewShape(numEmbeddings, dim), rng)
	if err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("weight", weight); err != nil {
		return nil, err
	}
	return &Embedding{Module: m, NumEmbeddings: numEmbeddings, Dim: dim}, nil
}

// Forward looks up one row per index.
func (e *Embedding) Forward(indices []int) (*graph.Node, error) {
	weight, _ := e.Parameter("weight")
	return graph.Gather(e.Context(), weight, indices)
}
