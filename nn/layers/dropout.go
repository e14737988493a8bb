package layers

import (
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// Dropout zeroes each element independently with probability P during
// training, scaling survivors by 1/(1-P) (inverted dropout) so eval mode
// needs no rescaling. In eval mode, Forward is the identity.
type Dropout struct {
	*nn.Module
	P   float32
	rng *rand.Rand
}

// NewDropout builds a Dropout layer with drop probability p in [0, 1).
func NewDropout(p float32, rng *rand.Rand) *Dropout {
	return &Dropout{Module: nn.New("Dropout"), P: p, rng: rng}
}

// Forward applies inverted dropout in training mode, or passes x through
// unchanged in eval mode.
func (d *Dropout) Forward(x *graph.Node) (*graph.Node, error) {
	if !d.IsTraining() || d.P <= 0 {
		return x, nil
	}
	keepProb := 1 - d.P
	shape := x.Value().Shape()
	mask := tensor.Zeros(shape)
	scale := 1 / keepProb
	for i := 0; i < shape.Size(); i++ {
		if d.rng.Float32() < keepProb {
			mask.Set(i, scale)
		}
	}
	return graph.Dropout(d.Context(), x, mask)
}
