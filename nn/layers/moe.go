package layers

import (
	"fmt"
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// expertMLP is a two-layer ReLU feed-forward network, the per-expert
// body used by MixtureOfExperts.
type expertMLP struct {
	*nn.Module
	fc1, fc2 *Linear
}

func newExpertMLP(dModel, dHidden int, rng *rand.Rand) (*expertMLP, error) {
	m := nn.New("Expert")
	fc1, err := NewLinear(dModel, dHidden, rng)
	if err != nil {
		return nil, err
	}
	fc2, err := NewLinear(dHidden, dModel, rng)
	if err != nil {
		return nil, err
	}
	if err := m.RegisterSubmodule("fc1", fc1.Module); err != nil {
		return nil, err
	}
	if err := m.RegisterSubmodule("fc2", fc2.Module); err != nil {
		return nil, err
	}
	return &expertMLP{Module: m, fc1: fc1, fc2: fc2}, nil
}

func (e *expertMLP) Forward(x *graph.Node) (*graph.Node, error) {
	h, err := e.fc1.Forward(x)
	if err != nil {
		return nil, err
	}
	h, err = graph.ReLU(e.Context(), h)
	if err != nil {
		return nil, err
	}
	return e.fc2.Forward(h)
}

// MixtureOfExperts routes each row of its input to the TopK highest
// scoring of NumExperts two-layer MLPs, combining their outputs with
// softmax-normalized routing weights. All experts are evaluated densely
// for every row; routing only gates which outputs are weighted nonzero —
// this trades compute for a fully differentiable, loop-free combine.
type MixtureOfExperts struct {
	*nn.Module
	DModel, NumExperts, TopK int
	router                   *Linear
	experts                  []*expertMLP
}

// NewMixtureOfExperts builds a router and numExperts expert MLPs, each
// dModel -> dHidden -> dModel.
func NewMixtureOfExperts(dModel, dHidden, numExperts, topK int, rng *rand.Rand) (*MixtureOfExperts, error) {
	m := nn.New("MixtureOfExperts")
	router, err := NewLinear(dModel, numExperts, rng)
	if err != nil {
		return nil, err
	}
	if err := m.RegisterSubmodule("router", router.Module); err != nil {
		return nil, err
	}
	experts := make([]*expertMLP, numExperts)
	for i := 0; i < numExperts; i++ {
		e, err := newExpertMLP(dModel, dHidden, rng)
		if err != nil {
			return nil, err
		}
		if err := m.RegisterSubmodule(expertName(i), e.Module); err != nil {
			return nil, err
		}
		experts[i] = e
	}
	return &MixtureOfExperts{Module: m, DModel: dModel, NumExperts: numExperts, TopK: topK, router: router, experts: experts}, nil
}

func expertName(i int) string {
	return fmt.Sprintf("expert_%d", i)
}

// MoEOutput bundles the combined layer output with the load-balance
// auxiliary loss for the caller to add into its training objective.
type MoEOutput struct {
	Output  *graph.Node
	AuxLoss *graph.Node
}

// Forward routes x, [seqLen, DModel], through the TopK experts per row
// and returns the combined output plus a KL-divergence load-balance loss
// between the token-averaged routing distribution and uniform.
func (moe *MixtureOfExperts) Forward(x *graph.Node) (*MoEOutput, error) {
	ctx := moe.Context()
	logits, err := moe.router.Forward(x)
	if err != nil {
		return nil, err
	}
	probs, err := graph.Softmax(ctx, logits, 1)
	if err != nil {
		return nil, err
	}

	_, topIdx, err := tensor.TopK(logits.Value(), moe.TopK, 1, true, true)
	if err != nil {
		return nil, err
	}
	seqLen := x.Value().Shape()[0]
	mask := tensor.Zeros(tensor.NewShape(seqLen, moe.NumExperts))
	for row := 0; row < seqLen; row++ {
		for k := 0; k < moe.TopK; k++ {
			expert := int(topIdx.Data()[row*moe.TopK+k])
			mask.Set(row*moe.NumExperts+expert, 1)
		}
	}
	maskNode := graph.NewLeaf(mask, false, "route_mask")

	maskedProbs, err := graph.Mul(ctx, probs, maskNode)
	if err != nil {
		return nil, err
	}
	rowSum, err := graph.SumAxis(ctx, maskedProbs, 1)
	if err != nil {
		return nil, err
	}
	rowSumBroadcast, err := broadcastReducedAlong(ctx, rowSum, 1, tensor.NewShape(seqLen, moe.NumExperts))
	if err != nil {
		return nil, err
	}
	weights, err := graph.Div(ctx, maskedProbs, rowSumBroadcast)
	if err != nil {
		return nil, err
	}

	var combined *graph.Node
	for e := 0; e < moe.NumExperts; e++ {
		out, err := moe.experts[e].Forward(x)
		if err != nil {
			return nil, err
		}
		colWeight, err := graph.Call1(ctx, &sliceColsOp{start: e, end: e + 1}, weights)
		if err != nil {
			return nil, err
		}
		colBroadcast, err := graph.BroadcastTo(ctx, colWeight, tensor.NewShape(seqLen, moe.DModel))
		if err != nil {
			return nil, err
		}
		weighted, err := graph.Mul(ctx, out, colBroadcast)
		if err != nil {
			return nil, err
		}
		if combined == nil {
			combined = weighted
		} else {
			combined, err = graph.Add(ctx, combined, weighted)
			if err != nil {
				return nil, err
			}
		}
	}

	auxLoss, err := moe.loadBalanceLoss(ctx, probs, seqLen)
	if err != nil {
		return nil, err
	}
	return &MoEOutput{Output: combined, AuxLoss: auxLoss}, nil
}

// loadBalanceLoss computes KL(avgProbs || uniform), encouraging the
// router to spread load evenly across experts over a batch of tokens.
func (moe *MixtureOfExperts) loadBalanceLoss(ctx *graph.Context, probs *graph.Node, seqLen int) (*graph.Node, error) {
	summed, err := graph.SumAxis(ctx, probs, 0)
	if err != nil {
		return nil, err
	}
	avg, err := graph.MulScalar(ctx, summed, 1/float32(seqLen))
	if err != nil {
		return nil, err
	}
	scaled, err := graph.MulScalar(ctx, avg, float32(moe.NumExperts))
	if err != nil {
		return nil, err
	}
	logScaled, err := graph.Log(ctx, scaled)
	if err != nil {
		return nil, err
	}
	term, err := graph.Mul(ctx, avg, logScaled)
	if err != nil {
		return nil, err
	}
	return graph.SumAxis(ctx, term, 0)
}
