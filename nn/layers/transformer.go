package layers

import (
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
)

// NormPlacement selects where a TransformerEncoderLayer/DecoderLayer
// applies its LayerNorms relative to each sublayer.
type NormPlacement int

const (
	// PreLN normalizes the sublayer's input before the sublayer runs and
	// adds the (unnormalized) residual afterward. The default: it keeps
	// gradients well-scaled in deep stacks without a warmup schedule.
	PreLN NormPlacement = iota
	// PostLN normalizes after the residual add, as in the original
	// "Attention Is All You Need" formulation.
	PostLN
)

// FeedForward is the position-wise two-layer MLP used inside transformer
// blocks: Linear(dModel, dHidden) -> activation -> Linear(dHidden, dModel).
type FeedForward struct {
	*nn.Module
	fc1, fc2   *Linear
	activation func(*graph.Context, *graph.Node) (*graph.Node, error)
}

// NewFeedForward builds a feed-forward block. activation defaults to ReLU
// when nil.
func NewFeedForward(dModel, dHidden int, rng *rand.Rand, activation func(*graph.Context, *graph.Node) (*graph.Node, error)) (*FeedForward, error) {
	m := nn.New("FeedForward")
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
	if activation == nil {
		activation = graph.ReLU
	}
	return &FeedForward{Module: m, fc1: fc1, fc2: fc2, activation: activation}, nil
}

func (f *FeedForward) Forward(x *graph.Node) (*graph.Node, error) {
	h, err := f.fc1.Forward(x)
	if err != nil {
		return nil, err
	}
	h, err = f.activation(f.Context(), h)
	if err != nil {
		return nil, err
	}
	return f.fc2.Forward(h)
}

// TransformerEncoderLayer is one self-attention + feed-forward block.
type TransformerEncoderLayer struct {
	*nn.Module
	Norm         NormPlacement
	selfAttn     *MultiHeadAttention
	ffn          *FeedForward
	norm1, norm2 *LayerNorm
}

// NewTransformerEncoderLayer builds a single encoder block. norm selects
// Pre-LN (default, recommended) or Post-LN placement.
func NewTransformerEncoderLayer(dModel, numHeads, dHidden int, norm NormPlacement, rng *rand.Rand) (*TransformerEncoderLayer, error) {
	m := nn.New("TransformerEncoderLayer")
	attn, err := NewMultiHeadAttention(dModel, numHeads, rng)
	if err != nil {
		return nil, err
	}
	ffn, err := NewFeedForward(dModel, dHidden, rng, nil)
	if err != nil {
		return nil, err
	}
	n1, err := NewLayerNorm(dModel)
	if err != nil {
		return nil, err
	}
	n2, err := NewLayerNorm(dModel)
	if err != nil {
		return nil, err
	}
	for name, sub := range map[string]*nn.Module{"self_attn": attn.Module, "ffn": ffn.Module, "norm1": n1.Module, "norm2": n2.Module} {
		if err := m.RegisterSubmodule(name, sub); err != nil {
			return nil, err
		}
	}
	return &TransformerEncoderLayer{Module: m, Norm: norm, selfAttn: attn, ffn: ffn, norm1: n1, norm2: n2}, nil
}

// Forward runs self-attention (optionally causal) and the feed-forward
// block, each wrapped in a residual connection and a LayerNorm placed
// according to l.Norm.
func (l *TransformerEncoderLayer) Forward(x *graph.Node, causal bool) (*graph.Node, error) {
	ctx := l.Context()

	sublayer := func(input *graph.Node, norm *LayerNorm, fn func(*graph.Node) (*graph.Node, error)) (*graph.Node, error) {
		if l.Norm == PreLN {
			normed, err := norm.Forward(input)
			if err != nil {
				return nil, err
			}
			out, err := fn(normed)
			if err != nil {
				return nil, err
			}
			return graph.Add(ctx, input, out)
		}
		out, err := fn(input)
		if err != nil {
			return nil, err
		}
		summed, err := graph.Add(ctx, input, out)
		if err != nil {
			return nil, err
		}
		return norm.Forward(summed)
	}

	attnOut, err := sublayer(x, l.norm1, func(n *graph.Node) (*graph.Node, error) {
		return l.selfAttn.Forward(n, n, n, causal, nil)
	})
	if err != nil {
		return nil, err
	}
	return sublayer(attnOut, l.norm2, l.ffn.Forward)
}

// TransformerDecoderLayer adds cross-attention over an encoder memory
// sequence between the self-attention and feed-forward sublayers.
type TransformerDecoderLayer struct {
	*nn.Module
	Norm                NormPlacement
	selfAttn, crossAttn *MultiHeadAttention
	ffn                 *FeedForward
	norm1, norm2, norm3 *LayerNorm
}

// NewTransformerDecoderLayer builds a single decoder block.
func NewTransformerDecoderLayer(dModel, numHeads, dHidden int, norm NormPlacement, rng *rand.Rand) (*TransformerDecoderLayer, error) {
	m := nn.New("TransformerDecoderLayer")
	self, err := NewMultiHeadAttention(dModel, numHeads, rng)
	if err != nil {
		return nil, err
	}
	cross, err := NewMultiHeadAttention(dModel, numHeads, rng)
	if err != nil {
		return nil, err
	}
	ffn, err := NewFeedForward(dModel, dHidden, rng, nil)
	if err != nil {
		return nil, err
	}
	n1, err := NewLayerNorm(dModel)
	if err != nil {
		return nil, err
	}
	n2, err := NewLayerNorm(dModel)
	if err != nil {
		return nil, err
	}
	n3, err := NewLayerNorm(dModel)
	if err != nil {
		return nil, err
	}
	subs := map[string]*nn.Module{
		"self_attn": self.Module, "cross_attn": cross.Module, "ffn": ffn.Module,
		"norm1": n1.Module, "norm2": n2.Module, "norm3": n3.Module,
	}
	for name, sub := range subs {
		if err := m.RegisterSubmodule(name, sub); err != nil {
			return nil, err
		}
	}
	return &TransformerDecoderLayer{Module: m, Norm: norm, selfAttn: self, crossAttn: cross, ffn: ffn, norm1: n1, norm2: n2, norm3: n3}, nil
}

// Forward runs masked self-attention over x, cross-attention over memory,
// then the feed-forward block, each with a residual + LayerNorm per l.Norm.
// cache, if non-nil, is used for the self-attention sublayer only (the
// incremental-decoding path).
func (l *TransformerDecoderLayer) Forward(x, memory *graph.Node, causal bool, cache *KVCache) (*graph.Node, error) {
	ctx := l.Context()

	sublayer := func(input *graph.Node, norm *LayerNorm, fn func(*graph.Node) (*graph.Node, error)) (*graph.Node, error) {
		if l.Norm == PreLN {
			normed, err := norm.Forward(input)
			if err != nil {
				return nil, err
			}
			out, err := fn(normed)
			if err != nil {
				return nil, err
			}
			return graph.Add(ctx, input, out)
		}
		out, err := fn(input)
		if err != nil {
			return nil, err
		}
		summed, err := graph.Add(ctx, input, out)
		if err != nil {
			return nil, err
		}
		return norm.Forward(summed)
	}

	selfOut, err := sublayer(x, l.norm1, func(n *graph.Node) (*graph.Node, error) {
		return l.selfAttn.Forward(n, n, n, causal, cache)
	})
	if err != nil {
		return nil, err
	}
	crossOut, err := sublayer(selfOut, l.norm2, func(n *graph.Node) (*graph.Node, error) {
		return l.crossAttn.Forward(n, memory, memory, false, nil)
	})
	if err != nil {
		return nil, err
	}
	return sublayer(crossOut, l.norm3, l.ffn.Forward)
}
