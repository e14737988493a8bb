package layers

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

const maskedLogit = -1e9

// KVCache holds the accumulated key/value projections for incremental
// (one-token-at-a-time) decoding, each [max_seq_len, d_model]. Append
// grows the live prefix by one or more timesteps; CacheOverflow is
// returned once current_len would exceed max_seq_len.
type KVCache struct {
	maxSeqLen  int
	dModel     int
	currentLen int
	keys       *tensor.Tensor
	values     *tensor.Tensor
}

// NewKVCache allocates a cache for sequences up to maxSeqLen long.
func NewKVCache(maxSeqLen, dModel int) *KVCache {
	return &KVCache{
		maxSeqLen: maxSeqLen,
		dModel:    dModel,
		keys:      tensor.Zeros(tensor.NewShape(maxSeqLen, dModel)),
		values:    tensor.Zeros(tensor.NewShape(maxSeqLen, dModel)),
	}
}

// CurrentLen reports how many timesteps are currently cached.
func (c *KVCache) CurrentLen() int { return c.currentLen }

// Reset empties the cache without reallocating its buffers.
func (c *KVCache) Reset() { c.currentLen = 0 }

// Append writes newKeys/newValues, each [steps, d_model], at the cache's
// current position and advances current_len. Returns CacheOverflow if
// the write would exceed max_seq_len.
func (c *KVCache) Append(newKeys, newValues *tensor.Tensor) error {
	steps := newKeys.Shape()[0]
	if c.currentLen+steps > c.maxSeqLen {
		return errs.Newf(errs.CacheOverflow, "KVCache.Append", "appending %d steps at position %d exceeds max_seq_len %d", steps, c.currentLen, c.maxSeqLen)
	}
	if err := tensor.SetBlock(c.keys, c.currentLen, c.currentLen+steps, 0, c.dModel, newKeys); err != nil {
		return err
	}
	if err := tensor.SetBlock(c.values, c.currentLen, c.currentLen+steps, 0, c.dModel, newValues); err != nil {
		return err
	}
	c.currentLen += steps
	return nil
}

// Keys returns the live prefix of cached keys, [current_len, d_model].
func (c *KVCache) Keys() (*tensor.Tensor, error) {
	return tensor.SubArray(c.keys, 0, c.currentLen, 0, c.dModel)
}

// Values returns the live prefix of cached values, [current_len, d_model].
func (c *KVCache) Values() (*tensor.Tensor, error) {
	return tensor.SubArray(c.values, 0, c.currentLen, 0, c.dModel)
}

// MultiHeadAttention is scaled dot-product attention over NumHeads
// parallel subspaces of DModel, operating on a single (unbatched)
// sequence of shape [seq_len, DModel] — batching is left to the caller,
// which can invoke Forward once per sequence in a batch.
type MultiHeadAttention struct {
	*nn.Module
	DModel, NumHeads, HeadDim int
	QProj, KProj, VProj, OutProj *Linear
}

// NewMultiHeadAttention builds a MultiHeadAttention block. dModel must be
// divisible by numHeads.
func NewMultiHeadAttention(dModel, numHeads int, rng *rand.Rand) (*MultiHeadAttention, error) {
	if dModel%numHeads != 0 {
		return nil, errs.Newf(errs.Unsupported, "NewMultiHeadAttention", "d_model %d not divisible by num_heads %d", dModel, numHeads)
	}
	m := nn.New("MultiHeadAttention")
	qProj, err := NewLinear(dModel, dModel, rng)
	if err != nil {
		return nil, err
	}
	kProj, err := NewLinear(dModel, dModel, rng)
	if err != nil {
		return nil, err
	}
	vProj, err := NewLinear(dModel, dModel, rng)
	if err != nil {
		return nil, err
	}
	outProj, err := NewLinear(dModel, dModel, rng)
	if err != nil {
		return nil, err
	}
	if err := m.RegisterSubmodule("q_proj", qProj.Module); err != nil {
		return nil, err
	}
	if err := m.RegisterSubmodule("k_proj", kProj.Module); err != nil {
		return nil, err
	}
	if err := m.RegisterSubmodule("v_proj", vProj.Module); err != nil {
		return nil, err
	}
	if err := m.RegisterSubmodule("out_proj", outProj.Module); err != nil {
		return nil, err
	}
	return &MultiHeadAttention{
		Module: m, DModel: dModel, NumHeads: numHeads, HeadDim: dModel / numHeads,
		QProj: qProj, KProj: kProj, VProj: vProj, OutProj: outProj,
	}, nil
}

// Forward computes attention(query, key, value). query is [qLen, DModel];
// key/value are [kvLen, DModel] (equal to query for self-attention).
// causal, if true, masks each query position from attending to later
// key positions. If cache is non-nil, the freshly projected key/value for
// this call are appended to it and the attention is computed over the
// cache's full live prefix instead of just this call's key/value (the
// incremental-decoding path).
func (a *MultiHeadAttention) Forward(query, key, value *graph.Node, causal bool, cache *KVCache) (*graph.Node, error) {
	ctx := a.Context()

	q, err := a.QProj.Forward(query)
	if err != nil {
		return nil, err
	}
	k, err := a.KProj.Forward(key)
	if err != nil {
		return nil, err
	}
	v, err := a.VProj.Forward(value)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Append(k.Value(), v.Value()); err != nil {
			return nil, err
		}
		cachedKeys, err := cache.Keys()
		if err != nil {
			return nil, err
		}
		cachedValues, err := cache.Values()
		if err != nil {
			return nil, err
		}
		k = graph.NewLeaf(cachedKeys, false, "k_cache")
		v = graph.NewLeaf(cachedValues, false, "v_cache")
	}

	qLen := q.Value().Shape()[0]
	kvLen := k.Value().Shape()[0]

	var maskBias *graph.Node
	if causal {
		mask, err := tensor.Tril(tensor.NewShape(qLen, kvLen), kvLen-qLen)
		if err != nil {
			return nil, err
		}
		bias := tensor.AddScalar(tensor.MulScalar(mask, -maskedLogit), maskedLogit)
		maskBias = graph.NewLeaf(bias, false, "causal_mask")
	}

	heads := make([]*graph.Node, a.NumHeads)
	scale := 1 / math32.Sqrt(float32(a.HeadDim))
	for h := 0; h < a.NumHeads; h++ {
		start, end := h*a.HeadDim, (h+1)*a.HeadDim
		qh, err := graph.Call1(ctx, &sliceColsOp{start: start, end: end}, q)
		if err != nil {
			return nil, err
		}
		kh, err := graph.Call1(ctx, &sliceColsOp{start: start, end: end}, k)
		if err != nil {
			return nil, err
		}
		vh, err := graph.Call1(ctx, &sliceColsOp{start: start, end: end}, v)
		if err != nil {
			return nil, err
		}

		khT, err := graph.Transpose(ctx, kh, []int{1, 0})
		if err != nil {
			return nil, err
		}
		scores, err := graph.MatMul(ctx, qh, khT)
		if err != nil {
			return nil, err
		}
		scaled, err := graph.MulScalar(ctx, scores, scale)
		if err != nil {
			return nil, err
		}
		if maskBias != nil {
			scaled, err = graph.Add(ctx, scaled, maskBias)
			if err != nil {
				return nil, err
			}
		}
		weights, err := graph.Softmax(ctx, scaled, 1)
		if err != nil {
			return nil, err
		}
		headOut, err := graph.MatMul(ctx, weights, vh)
		if err != nil {
			return nil, err
		}
		heads[h] = headOut
	}

	concatenated := heads[0]
	var err2 error
	for i := 1; i < len(heads); i++ {
		concatenated, err2 = concatLastAxis(ctx, concatenated, heads[i])
		if err2 != nil {
			return nil, err2
		}
	}

	return a.OutProj.Forward(concatenated)
}

// sliceColsOp extracts columns [start:end) of a rank-2 tensor; its
// backward scatters the gradient back into a zero tensor of the
// original width.
type sliceColsOp struct {
	start, end int
	origCols   int
}

func (sliceColsOp) Arity() int { return 1 }

func (o *sliceColsOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.origCols = inputs[0].Shape()[1]
	rows := inputs[0].Shape()[0]
	out, err := tensor.SubArray(inputs[0], 0, rows, o.start, o.end)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *sliceColsOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g := outGrads[0]
	rows := g.Shape()[0]
	full := tensor.Zeros(tensor.NewShape(rows, o.origCols))
	if err := tensor.SetBlock(full, 0, rows, o.start, o.end, g); err != nil {
		return nil, err
	}
	return []*tensor.Tensor{full}, nil
}
