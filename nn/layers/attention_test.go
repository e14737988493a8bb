package layers_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn/layers"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiHeadAttentionSelfAttentionShape(t *testing.T) {
	mha, err := layers.NewMultiHeadAttention(8, 2, tensor.NewRNG(1))
	require.NoError(t, err)

	x := mustLeaf(t, make([]float32, 3*8), tensor.NewShape(3, 8))
	out, err := mha.Forward(x, x, x, false, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(3, 8), out.Value().Shape())

	require.NoError(t, graph.Backward(out))
	w, _ := mha.QProj.Parameter("weight")
	assert.NotNil(t, w.Grad())
}

func TestMultiHeadAttentionRejectsIndivisibleHeads(t *testing.T) {
	_, err := layers.NewMultiHeadAttention(7, 2, tensor.NewRNG(1))
	assert.Error(t, err)
}

func TestMultiHeadAttentionCausalMasksFuture(t *testing.T) {
	mha, err := layers.NewMultiHeadAttention(4, 1, tensor.NewRNG(2))
	require.NoError(t, err)
	x := mustLeaf(t, []float32{1, 0, 0, 1, 0, 1, 1, 0, 1, 1, 0, 0}, tensor.NewShape(3, 4))
	out, err := mha.Forward(x, x, x, true, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(3, 4), out.Value().Shape())

	// Changing only the last position must leave the first two rows unchanged.
	x2 := mustLeaf(t, []float32{1, 0, 0, 1, 0, 1, 1, 0, 5, -3, 2, 7}, tensor.NewShape(3, 4))
	out2, err := mha.Forward(x2, x2, x2, true, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, out.Value().Data()[:8], out2.Value().Data()[:8], 1e-6)
}

func TestKVCacheAppendAndOverflow(t *testing.T) {
	cache := layers.NewKVCache(2, 4)
	k1 := mustTensor(t, []float32{1, 2, 3, 4}, tensor.NewShape(1, 4))
	require.NoError(t, cache.Append(k1, k1))
	assert.Equal(t, 1, cache.CurrentLen())
	require.NoError(t, cache.Append(k1, k1))
	assert.Equal(t, 2, cache.CurrentLen())

	err := cache.Append(k1, k1)
	assert.Error(t, err)
}

func TestKVCacheIncrementalDecodeMatchesFullSequence(t *testing.T) {
	mha, err := layers.NewMultiHeadAttention(4, 2, tensor.NewRNG(3))
	require.NoError(t, err)
	mha.Eval()

	tok1 := mustLeaf(t, []float32{1, 0, 0, 1}, tensor.NewShape(1, 4))
	tok2 := mustLeaf(t, []float32{0, 1, 1, 0}, tensor.NewShape(1, 4))

	cache := layers.NewKVCache(4, 4)
	out1, err := mha.Forward(tok1, tok1, tok1, true, cache)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(1, 4), out1.Value().Shape())

	out2, err := mha.Forward(tok2, tok2, tok2, true, cache)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(1, 4), out2.Value().Shape())
	assert.Equal(t, 2, cache.CurrentLen())

	full := mustLeaf(t, []float32{1, 0, 0, 1, 0, 1, 1, 0}, tensor.NewShape(2, 4))
	fullOut, err := mha.Forward(full, full, full, true, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, fullOut.Value().Data()[:4], out1.Value().Data(), 1e-5)
	assert.InDeltaSlice(t, fullOut.Value().Data()[4:], out2.Value().Data(), 1e-5)
}

func mustTensor(t *testing.T, values []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	tn, err := tensor.FromArray(values, shape)
	require.NoError(t, err)
	return tn
}
