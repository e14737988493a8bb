package layers_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn/layers"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformerEncoderLayerPreLNShape(t *testing.T) {
	layer, err := layers.NewTransformerEncoderLayer(8, 2, 16, layers.PreLN, tensor.NewRNG(1))
	require.NoError(t, err)
	x := mustLeaf(t, make([]float32, 4*8), tensor.NewShape(4, 8))
	out, err := layer.Forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(4, 8), out.Value().Shape())

	require.NoError(t, graph.Backward(out))
}

func TestTransformerEncoderLayerPostLN(t *testing.T) {
	layer, err := layers.NewTransformerEncoderLayer(8, 2, 16, layers.PostLN, tensor.NewRNG(2))
	require.NoError(t, err)
	x := mustLeaf(t, make([]float32, 2*8), tensor.NewShape(2, 8))
	out, err := layer.Forward(x, false)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(2, 8), out.Value().Shape())
}

func TestTransformerDecoderLayerCrossAttendsMemory(t *testing.T) {
	layer, err := layers.NewTransformerDecoderLayer(8, 2, 16, layers.PreLN, tensor.NewRNG(3))
	require.NoError(t, err)
	x := mustLeaf(t, make([]float32, 3*8), tensor.NewShape(3, 8))
	memory := mustLeaf(t, make([]float32, 5*8), tensor.NewShape(5, 8))
	out, err := layer.Forward(x, memory, true, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(3, 8), out.Value().Shape())

	require.NoError(t, graph.Backward(out))
}

func TestPositionalEncodingAddsSignal(t *testing.T) {
	pe, err := layers.NewPositionalEncoding(16, 4, 0, tensor.NewRNG(4))
	require.NoError(t, err)
	x := mustLeaf(t, make([]float32, 3*4), tensor.NewShape(3, 4))
	out, err := pe.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(3, 4), out.Value().Shape())
	assert.NotEqual(t, x.Value().Data(), out.Value().Data())
}
