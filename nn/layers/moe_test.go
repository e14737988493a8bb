package layers_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn/layers"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMixtureOfExpertsShapeAndGradients(t *testing.T) {
	moe, err := layers.NewMixtureOfExperts(6, 12, 4, 2, tensor.NewRNG(1))
	require.NoError(t, err)
	x := mustLeaf(t, make([]float32, 3*6), tensor.NewShape(3, 6))
	result, err := moe.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(3, 6), result.Output.Value().Shape())
	assert.Equal(t, tensor.NewShape(), result.AuxLoss.Value().Shape())

	require.NoError(t, graph.Backward(result.Output))
}

func TestMixtureOfExpertsTopTwoOfThreeKeepsTokenShape(t *testing.T) {
	moe, err := layers.NewMixtureOfExperts(4, 8, 3, 2, tensor.NewRNG(2))
	require.NoError(t, err)
	x := mustLeaf(t, []float32{1, 0, 0, 1, 0, 1, 1, 0}, tensor.NewShape(2, 4))
	result, err := moe.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(2, 4), result.Output.Value().Shape())
}

func TestMixtureOfExpertsAuxLossIsFinite(t *testing.T) {
	moe, err := layers.NewMixtureOfExperts(4, 8, 4, 1, tensor.NewRNG(3))
	require.NoError(t, err)
	x := mustLeaf(t, make([]float32, 5*4), tensor.NewShape(5, 4))
	result, err := moe.Forward(x)
	require.NoError(t, err)
	loss := result.AuxLoss.Value().Data()[0]
	assert.False(t, loss != loss) // not NaN
}
