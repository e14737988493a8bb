package initializers_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/nn/initializers"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantAndZeros(t *testing.T) {
	rng := tensor.NewRNG(1)
	z, err := initializers.Zeros(tensor.NewShape(2, 2), rng)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, z.Data())

	c, err := initializers.Constant(3)(tensor.NewShape(2), rng)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3}, c.Data())
}

func TestUniformAndNormalRespectShape(t *testing.T) {
	rng := tensor.NewRNG(42)
	u, err := initializers.Uniform(-1, 1)(tensor.NewShape(10), rng)
	require.NoError(t, err)
	for _, v := range u.Data() {
		assert.True(t, v >= -1 && v < 1)
	}

	n, err := initializers.Normal(0, 1)(tensor.NewShape(10), rng)
	require.NoError(t, err)
	assert.Len(t, n.Data(), 10)
}

func TestXavierAndKaimingBounds(t *testing.T) {
	rng := tensor.NewRNG(7)
	shape := tensor.NewShape(64, 128)

	xu, err := initializers.XavierUniform(1)(shape, rng)
	require.NoError(t, err)
	assert.Equal(t, shape, xu.Shape())

	ku, err := initializers.KaimingUniform(initializers.Gain("relu"))(shape, rng)
	require.NoError(t, err)
	assert.Equal(t, shape, ku.Shape())
}

func TestOrthogonalProducesUnitRows(t *testing.T) {
	rng := tensor.NewRNG(3)
	out, err := initializers.Orthogonal(1)(tensor.NewShape(4, 4), rng)
	require.NoError(t, err)

	row, err := tensor.SubArray(out, 0, 1, 0, 4)
	require.NoError(t, err)
	var normSq float32
	for _, v := range row.Data() {
		normSq += v * v
	}
	assert.InDelta(t, 1.0, normSq, 1e-3)
}

func TestOrthogonalFallsBackForNonRank2(t *testing.T) {
	rng := tensor.NewRNG(5)
	out, err := initializers.Orthogonal(1)(tensor.NewShape(2, 3, 3), rng)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(2, 3, 3), out.Shape())
}
