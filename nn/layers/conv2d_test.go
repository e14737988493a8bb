package layers_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn/layers"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConv2dForwardShapeAndGradients(t *testing.T) {
	conv, err := layers.NewConv2d(2, 3, 2, 2, 1, 1, 0, 0, tensor.NewRNG(1))
	require.NoError(t, err)

	x := mustLeaf(t, make([]float32, 1*2*4*4), tensor.NewShape(1, 2, 4, 4))
	out, err := conv.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(1, 3, 3, 3), out.Value().Shape())

	require.NoError(t, graph.Backward(out))
	weight, _ := conv.Parameter("weight")
	bias, _ := conv.Parameter("bias")
	assert.NotNil(t, weight.Grad())
	assert.NotNil(t, bias.Grad())
	assert.NotNil(t, x.Grad())
}

func TestConv2dOutputSizeWithPaddingAndStride(t *testing.T) {
	conv, err := layers.NewConv2d(1, 1, 3, 3, 2, 2, 1, 1, tensor.NewRNG(2))
	require.NoError(t, err)
	outH, outW := conv.OutputSize(5, 5)
	assert.Equal(t, 3, outH)
	assert.Equal(t, 3, outW)
}

func TestConv2dRejectsChannelMismatch(t *testing.T) {
	conv, err := layers.NewConv2d(2, 3, 2, 2, 1, 1, 0, 0, tensor.NewRNG(3))
	require.NoError(t, err)
	x := mustLeaf(t, make([]float32, 1*3*4*4), tensor.NewShape(1, 3, 4, 4))
	_, err = conv.Forward(x)
	assert.Error(t, err)
}

func TestConv2dIdentityKernelReproducesInput(t *testing.T) {
	conv, err := layers.NewConv2d(1, 1, 1, 1, 1, 1, 0, 0, tensor.NewRNG(4))
	require.NoError(t, err)
	weight, _ := conv.Parameter("weight")
	weight.Value().Set(0, 1)
	bias, _ := conv.Parameter("bias")
	bias.Value().Set(0, 0)

	x := mustLeaf(t, []float32{1, 2, 3, 4}, tensor.NewShape(1, 1, 2, 2))
	out, err := conv.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, out.Value().Data())
}

func TestMaxPool2dSelectsMaxAndRoutesGradient(t *testing.T) {
	pool := layers.NewMaxPool2d(2, 2, 2, 2)
	x := mustLeaf(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		1, 1, 1, 1,
		2, 2, 9, 2,
	}, tensor.NewShape(1, 1, 4, 4))

	out, err := pool.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(1, 1, 2, 2), out.Value().Shape())
	assert.Equal(t, []float32{6, 8, 2, 9}, out.Value().Data())

	require.NoError(t, graph.Backward(out))
	grad := x.Grad().Data()
	// Only the four winning positions (index 5, 7, 12, 14) receive gradient.
	for i, v := range grad {
		switch i {
		case 5, 7, 12, 14:
			assert.Equal(t, float32(1), v)
		default:
			assert.Equal(t, float32(0), v)
		}
	}
}

func TestAvgPool2dAveragesWindowAndDistributesGradient(t *testing.T) {
	pool := layers.NewAvgPool2d(2, 2, 2, 2)
	x := mustLeaf(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, tensor.NewShape(1, 1, 2, 4))

	out, err := pool.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(1, 1, 1, 2), out.Value().Shape())
	assert.InDeltaSlice(t, []float32{3.5, 5.5}, out.Value().Data(), 1e-6)

	require.NoError(t, graph.Backward(out))
	grad := x.Grad().Data()
	for _, v := range grad {
		assert.InDelta(t, 0.25, v, 1e-6)
	}
}

func TestLazyLinearInfersInFeaturesOnFirstCall(t *testing.T) {
	lin := layers.NewLazyLinear(4, tensor.NewRNG(5))
	assert.True(t, lin.IsLazyPending())

	x := mustLeaf(t, make([]float32, 2*3), tensor.NewShape(2, 3))
	out, err := lin.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(2, 4), out.Value().Shape())
	assert.Equal(t, 3, lin.InFeatures)
	assert.False(t, lin.IsLazyPending())

	// A second call with the same shape succeeds.
	_, err = lin.Forward(x)
	require.NoError(t, err)
}

func TestLazyLinearRejectsChangedShapeAfterInit(t *testing.T) {
	lin := layers.NewLazyLinear(4, tensor.NewRNG(6))
	x := mustLeaf(t, make([]float32, 2*3), tensor.NewShape(2, 3))
	_, err := lin.Forward(x)
	require.NoError(t, err)

	y := mustLeaf(t, make([]float32, 2*5), tensor.NewShape(2, 5))
	_, err = lin.Forward(y)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LazyInitFailure))
}

func TestLazyConv2dInfersInChannelsOnFirstCall(t *testing.T) {
	conv := layers.NewLazyConv2d(3, 2, 2, 1, 1, 0, 0, tensor.NewRNG(7))
	assert.True(t, conv.IsLazyPending())

	x := mustLeaf(t, make([]float32, 1*2*4*4), tensor.NewShape(1, 2, 4, 4))
	out, err := conv.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(1, 3, 3, 3), out.Value().Shape())
	assert.Equal(t, 2, conv.InChannels)

	require.NoError(t, graph.Backward(out))
	weight, _ := conv.Parameter("weight")
	assert.NotNil(t, weight.Grad())
}

func TestLazyConv2dRejectsChangedChannelsAfterInit(t *testing.T) {
	conv := layers.NewLazyConv2d(3, 2, 2, 1, 1, 0, 0, tensor.NewRNG(8))
	x := mustLeaf(t, make([]float32, 1*2*4*4), tensor.NewShape(1, 2, 4, 4))
	_, err := conv.Forward(x)
	require.NoError(t, err)

	y := mustLeaf(t, make([]float32, 1*5*4*4), tensor.NewShape(1, 5, 4, 4))
	_, err = conv.Forward(y)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LazyInitFailure))
}
