package optimizer_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/nn/optimizer"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedParam(t *testing.T, value []float32, grad []float32) nn.NamedParameter {
	t.Helper()
	shape := tensor.NewShape(len(value))
	vt, err := tensor.FromArray(value, shape)
	require.NoError(t, err)
	node := graph.NewParameter(vt, "w")
	if grad != nil {
		gt, err := tensor.FromArray(grad, shape)
		require.NoError(t, err)
		node.SetGrad(gt)
	}
	return nn.NamedParameter{Path: "w", Node: node}
}

func TestSGDStepAppliesGradient(t *testing.T) {
	p := namedParam(t, []float32{1, 2, 3}, []float32{1, 1, 1})
	sgd := optimizer.NewSGD(0.1)
	sgd.Step([]nn.NamedParameter{p})
	assert.InDeltaSlice(t, []float32{0.9, 1.9, 2.9}, p.Node.Value().Data(), 1e-6)
}

func TestSGDSkipsParamsWithNoGradient(t *testing.T) {
	p := namedParam(t, []float32{5, 5}, nil)
	sgd := optimizer.NewSGD(1.0)
	sgd.Step([]nn.NamedParameter{p})
	assert.Equal(t, []float32{5, 5}, p.Node.Value().Data())
}

func TestAdamStepMovesTowardNegativeGradient(t *testing.T) {
	p := namedParam(t, []float32{1.0}, []float32{0.5})
	adam := optimizer.NewAdam(0.1, 0.9, 0.999, 1e-8)
	for i := 0; i < 5; i++ {
		adam.Step([]nn.NamedParameter{p})
	}
	assert.Less(t, p.Node.Value().Data()[0], float32(1.0))
}

func TestAdamSetLearningRate(t *testing.T) {
	adam := optimizer.NewAdam(0.1, 0.9, 0.999, 1e-8)
	adam.SetLearningRate(0.01)
	assert.Equal(t, float32(0.01), adam.LearningRate)
}
