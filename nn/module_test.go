package nn_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) *nn.Module {
	t.Helper()
	root := nn.New("Sequential")
	_, err := root.RegisterParameter("bias", tensor.Zeros(tensor.NewShape(2)))
	require.NoError(t, err)

	child := nn.New("Linear")
	_, err = child.RegisterParameter("weight", tensor.Ones(tensor.NewShape(2, 2)))
	require.NoError(t, err)
	require.NoError(t, child.RegisterBuffer("scale", tensor.Ones(tensor.NewShape(1))))

	require.NoError(t, root.RegisterSubmodule("fc1", child))
	return root
}

func TestNamedParametersDepthFirst(t *testing.T) {
	root := buildTree(t)
	names := root.NamedParameters()
	require.Len(t, names, 2)
	assert.Equal(t, "bias", names[0].Path)
	assert.Equal(t, "fc1.weight", names[1].Path)
}

func TestNameCollision(t *testing.T) {
	root := nn.New("Sequential")
	_, err := root.RegisterParameter("w", tensor.Zeros(tensor.NewShape(1)))
	require.NoError(t, err)
	_, err = root.RegisterParameter("w", tensor.Zeros(tensor.NewShape(1)))
	assert.True(t, errs.Is(err, errs.NameCollision))
}

func TestTrainEvalPropagation(t *testing.T) {
	root := buildTree(t)
	root.Eval()
	child, _ := root.Submodule("fc1")
	assert.False(t, root.IsTraining())
	assert.False(t, child.IsTraining())
	assert.False(t, child.Context().Training())

	root.Train()
	assert.True(t, child.IsTraining())
}

func TestStateDictRoundTrip(t *testing.T) {
	root := buildTree(t)
	dict := root.StateDict()
	require.Contains(t, dict, "bias")
	require.Contains(t, dict, "fc1.weight")
	require.Contains(t, dict, "fc1.scale")

	other := buildTree(t)
	require.NoError(t, other.LoadStateDict(dict, true))

	p, _ := other.Parameter("bias")
	assert.Equal(t, []float32{0, 0}, p.Value().Data())
}

func TestLoadStateDictStrictMismatch(t *testing.T) {
	root := buildTree(t)
	dict := map[string]*tensor.Tensor{"bias": tensor.Zeros(tensor.NewShape(3))}
	err := root.LoadStateDict(dict, true)
	assert.True(t, errs.Is(err, errs.StateDictMismatch))
}

func TestLoadStateDictNonStrictSkipsMissing(t *testing.T) {
	root := buildTree(t)
	dict := map[string]*tensor.Tensor{"bias": tensor.Fill(tensor.NewShape(2), 5)}
	require.NoError(t, root.LoadStateDict(dict, false))
	p, _ := root.Parameter("bias")
	assert.Equal(t, []float32{5, 5}, p.Value().Data())
}

func TestClearGrads(t *testing.T) {
	root := buildTree(t)
	p, _ := root.Parameter("bias")
	p.SetGrad(tensor.Ones(tensor.NewShape(2)))
	root.ClearGrads()
	assert.Nil(t, p.Grad())
}

func TestApplyVisitsEveryModule(t *testing.T) {
	root := buildTree(t)
	var kinds []string
	root.Apply(func(m *nn.Module) { kinds = append(kinds, m.Kind()) })
	assert.Equal(t, []string{"Linear", "Sequential"}, kinds)
}

func TestResolveLazyRunsDeferredInitOnFirstCall(t *testing.T) {
	m := nn.New("LazyThing")
	var seenShape tensor.Shape
	m.DeferInit(func(inputShape tensor.Shape) error {
		seenShape = inputShape
		_, err := m.RegisterParameter("weight", tensor.Zeros(tensor.NewShape(inputShape[1], 4)))
		return err
	})
	assert.True(t, m.IsLazyPending())

	require.NoError(t, m.ResolveLazy(tensor.NewShape(2, 3)))
	assert.False(t, m.IsLazyPending())
	assert.Equal(t, tensor.NewShape(2, 3), seenShape)
	_, ok := m.Parameter("weight")
	assert.True(t, ok)
}

func TestResolveLazyAcceptsRepeatedMatchingShape(t *testing.T) {
	m := nn.New("LazyThing")
	m.DeferInit(func(inputShape tensor.Shape) error { return nil })
	require.NoError(t, m.ResolveLazy(tensor.NewShape(2, 3)))
	require.NoError(t, m.ResolveLazy(tensor.NewShape(2, 3)))
}

func TestResolveLazyFailsOnChangedShape(t *testing.T) {
	m := nn.New("LazyThing")
	m.DeferInit(func(inputShape tensor.Shape) error { return nil })
	require.NoError(t, m.ResolveLazy(tensor.NewShape(2, 3)))

	err := m.ResolveLazy(tensor.NewShape(2, 5))
	assert.True(t, errs.Is(err, errs.LazyInitFailure))
}

func TestResolveLazyNoOpWithoutDeferredInit(t *testing.T) {
	m := nn.New("Plain")
	assert.False(t, m.IsLazyPending())
	require.NoError(t, m.ResolveLazy(tensor.NewShape(1)))
}
