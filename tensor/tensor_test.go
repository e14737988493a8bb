package tensor_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTensor(t *testing.T, values []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	tn, err := tensor.FromArray(values, shape)
	require.NoError(t, err)
	return tn
}

func TestFactories(t *testing.T) {
	z := tensor.Zeros(tensor.NewShape(2, 3))
	assert.Equal(t, 6, len(z.Data()))
	for _, v := range z.Data() {
		assert.Equal(t, float32(0), v)
	}

	o := tensor.Ones(tensor.NewShape(2))
	assert.Equal(t, []float32{1, 1}, o.Data())

	eye, err := tensor.Eye(tensor.NewShape(3, 3))
	require.NoError(t, err)
	assert.Equal(t, float32(1), eye.Data()[0])
	assert.Equal(t, float32(1), eye.Data()[4])
	assert.Equal(t, float32(0), eye.Data()[1])

	ls, err := tensor.Linspace(0, 1, 5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.25, 0.5, 0.75, 1}, ls.Data(), 1e-6)

	single, err := tensor.Linspace(3, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, single.Data())

	_, err = tensor.Linspace(0, 1, 0)
	assert.True(t, errs.Is(err, errs.Unsupported))

	_, err = tensor.FromArray([]float32{1, 2}, tensor.NewShape(3))
	assert.True(t, errs.Is(err, errs.ShapeMismatch))
}

func TestElementwiseBinary(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3, 4}, tensor.NewShape(2, 2))
	b := mustTensor(t, []float32{1, 1, 1, 1}, tensor.NewShape(2, 2))

	sum, err := tensor.Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4, 5}, sum.Data())

	diff, err := tensor.Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3}, diff.Data())

	prod, err := tensor.Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), prod.Data())

	quot, err := tensor.Div(a, b)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), quot.Data())

	zero := mustTensor(t, []float32{0, 0, 0, 0}, tensor.NewShape(2, 2))
	_, err = tensor.Div(a, zero)
	assert.True(t, errs.Is(err, errs.ArithmeticError))

	mismatched := tensor.Zeros(tensor.NewShape(3))
	_, err = tensor.Add(a, mismatched)
	assert.True(t, errs.Is(err, errs.ShapeMismatch))
}

func TestElementwiseUnary(t *testing.T) {
	x := mustTensor(t, []float32{-2, 0, 4}, tensor.NewShape(3))
	assert.Equal(t, []float32{2, 0, 4}, tensor.Abs(x).Data())
	assert.Equal(t, []float32{4, 0, 16}, tensor.Square(x).Data())
	assert.InDeltaSlice(t, []float32{2, 0, -4}, tensor.Neg(x).Data(), 1e-6)

	pos := mustTensor(t, []float32{1, 4, 9}, tensor.NewShape(3))
	assert.InDeltaSlice(t, []float32{1, 2, 3}, tensor.Sqrt(pos).Data(), 1e-5)

	_, err := tensor.Log(mustTensor(t, []float32{0}, tensor.NewShape(1)))
	assert.True(t, errs.Is(err, errs.ArithmeticError))

	clipped := tensor.Clip(x, -1, 1)
	assert.Equal(t, []float32{-1, 0, 1}, clipped.Data())
}

func TestReductionInvariants(t *testing.T) {
	m := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.NewShape(2, 3))

	s, err := tensor.SumAxis(m, 1)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(2), s.Shape())
	assert.Equal(t, []float32{6, 15}, s.Data())

	mean, err := tensor.MeanAxis(m, 1)
	require.NoError(t, err)
	meanTimesN := tensor.MulScalar(mean, 3)
	assert.InDeltaSlice(t, s.Data(), meanTimesN.Data(), 1e-4)

	sm, err := tensor.Softmax(m, 1)
	require.NoError(t, err)
	rowSums, err := tensor.SumAxis(sm, 1)
	require.NoError(t, err)
	for _, v := range rowSums.Data() {
		assert.InDelta(t, 1.0, v, 1e-5)
	}
}

func TestSoftmaxStability(t *testing.T) {
	x := mustTensor(t, []float32{1000, 1000, 1000}, tensor.NewShape(1, 3))
	out, err := tensor.Softmax(x, 1)
	require.NoError(t, err)
	for _, v := range out.Data() {
		assert.InDelta(t, 1.0/3.0, v, 1e-6)
	}
}

func TestBroadcastSumToDuality(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3}, tensor.NewShape(1, 3))
	target := tensor.NewShape(4, 3)
	b, err := tensor.BroadcastTo(a, target)
	require.NoError(t, err)

	back, err := tensor.SumTo(b, tensor.NewShape(1, 3))
	require.NoError(t, err)
	scaled := tensor.MulScalar(a, 4)
	assert.InDeltaSlice(t, scaled.Data(), back.Data(), 1e-5)
}

func TestReshapeAndTranspose(t *testing.T) {
	m := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.NewShape(2, 3))
	r, err := tensor.Reshape(m, tensor.NewShape(3, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, r.Data())

	_, err = tensor.Reshape(m, tensor.NewShape(4, 2))
	assert.True(t, errs.Is(err, errs.ShapeMismatch))

	tp, err := tensor.Transpose2D(m)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(3, 2), tp.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, tp.Data())

	perm, err := tensor.Transpose(m, []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, tp.Data(), perm.Data())
}

func TestMatMul(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3, 4}, tensor.NewShape(2, 2))
	b := mustTensor(t, []float32{1, 0, 0, 1}, tensor.NewShape(2, 2))
	out, err := tensor.MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), out.Data())

	bad := tensor.Zeros(tensor.NewShape(3, 2))
	_, err = tensor.MatMul(a, bad)
	assert.True(t, errs.Is(err, errs.ShapeMismatch))
}

func TestBatchedMatMul(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.NewShape(2, 2, 2))
	b := mustTensor(t, []float32{1, 0, 0, 1, 1, 0, 0, 1}, tensor.NewShape(2, 2, 2))
	out, err := tensor.BatchedMatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), out.Data())
}

func TestGatherAndBackward(t *testing.T) {
	weight := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.NewShape(3, 2))
	out, err := tensor.Gather(weight, []int{0, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 5, 6, 1, 2}, out.Data())

	grad := tensor.Ones(tensor.NewShape(3, 2))
	back, err := tensor.GatherBackward(grad, []int{0, 2, 0}, weight.Shape())
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2, 0, 0, 1, 1}, back.Data())
}

func TestTrilAndWhere(t *testing.T) {
	mask, err := tensor.Tril(tensor.NewShape(3, 3), 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 1, 1, 0, 1, 1, 1}, mask.Data())

	x := tensor.Fill(tensor.NewShape(3, 3), 5)
	y := tensor.Fill(tensor.NewShape(3, 3), -5)
	sel, err := tensor.Where(mask, x, y)
	require.NoError(t, err)
	assert.Equal(t, float32(5), sel.Data()[0])
	assert.Equal(t, float32(-5), sel.Data()[2])
}

func TestTopK(t *testing.T) {
	x := mustTensor(t, []float32{3, 1, 4, 1, 5, 9, 2, 6}, tensor.NewShape(1, 8))
	vals, idx, err := tensor.TopK(x, 3, 1, true, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 6, 5}, vals.Data())
	assert.Equal(t, []float32{5, 7, 4}, idx.Data())
}

func TestSubArrayAndSetBlock(t *testing.T) {
	m := mustTensor(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.NewShape(3, 3))
	sub, err := tensor.SubArray(m, 1, 3, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6, 8, 9}, sub.Data())

	block := mustTensor(t, []float32{0, 0, 0, 0}, tensor.NewShape(2, 2))
	require.NoError(t, tensor.SetBlock(m, 0, 2, 0, 2, block))
	assert.Equal(t, []float32{0, 0, 3, 0, 0, 6, 7, 8, 9}, m.Data())
}
