package tensor_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSelectAndScatterAdd(t *testing.T) {
	m := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.NewShape(3, 2))
	sel, err := tensor.IndexSelect(m, 0, []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6, 1, 2}, sel.Data())

	src := mustTensor(t, []float32{1, 1}, tensor.NewShape(1, 2))
	scattered, err := tensor.ScatterAdd(m, 0, []int{0}, src)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 3, 4, 5, 6}, scattered.Data())
}

func TestAddAtDuplicateAccumulation(t *testing.T) {
	m := tensor.Zeros(tensor.NewShape(2, 2))
	other := mustTensor(t, []float32{1, 2}, tensor.NewShape(2))
	require.NoError(t, tensor.AddAt(m, []int{0, 0}, []int{0, 0}, other))
	assert.Equal(t, float32(3), m.Data()[0])
}

func TestSetRowsAndCols(t *testing.T) {
	m := tensor.Zeros(tensor.NewShape(2, 2))
	rows := mustTensor(t, []float32{9, 9}, tensor.NewShape(1, 2))
	require.NoError(t, tensor.SetRows(m, []int{1}, rows))
	assert.Equal(t, []float32{0, 0, 9, 9}, m.Data())

	cols := mustTensor(t, []float32{7, 7}, tensor.NewShape(2, 1))
	require.NoError(t, tensor.SetCols(m, []int{0}, cols))
	assert.Equal(t, []float32{7, 0, 7, 9}, m.Data())
}

func TestComparisonsAndArgmax(t *testing.T) {
	a := mustTensor(t, []float32{1, 5, 3}, tensor.NewShape(3))
	b := mustTensor(t, []float32{1, 2, 4}, tensor.NewShape(3))

	eq, err := tensor.Eq(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, eq.Data())

	gt, err := tensor.Gt(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, gt.Data())

	allGreater, err := tensor.IsAllGreater(a, mustTensor(t, []float32{0, 0, 0}, tensor.NewShape(3)))
	require.NoError(t, err)
	assert.True(t, allGreater)

	argmax, err := tensor.ArgmaxAxis(mustTensor(t, []float32{1, 5, 3}, tensor.NewShape(1, 3)), 1)
	require.NoError(t, err)
	assert.Equal(t, float32(1), argmax.Data()[0])
}

func TestVarAxis(t *testing.T) {
	m := mustTensor(t, []float32{1, 2, 3, 4}, tensor.NewShape(1, 4))
	v, err := tensor.VarAxis(m, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, v.Data()[0], 1e-5)
}

func TestBroadcastReshape(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3, 4}, tensor.NewShape(2, 2))
	reshaped, err := tensor.BroadcastReshape(a, tensor.NewShape(4))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, reshaped.Data())

	row := mustTensor(t, []float32{1, 2}, tensor.NewShape(1, 2))
	broadcast, err := tensor.BroadcastReshape(row, tensor.NewShape(3, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 1, 2, 1, 2}, broadcast.Data())
}
