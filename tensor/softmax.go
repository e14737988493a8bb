package tensor

const softmaxDenomFloor = 1e-7

// DefaultSoftmaxAxis returns the conventional softmax axis for a tensor:
// the last axis, or axis 0 for a rank-1 tensor.
func DefaultSoftmaxAxis(t *Tensor) int {
	if t.Rank() <= 1 {
		return 0
	}
	return t.Rank() - 1
}

// Softmax computes a numerically stable softmax along axis: subtract the
// per-slice maximum before exponentiating, and floor the denominator at
// 1e-7 to avoid division by zero.
//
// Implemented with generic axis reductions (MaxAxis, SumAxis) whose results
// are re-expanded along axis by broadcastAlong, so the result broadcasts
// correctly back to the full shape for rank-3+ inputs regardless of which
// axis is reduced.
func Softmax(t *Tensor, axis int) (*Tensor, error) {
	axis = t.shape.ResolveAxis(axis)
	maxVals, err := MaxAxis(t, axis)
	if err != nil {
		return nil, err
	}
	maxBroadcast, err := broadcastAlong(maxVals, t.shape, axis)
	if err != nil {
		return nil, err
	}
	shifted, err := Sub(t, maxBroadcast)
	if err != nil {
		return nil, err
	}
	expd := Exp(shifted)
	sums, err := SumAxis(expd, axis)
	if err != nil {
		return nil, err
	}
	sumData := sums.data
	for i := range sumData {
		if sumData[i] < softmaxDenomFloor {
			sumData[i] = softmaxDenomFloor
		}
	}
	sumBroadcast, err := broadcastAlong(sums, t.shape, axis)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(expd.data))
	for i := range out {
		out[i] = expd.data[i] / sumBroadcast.data[i]
	}
	return newTensor(t.shape, out), nil
}
