package tensor

import "github.com/rz-123/TinyAI-sub001/errs"

// forEachAlongAxis walks every element of shape, invoking visit with the
// flat index of its slot in the axis-reduced shape and its full coordinates.
func forEachAlongAxis(shape Shape, axis int, visit func(outerFlat int, coords []int)) {
	rank := shape.Rank()
	strides := shape.Strides()
	outShape := shape.WithoutAxis(axis)
	outStrides := outShape.Strides()

	coords := make([]int, rank)
	total := shape.Size()
	for flat := 0; flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / strides[i]
			rem %= strides[i]
		}
		outFlat := 0
		oi := 0
		for i := 0; i < rank; i++ {
			if i == axis {
				continue
			}
			outFlat += coords[i] * outStrides[oi]
			oi++
		}
		visit(outFlat, coords)
	}
	_ = outShape
}

// Sum returns the scalar sum of all elements as a rank-0 tensor.
func Sum(t *Tensor) *Tensor {
	var acc float32
	for _, v := range t.data {
		acc += v
	}
	return newTensor(NewShape(), []float32{acc})
}

// SumAxis sums over axis, producing a tensor with that axis removed.
func SumAxis(t *Tensor, axis int) (*Tensor, error) {
	axis = t.shape.ResolveAxis(axis)
	if axis < 0 || axis >= t.shape.Rank() {
		return nil, errs.Newf(errs.IndexOutOfRange, "SumAxis", "axis %d out of range for rank %d", axis, t.shape.Rank())
	}
	outShape := t.shape.WithoutAxis(axis)
	out := make([]float32, outShape.Size())
	forEachAlongAxis(t.shape, axis, func(outerFlat int, coords []int) {
		flat := 0
		strides := t.shape.Strides()
		for i, c := range coords {
			flat += c * strides[i]
		}
		out[outerFlat] += t.data[flat]
	})
	return newTensor(outShape, out), nil
}

// MeanAxis returns SumAxis(t, axis) / t.Shape()[axis].
func MeanAxis(t *Tensor, axis int) (*Tensor, error) {
	rAxis := t.shape.ResolveAxis(axis)
	if rAxis < 0 || rAxis >= t.shape.Rank() {
		return nil, errs.Newf(errs.IndexOutOfRange, "MeanAxis", "axis %d out of range for rank %d", axis, t.shape.Rank())
	}
	n := float32(t.shape[rAxis])
	s, err := SumAxis(t, axis)
	if err != nil {
		return nil, err
	}
	return MulScalar(s, 1/n), nil
}

// VarAxis returns the (biased) variance along axis.
func VarAxis(t *Tensor, axis int) (*Tensor, error) {
	rAxis := t.shape.ResolveAxis(axis)
	mean, err := MeanAxis(t, axis)
	if err != nil {
		return nil, err
	}
	meanBroadcast, err := broadcastAlong(mean, t.shape, rAxis)
	if err != nil {
		return nil, err
	}
	diff, err := Sub(t, meanBroadcast)
	if err != nil {
		return nil, err
	}
	sq := Square(diff)
	return MeanAxis(sq, axis)
}

// broadcastAlong re-expands a reduced tensor (shape with axis removed) back
// to full along axis, for internal use by VarAxis.
func broadcastAlong(reduced *Tensor, fullShape Shape, axis int) (*Tensor, error) {
	out := Zeros(fullShape)
	rank := fullShape.Rank()
	strides := fullShape.Strides()
	outShape := fullShape.WithoutAxis(axis)
	outStrides := outShape.Strides()
	coords := make([]int, rank)
	total := fullShape.Size()
	for flat := 0; flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / strides[i]
			rem %= strides[i]
		}
		redFlat := 0
		oi := 0
		for i := 0; i < rank; i++ {
			if i == axis {
				continue
			}
			redFlat += coords[i] * outStrides[oi]
			oi++
		}
		out.data[flat] = reduced.data[redFlat]
	}
	return out, nil
}

// reduceChoose implements MaxAxis/MinAxis/ArgmaxAxis, all of which pick an
// extremal element along axis.
func reduceChoose(t *Tensor, axis int, op string, better func(cur, challenger float32) bool) (values *Tensor, indices *Tensor, err error) {
	rAxis := t.shape.ResolveAxis(axis)
	if rAxis < 0 || rAxis >= t.shape.Rank() {
		return nil, nil, errs.Newf(errs.IndexOutOfRange, op, "axis %d out of range for rank %d", axis, t.shape.Rank())
	}
	outShape := t.shape.WithoutAxis(rAxis)
	outVals := make([]float32, outShape.Size())
	outIdx := make([]float32, outShape.Size())
	seen := make([]bool, outShape.Size())
	strides := t.shape.Strides()
	outStrides := outShape.Strides()
	rank := t.shape.Rank()
	coords := make([]int, rank)
	total := t.shape.Size()
	for flat := 0; flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / strides[i]
			rem %= strides[i]
		}
		outFlat := 0
		oi := 0
		for i := 0; i < rank; i++ {
			if i == rAxis {
				continue
			}
			outFlat += coords[i] * outStrides[oi]
			oi++
		}
		v := t.data[flat]
		if !seen[outFlat] || better(outVals[outFlat], v) {
			outVals[outFlat] = v
			outIdx[outFlat] = float32(coords[rAxis])
			seen[outFlat] = true
		}
	}
	return newTensor(outShape, outVals), newTensor(outShape, outIdx), nil
}

// MaxAxis returns the per-slice maximum along axis.
func MaxAxis(t *Tensor, axis int) (*Tensor, error) {
	v, _, err := reduceChoose(t, axis, "MaxAxis", func(cur, challenger float32) bool { return challenger > cur })
	return v, err
}

// MinAxis returns the per-slice minimum along axis.
func MinAxis(t *Tensor, axis int) (*Tensor, error) {
	v, _, err := reduceChoose(t, axis, "MinAxis", func(cur, challenger float32) bool { return challenger < cur })
	return v, err
}

// ArgmaxAxis returns the index of the per-slice maximum along axis.
func ArgmaxAxis(t *Tensor, axis int) (*Tensor, error) {
	_, idx, err := reduceChoose(t, axis, "ArgmaxAxis", func(cur, challenger float32) bool { return challenger > cur })
	return idx, err
}

// Max returns the global scalar maximum.
func Max(t *Tensor) float32 {
	m := t.data[0]
	for _, v := range t.data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
