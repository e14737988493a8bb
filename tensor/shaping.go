package tensor

import "github.com/rz-123/TinyAI-sub001/errs"

// Reshape returns a copy of t with a new shape of the same total size.
// This design never aliases buffers across distinct Tensor values, so
// Reshape always copies rather than returning a view.
func Reshape(t *Tensor, newShape Shape) (*Tensor, error) {
	if newShape.Size() != t.shape.Size() {
		return nil, errs.Newf(errs.ShapeMismatch, "Reshape", "cannot reshape %s (size %d) into %s (size %d)", t.shape, t.shape.Size(), newShape, newShape.Size())
	}
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return newTensor(newShape, data), nil
}

// Transpose2D swaps the two dimensions of a rank-2 tensor.
func Transpose2D(t *Tensor) (*Tensor, error) {
	if t.Rank() != 2 {
		return nil, errs.Newf(errs.Unsupported, "Transpose2D", "expected rank 2, got rank %d", t.Rank())
	}
	rows, cols := t.shape[0], t.shape[1]
	out := make([]float32, len(t.data))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = t.data[i*cols+j]
		}
	}
	return newTensor(NewShape(cols, rows), out), nil
}

// Transpose permutes axes according to perm, a permutation of [0, rank).
func Transpose(t *Tensor, perm []int) (*Tensor, error) {
	rank := t.Rank()
	if len(perm) != rank {
		return nil, errs.Newf(errs.Unsupported, "Transpose", "permutation length %d does not match rank %d", len(perm), rank)
	}
	seen := make([]bool, rank)
	for _, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return nil, errs.Newf(errs.Unsupported, "Transpose", "invalid permutation %v", perm)
		}
		seen[p] = true
	}
	newShape := make(Shape, rank)
	for i, p := range perm {
		newShape[i] = t.shape[p]
	}
	oldStrides := t.shape.Strides()
	newStrides := newShape.Strides()
	out := make([]float32, len(t.data))
	coords := make([]int, rank)
	total := t.shape.Size()
	for flat := 0; flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / oldStrides[i]
			rem %= oldStrides[i]
		}
		newFlat := 0
		for i, p := range perm {
			newFlat += coords[p] * newStrides[i]
		}
		out[newFlat] = t.data[flat]
	}
	return newTensor(newShape, out), nil
}

// Flatten reshapes t into a rank-2 [1, size] row vector.
func Flatten(t *Tensor) *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return newTensor(NewShape(1, t.shape.Size()), data)
}

// broadcastShape computes the right-aligned broadcast of src against target,
// erroring if some non-1 dimension of src disagrees with target.
func broadcastShape(op string, src, target Shape) error {
	rankDiff := len(target) - len(src)
	if rankDiff < 0 {
		return errs.Newf(errs.ShapeMismatch, op, "source rank %d exceeds target rank %d", len(src), len(target))
	}
	for i, d := range src {
		td := target[i+rankDiff]
		if d != 1 && d != td {
			return errs.Newf(errs.ShapeMismatch, op, "dimension %d (%d) cannot broadcast to %d", i, d, td)
		}
	}
	return nil
}

// BroadcastTo materializes t into a new tensor of the given shape. Shapes
// are aligned right; a size-1 dim may expand to any size, and extra
// leading dims may be added.
func BroadcastTo(t *Tensor, target Shape) (*Tensor, error) {
	if err := broadcastShape("BroadcastTo", t.shape, target); err != nil {
		return nil, err
	}
	rankDiff := len(target) - t.Rank()
	srcStrides := t.shape.Strides()
	out := Zeros(target)
	targetStrides := target.Strides()
	rank := len(target)
	coords := make([]int, rank)
	total := target.Size()
	for flat := 0; flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / targetStrides[i]
			rem %= targetStrides[i]
		}
		srcFlat := 0
		for i := 0; i < t.Rank(); i++ {
			c := coords[i+rankDiff]
			if t.shape[i] == 1 {
				c = 0
			}
			srcFlat += c * srcStrides[i]
		}
		out.data[flat] = t.data[srcFlat]
	}
	return out, nil
}

// SumTo is the gradient-direction inverse of BroadcastTo: it sums over axes
// that were broadcast (size 1 in target but larger in t) or that are
// absent from target (extra leading axes in t), producing shape target.
func SumTo(t *Tensor, target Shape) (*Tensor, error) {
	if t.shape.Equal(target) {
		return t.Clone(), nil
	}
	rankDiff := t.Rank() - len(target)
	if rankDiff < 0 {
		return nil, errs.Newf(errs.ShapeMismatch, "SumTo", "source rank %d smaller than target rank %d", t.Rank(), len(target))
	}
	cur := t
	// Sum away extra leading dims first.
	for cur.Rank() > len(target) {
		summed, err := SumAxis(cur, 0)
		if err != nil {
			return nil, err
		}
		cur = summed
	}
	// Sum any dim that target holds at size 1 but cur holds larger.
	for axis := 0; axis < len(target); axis++ {
		if target[axis] == 1 && cur.shape[axis] != 1 {
			summed, err := SumAxis(cur, axis)
			if err != nil {
				return nil, err
			}
			reshaped, err := Reshape(summed, insertAxis(summed.shape, axis))
			if err != nil {
				return nil, err
			}
			cur = reshaped
		}
	}
	if !cur.shape.Equal(target) {
		return nil, errs.Newf(errs.ShapeMismatch, "SumTo", "reduced shape %s does not match target %s", cur.shape, target)
	}
	return cur, nil
}

func insertAxis(s Shape, axis int) Shape {
	out := make(Shape, 0, len(s)+1)
	out = append(out, s[:axis]...)
	out = append(out, 1)
	out = append(out, s[axis:]...)
	return out
}

// BroadcastReshape combines Reshape with broadcasting semantics: the input
// is reshaped if its size matches, otherwise broadcast to the target shape.
func BroadcastReshape(t *Tensor, target Shape) (*Tensor, error) {
	if t.shape.Size() == target.Size() {
		return Reshape(t, target)
	}
	return BroadcastTo(t, target)
}
