package tensor

import "github.com/rz-123/TinyAI-sub001/errs"

// SubArray extracts the rectangular region [rowStart:rowEnd, colStart:colEnd)
// of a rank-2 tensor as a fresh tensor.
func SubArray(t *Tensor, rowStart, rowEnd, colStart, colEnd int) (*Tensor, error) {
	if t.Rank() != 2 {
		return nil, errs.Newf(errs.Unsupported, "SubArray", "expected rank 2, got rank %d", t.Rank())
	}
	rows, cols := t.shape[0], t.shape[1]
	if rowStart < 0 || rowEnd > rows || colStart < 0 || colEnd > cols || rowStart > rowEnd || colStart > colEnd {
		return nil, errs.Newf(errs.IndexOutOfRange, "SubArray", "range rows[%d:%d) cols[%d:%d) out of bounds for %s", rowStart, rowEnd, colStart, colEnd, t.shape)
	}
	outRows, outCols := rowEnd-rowStart, colEnd-colStart
	out := make([]float32, outRows*outCols)
	for i := 0; i < outRows; i++ {
		srcOff := (rowStart+i)*cols + colStart
		copy(out[i*outCols:(i+1)*outCols], t.data[srcOff:srcOff+outCols])
	}
	return newTensor(NewShape(outRows, outCols), out), nil
}

// GetItems gathers elements addressed by rowIndices/colIndices from a rank-2
// tensor. When both index slices have equal length, pairs are taken
// elementwise; otherwise the cartesian product of the two index sets is used.
func GetItems(t *Tensor, rowIndices, colIndices []int) (*Tensor, error) {
	if t.Rank() != 2 {
		return nil, errs.Newf(errs.Unsupported, "GetItems", "expected rank 2, got rank %d", t.Rank())
	}
	rows, cols := t.shape[0], t.shape[1]
	checkIdx := func(idx, bound int) error {
		if idx < 0 || idx >= bound {
			return errs.Newf(errs.IndexOutOfRange, "GetItems", "index %d out of bounds for size %d", idx, bound)
		}
		return nil
	}
	if len(rowIndices) == len(colIndices) {
		out := make([]float32, len(rowIndices))
		for i := range rowIndices {
			if err := checkIdx(rowIndices[i], rows); err != nil {
				return nil, err
			}
			if err := checkIdx(colIndices[i], cols); err != nil {
				return nil, err
			}
			out[i] = t.data[rowIndices[i]*cols+colIndices[i]]
		}
		return newTensor(NewShape(len(out)), out), nil
	}
	out := make([]float32, len(rowIndices)*len(colIndices))
	for i, r := range rowIndices {
		if err := checkIdx(r, rows); err != nil {
			return nil, err
		}
		for j, c := range colIndices {
			if err := checkIdx(c, cols); err != nil {
				return nil, err
			}
			out[i*len(colIndices)+j] = t.data[r*cols+c]
		}
	}
	return newTensor(NewShape(len(rowIndices), len(colIndices)), out), nil
}

// SetBlock overwrites the rectangular region [rowStart:rowEnd, colStart:colEnd)
// of a rank-2 tensor t in place with data (which must have matching shape).
func SetBlock(t *Tensor, rowStart, rowEnd, colStart, colEnd int, data *Tensor) error {
	if t.Rank() != 2 {
		return errs.Newf(errs.Unsupported, "SetBlock", "expected rank 2, got rank %d", t.Rank())
	}
	outRows, outCols := rowEnd-rowStart, colEnd-colStart
	if !data.shape.Equal(NewShape(outRows, outCols)) {
		return errs.Newf(errs.ShapeMismatch, "SetBlock", "data shape %s does not match block %dx%d", data.shape, outRows, outCols)
	}
	cols := t.shape[1]
	for i := 0; i < outRows; i++ {
		dstOff := (rowStart+i)*cols + colStart
		copy(t.data[dstOff:dstOff+outCols], data.data[i*outCols:(i+1)*outCols])
	}
	return nil
}

// SetRows overwrites the rows named by rowIndices in place with data's rows.
func SetRows(t *Tensor, rowIndices []int, data *Tensor) error {
	if t.Rank() != 2 || data.Rank() != 2 {
		return errs.New(errs.Unsupported, "SetRows", "expected rank-2 tensors")
	}
	cols := t.shape[1]
	if data.shape[0] != len(rowIndices) || data.shape[1] != cols {
		return errs.Newf(errs.ShapeMismatch, "SetRows", "data shape %s incompatible with %d rows of width %d", data.shape, len(rowIndices), cols)
	}
	for i, r := range rowIndices {
		if r < 0 || r >= t.shape[0] {
			return errs.Newf(errs.IndexOutOfRange, "SetRows", "row index %d out of bounds", r)
		}
		copy(t.data[r*cols:(r+1)*cols], data.data[i*cols:(i+1)*cols])
	}
	return nil
}

// SetCols overwrites the columns named by colIndices in place with data's columns.
func SetCols(t *Tensor, colIndices []int, data *Tensor) error {
	if t.Rank() != 2 || data.Rank() != 2 {
		return errs.New(errs.Unsupported, "SetCols", "expected rank-2 tensors")
	}
	rows, cols := t.shape[0], t.shape[1]
	if data.shape[0] != rows || data.shape[1] != len(colIndices) {
		return errs.Newf(errs.ShapeMismatch, "SetCols", "data shape %s incompatible with %d rows of %d selected cols", data.shape, rows, len(colIndices))
	}
	for j, c := range colIndices {
		if c < 0 || c >= cols {
			return errs.Newf(errs.IndexOutOfRange, "SetCols", "col index %d out of bounds", c)
		}
		for i := 0; i < rows; i++ {
			t.data[i*cols+c] = data.data[i*len(colIndices)+j]
		}
	}
	return nil
}

// AddAt accumulates other into the cells addressed by the paired
// (rowIndices[i], colIndices[i]); repeated index pairs accumulate.
func AddAt(t *Tensor, rowIndices, colIndices []int, other *Tensor) error {
	if t.Rank() != 2 {
		return errs.New(errs.Unsupported, "AddAt", "expected rank-2 tensor")
	}
	if len(rowIndices) != len(colIndices) || len(rowIndices) != len(other.data) {
		return errs.New(errs.ShapeMismatch, "AddAt", "index slices and other must have matching length")
	}
	rows, cols := t.shape[0], t.shape[1]
	for i := range rowIndices {
		r, c := rowIndices[i], colIndices[i]
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return errs.Newf(errs.IndexOutOfRange, "AddAt", "index (%d,%d) out of bounds", r, c)
		}
		t.data[r*cols+c] += other.data[i]
	}
	return nil
}

// AddTo accumulates src into dst in place; shapes must match exactly.
func AddTo(dst, src *Tensor) error {
	if !dst.shape.Equal(src.shape) {
		return errs.Newf(errs.ShapeMismatch, "AddTo", "shapes %s and %s differ", dst.shape, src.shape)
	}
	for i := range dst.data {
		dst.data[i] += src.data[i]
	}
	return nil
}

// Gather implements embedding lookup: for each index i, emit row weight[i].
// weight must be rank 2 [numRows, dim].
func Gather(weight *Tensor, indices []int) (*Tensor, error) {
	if weight.Rank() != 2 {
		return nil, errs.New(errs.Unsupported, "Gather", "weight must be rank 2")
	}
	numRows, dim := weight.shape[0], weight.shape[1]
	out := make([]float32, len(indices)*dim)
	for i, idx := range indices {
		if idx < 0 || idx >= numRows {
			return nil, errs.Newf(errs.IndexOutOfRange, "Gather", "index %d out of bounds for %d rows", idx, numRows)
		}
		copy(out[i*dim:(i+1)*dim], weight.data[idx*dim:(idx+1)*dim])
	}
	return newTensor(NewShape(len(indices), dim), out), nil
}

// GatherBackward scatters a Gather output gradient back into the shape of
// the original weight matrix, duplicate-safely accumulating rows whose
// index repeated in the forward pass.
func GatherBackward(outputGrad *Tensor, indices []int, weightShape Shape) (*Tensor, error) {
	if weightShape.Rank() != 2 {
		return nil, errs.New(errs.Unsupported, "GatherBackward", "weight shape must be rank 2")
	}
	dim := weightShape[1]
	out := Zeros(weightShape)
	for i, idx := range indices {
		for d := 0; d < dim; d++ {
			out.data[idx*dim+d] += outputGrad.data[i*dim+d]
		}
	}
	return out, nil
}

// IndexSelect selects entries of t along axis named by indices, like a
// generalized multi-axis Gather.
func IndexSelect(t *Tensor, axis int, indices []int) (*Tensor, error) {
	axis = t.shape.ResolveAxis(axis)
	if axis < 0 || axis >= t.Rank() {
		return nil, errs.Newf(errs.IndexOutOfRange, "IndexSelect", "axis %d out of range", axis)
	}
	outShape := t.shape.Clone()
	outShape[axis] = len(indices)
	strides := t.shape.Strides()
	outStrides := outShape.Strides()
	out := make([]float32, outShape.Size())
	rank := t.Rank()
	coords := make([]int, rank)
	total := outShape.Size()
	for flat := 0; flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / outStrides[i]
			rem %= outStrides[i]
		}
		srcFlat := 0
		for i := 0; i < rank; i++ {
			c := coords[i]
			if i == axis {
				idx := indices[c]
				if idx < 0 || idx >= t.shape[axis] {
					return nil, errs.Newf(errs.IndexOutOfRange, "IndexSelect", "index %d out of bounds", idx)
				}
				c = idx
			}
			srcFlat += c * strides[i]
		}
		out[flat] = t.data[srcFlat]
	}
	return newTensor(outShape, out), nil
}

// ScatterAdd accumulates src into a copy of t along axis at the positions
// named by indices (duplicate indices accumulate).
func ScatterAdd(t *Tensor, axis int, indices []int, src *Tensor) (*Tensor, error) {
	axis = t.shape.ResolveAxis(axis)
	if axis < 0 || axis >= t.Rank() {
		return nil, errs.Newf(errs.IndexOutOfRange, "ScatterAdd", "axis %d out of range", axis)
	}
	out := t.Clone()
	strides := t.shape.Strides()
	srcStrides := src.shape.Strides()
	rank := t.Rank()
	coords := make([]int, rank)
	total := src.shape.Size()
	for flat := 0; flat < total; flat++ {
		rem := flat
		for i := 0; i < rank; i++ {
			coords[i] = rem / srcStrides[i]
			rem %= srcStrides[i]
		}
		dstFlat := 0
		for i := 0; i < rank; i++ {
			c := coords[i]
			if i == axis {
				c = indices[coords[axis]]
				if c < 0 || c >= t.shape[axis] {
					return nil, errs.Newf(errs.IndexOutOfRange, "ScatterAdd", "index %d out of bounds", c)
				}
			}
			dstFlat += c * strides[i]
		}
		out.data[dstFlat] += src.data[flat]
	}
	return out, nil
}

// Where selects x where cond is non-zero, else y. The result has x's
// shape; cond and y are broadcast to it, x itself is not broadcast.
func Where(cond, x, y *Tensor) (*Tensor, error) {
	shape := x.shape
	condB, err := BroadcastTo(cond, shape)
	if err != nil {
		return nil, err
	}
	yB, err := BroadcastTo(y, shape)
	if err != nil {
		return nil, err
	}
	out := make([]float32, shape.Size())
	for i := range out {
		if condB.data[i] != 0 {
			out[i] = x.data[i]
		} else {
			out[i] = yB.data[i]
		}
	}
	return newTensor(shape, out), nil
}

// Tril returns a rank-2 lower-triangular mask of 1s (0s above the
// diagonal), with the diagonal offset by k (k=0 is the main diagonal,
// k=1 includes one superdiagonal, k=-1 excludes the main diagonal).
func Tril(shape Shape, k int) (*Tensor, error) {
	if shape.Rank() != 2 {
		return nil, errs.New(errs.Unsupported, "Tril", "expected rank-2 shape")
	}
	rows, cols := shape[0], shape[1]
	out := make([]float32, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j <= i+k {
				out[i*cols+j] = 1
			}
		}
	}
	return newTensor(shape, out), nil
}

// TopK selects the k largest (or smallest, if !largest) elements along
// axis, returning values and their source indices. If sorted, the
// selection within each slice is ordered by value (descending for
// largest, ascending otherwise).
func TopK(t *Tensor, k int, axis int, largest, sorted bool) (values *Tensor, indices *Tensor, err error) {
	axis = t.shape.ResolveAxis(axis)
	if axis < 0 || axis >= t.Rank() {
		return nil, nil, errs.Newf(errs.IndexOutOfRange, "TopK", "axis %d out of range", axis)
	}
	n := t.shape[axis]
	if k <= 0 || k > n {
		return nil, nil, errs.Newf(errs.IndexOutOfRange, "TopK", "k=%d invalid for axis size %d", k, n)
	}
	outShape := t.shape.Clone()
	outShape[axis] = k
	strides := t.shape.Strides()
	rank := t.Rank()
	sliceShape := t.shape.WithoutAxis(axis)
	sliceStrides := sliceShape.Strides()
	numSlices := sliceShape.Size()

	vOut := make([]float32, outShape.Size())
	iOut := make([]float32, outShape.Size())
	outStrides := outShape.Strides()

	coords := make([]int, rank)
	for s := 0; s < numSlices; s++ {
		rem := s
		oi := 0
		for i := 0; i < rank; i++ {
			if i == axis {
				continue
			}
			coords[i] = rem / sliceStrides[oi]
			rem %= sliceStrides[oi]
			oi++
		}
		type pair struct {
			v float32
			i int
		}
		vals := make([]pair, n)
		for idx := 0; idx < n; idx++ {
			coords[axis] = idx
			flat := 0
			for i := 0; i < rank; i++ {
				flat += coords[i] * strides[i]
			}
			vals[idx] = pair{t.data[flat], idx}
		}
		for i := 1; i < len(vals); i++ {
			cur := vals[i]
			j := i - 1
			for j >= 0 && ((largest && vals[j].v < cur.v) || (!largest && vals[j].v > cur.v)) {
				vals[j+1] = vals[j]
				j--
			}
			vals[j+1] = cur
		}
		selected := vals[:k]
		if !sorted {
			// selected is already value-ordered; "unsorted" still returns the
			// top-k set but callers should not rely on intra-slice ordering.
			_ = selected
		}
		for idx := 0; idx < k; idx++ {
			coords[axis] = idx
			outFlat := 0
			for i := 0; i < rank; i++ {
				outFlat += coords[i] * outStrides[i]
			}
			vOut[outFlat] = selected[idx].v
			iOut[outFlat] = float32(selected[idx].i)
		}
	}
	return newTensor(outShape, vOut), newTensor(outShape, iOut), nil
}
