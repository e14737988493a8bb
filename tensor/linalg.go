package tensor

import "github.com/rz-123/TinyAI-sub001/errs"

// MatMul performs a standard last-two-dims matrix multiply, broadcasting
// over any leading batch dims. Fails if the inner dimensions disagree.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.Rank() < 2 || b.Rank() < 2 {
		return nil, errs.New(errs.Unsupported, "MatMul", "both operands must have rank >= 2")
	}
	m, k := a.shape[a.Rank()-2], a.shape[a.Rank()-1]
	k2, n := b.shape[b.Rank()-2], b.shape[b.Rank()-1]
	if k != k2 {
		return nil, errs.Newf(errs.ShapeMismatch, "MatMul", "inner dims disagree: %d vs %d", k, k2)
	}

	aBatch := a.shape[:a.Rank()-2]
	bBatch := b.shape[:b.Rank()-2]
	batchShape, err := broadcastBatch(aBatch, bBatch)
	if err != nil {
		return nil, err
	}

	outShape := append(batchShape.Clone(), m, n)
	aFull, err := BroadcastTo(a, append(batchShape.Clone(), m, k))
	if err != nil {
		return nil, err
	}
	bFull, err := BroadcastTo(b, append(batchShape.Clone(), k2, n))
	if err != nil {
		return nil, err
	}

	batchCount := batchShape.Size()
	out := make([]float32, batchCount*m*n)
	for bI := 0; bI < batchCount; bI++ {
		aOff := bI * m * k
		bOff := bI * k * n
		oOff := bI * m * n
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var acc float32
				for p := 0; p < k; p++ {
					acc += aFull.data[aOff+i*k+p] * bFull.data[bOff+p*n+j]
				}
				out[oOff+i*n+j] = acc
			}
		}
	}
	return newTensor(outShape, out), nil
}

func broadcastBatch(a, b Shape) (Shape, error) {
	rank := len(a)
	if len(b) > rank {
		rank = len(b)
	}
	out := make(Shape, rank)
	for i := 0; i < rank; i++ {
		var da, db int = 1, 1
		if idx := len(a) - rank + i; idx >= 0 {
			da = a[idx]
		}
		if idx := len(b) - rank + i; idx >= 0 {
			db = b[idx]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, errs.Newf(errs.ShapeMismatch, "MatMul", "batch dims %d and %d cannot broadcast", da, db)
		}
	}
	return out, nil
}

// BatchedMatMul is the rank-3 fast path [B,N,M] @ [B,M,P] -> [B,N,P], with
// no batch-dim broadcasting (both operands must share B exactly).
func BatchedMatMul(a, b *Tensor) (*Tensor, error) {
	if a.Rank() != 3 || b.Rank() != 3 {
		return nil, errs.New(errs.Unsupported, "BatchedMatMul", "both operands must have rank 3")
	}
	if a.shape[0] != b.shape[0] {
		return nil, errs.Newf(errs.ShapeMismatch, "BatchedMatMul", "batch dims %d and %d disagree", a.shape[0], b.shape[0])
	}
	if a.shape[2] != b.shape[1] {
		return nil, errs.Newf(errs.ShapeMismatch, "BatchedMatMul", "inner dims disagree: %d vs %d", a.shape[2], b.shape[1])
	}
	batch, n, m, p := a.shape[0], a.shape[1], a.shape[2], b.shape[2]
	out := make([]float32, batch*n*p)
	for bI := 0; bI < batch; bI++ {
		aOff := bI * n * m
		bOff := bI * m * p
		oOff := bI * n * p
		for i := 0; i < n; i++ {
			for j := 0; j < p; j++ {
				var acc float32
				for k := 0; k < m; k++ {
					acc += a.data[aOff+i*m+k] * b.data[bOff+k*p+j]
				}
				out[oOff+i*p+j] = acc
			}
		}
	}
	return newTensor(NewShape(batch, n, p), out), nil
}
