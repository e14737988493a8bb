package layers

import (
	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

const defaultBatchNormEps = 1e-5

// BatchNorm1d normalizes each feature over the batch axis during
// training, tracking running mean/variance via an exponential moving
// average (momentum) for use at evaluation time.
type BatchNorm1d struct {
	*nn.Module
	Features int
	Eps      float32
	Momentum float32
}

// NewBatchNorm1d builds a BatchNorm1d over the given feature width, with
// gamma=1, beta=0, running_mean=0, running_var=1.
func NewBatchNorm1d(features int, momentum float32) (*BatchNorm1d, error) {
	m := nn.New("BatchNorm1d")
	if _, err := m.RegisterParameter("gamma", tensor.Ones(tensor.NewShape(features))); err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("beta", tensor.Zeros(tensor.NewShape(features))); err != nil {
		return nil, err
	}
	if err := m.RegisterBuffer("running_mean", tensor.Zeros(tensor.NewShape(features))); err != nil {
		return nil, err
	}
	if err := m.RegisterBuffer("running_var", tensor.Ones(tensor.NewShape(features))); err != nil {
		return nil, err
	}
	if err := m.RegisterBuffer("num_batches_tracked", tensor.Zeros(tensor.NewShape())); err != nil {
		return nil, err
	}
	return &BatchNorm1d{Module: m, Features: features, Eps: defaultBatchNormEps, Momentum: momentum}, nil
}

// ResetRunningStats zeroes running_mean, ones running_var, and zeroes the
// batch counter, as if the layer were freshly constructed.
func (b *BatchNorm1d) ResetRunningStats() error {
	if err := b.SetBuffer("running_mean", tensor.Zeros(tensor.NewShape(b.Features))); err != nil {
		return err
	}
	if err := b.SetBuffer("running_var", tensor.Ones(tensor.NewShape(b.Features))); err != nil {
		return err
	}
	return b.SetBuffer("num_batches_tracked", tensor.Zeros(tensor.NewShape()))
}

// Forward normalizes x ([batch, Features]) per-feature. In training mode
// it computes batch statistics and folds them into the running averages;
// in eval mode it normalizes using the running averages directly.
func (b *BatchNorm1d) Forward(x *graph.Node) (*graph.Node, error) {
	if x.Value().Rank() != 2 || x.Value().Shape()[1] != b.Features {
		return nil, errs.Newf(errs.ShapeMismatch, "BatchNorm1d.Forward", "expected [batch, %d], got %s", b.Features, x.Value().Shape())
	}
	ctx := b.Context()
	gamma, _ := b.Parameter("gamma")
	beta, _ := b.Parameter("beta")
	shape := x.Value().Shape()

	var meanNode, varNode *graph.Node
	if b.IsTraining() {
		batchMean, err := tensor.MeanAxis(x.Value(), 0)
		if err != nil {
			return nil, err
		}
		batchVar, err := tensor.VarAxis(x.Value(), 0)
		if err != nil {
			return nil, err
		}
		if err := b.updateRunningStats(batchMean, batchVar); err != nil {
			return nil, err
		}
		meanNode, err = broadcastReducedAlong(ctx, graph.NewLeaf(batchMean, true, "batch_mean"), 0, shape)
		if err != nil {
			return nil, err
		}
		varNode, err = broadcastReducedAlong(ctx, graph.NewLeaf(batchVar, true, "batch_var"), 0, shape)
		if err != nil {
			return nil, err
		}
	} else {
		runningMean, _ := b.Buffer("running_mean")
		runningVar, _ := b.Buffer("running_var")
		var err error
		meanNode, err = graph.BroadcastTo(ctx, graph.NewLeaf(runningMean, false, "running_mean"), shape)
		if err != nil {
			return nil, err
		}
		varNode, err = graph.BroadcastTo(ctx, graph.NewLeaf(runningVar, false, "running_var"), shape)
		if err != nil {
			return nil, err
		}
	}

	diff, err := graph.Sub(ctx, x, meanNode)
	if err != nil {
		return nil, err
	}
	varEps, err := graph.AddScalar(ctx, varNode, b.Eps)
	if err != nil {
		return nil, err
	}
	std, err := graph.Sqrt(ctx, varEps)
	if err != nil {
		return nil, err
	}
	normalized, err := graph.Div(ctx, diff, std)
	if err != nil {
		return nil, err
	}
	gammaB, err := graph.BroadcastTo(ctx, gamma, shape)
	if err != nil {
		return nil, err
	}
	betaB, err := graph.BroadcastTo(ctx, beta, shape)
	if err != nil {
		return nil, err
	}
	scaled, err := graph.Mul(ctx, normalized, gammaB)
	if err != nil {
		return nil, err
	}
	return graph.Add(ctx, scaled, betaB)
}

func (b *BatchNorm1d) updateRunningStats(batchMean, batchVar *tensor.Tensor) error {
	runningMean, _ := b.Buffer("running_mean")
	runningVar, _ := b.Buffer("running_var")
	tracked, _ := b.Buffer("num_batches_tracked")

	newMean, err := emaUpdate(runningMean, batchMean, b.Momentum)
	if err != nil {
		return err
	}
	newVar, err := emaUpdate(runningVar, batchVar, b.Momentum)
	if err != nil {
		return err
	}
	if err := b.SetBuffer("running_mean", newMean); err != nil {
		return err
	}
	if err := b.SetBuffer("running_var", newVar); err != nil {
		return err
	}
	return b.SetBuffer("num_batches_tracked", tensor.AddScalar(tracked, 1))
}

func emaUpdate(running, batch *tensor.Tensor, momentum float32) (*tensor.Tensor, error) {
	keep := tensor.MulScalar(running, 1-momentum)
	incoming := tensor.MulScalar(batch, momentum)
	return tensor.Add(keep, incoming)
}
