package layers

import (
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/nn/initializers"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// Conv2d applies a 2D convolution over [batch, in_channels, height, width]
// input, weight shaped [out_channels, in_channels, kernel_h, kernel_w]. The
// forward pass is expressed as im2col followed by a single matmul against
// the flattened kernel, so the whole op composes from already-differentiable
// graph primitives plus the patch-extraction op below.
type Conv2d struct {
	*nn.Module
	InChannels, OutChannels int
	KernelH, KernelW        int
	StrideH, StrideW        int
	PadH, PadW              int
}

// NewConv2d builds a Conv2d with Kaiming-uniform weight initialization and
// a zero bias.
func NewConv2d(inChannels, outChannels, kernelH, kernelW, strideH, strideW, padH, padW int, rng *rand.Rand) (*Conv2d, error) {
	m := nn.New("Conv2d")
	weight, err := initializers.KaimingUniform(1)(tensor.NewShape(outChannels, inChannels, kernelH, kernelW), rng)
	if err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("weight", weight); err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("bias", tensor.Zeros(tensor.NewShape(outChannels))); err != nil {
		return nil, err
	}
	return &Conv2d{
		Module:      m,
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelH:     kernelH,
		KernelW:     kernelW,
		StrideH:     strideH,
		StrideW:     strideW,
		PadH:        padH,
		PadW:        padW,
	}, nil
}

// OutputSize returns the spatial output dimensions for an input of height h,
// width w, following floor((d + 2*pad - kernel)/stride) + 1.
func (c *Conv2d) OutputSize(h, w int) (int, int) {
	outH := (h+2*c.PadH-c.KernelH)/c.StrideH + 1
	outW := (w+2*c.PadW-c.KernelW)/c.StrideW + 1
	return outH, outW
}

// Forward computes the convolution over x, [batch, InChannels, H, W].
func (c *Conv2d) Forward(x *graph.Node) (*graph.Node, error) {
	shape := x.Value().Shape()
	if shape.Rank() != 4 || shape[1] != c.InChannels {
		return nil, errs.Newf(errs.ShapeMismatch, "Conv2d.Forward", "expected [batch, %d, H, W], got %s", c.InChannels, shape)
	}
	batch, h, w := shape[0], shape[2], shape[3]
	outH, outW := c.OutputSize(h, w)
	if outH <= 0 || outW <= 0 {
		return nil, errs.Newf(errs.ShapeMismatch, "Conv2d.Forward", "input %s too small for kernel [%d,%d]", shape, c.KernelH, c.KernelW)
	}

	ctx := c.Context()
	patches, err := graph.Call1(ctx, &im2colOp{kernelH: c.KernelH, kernelW: c.KernelW, strideH: c.StrideH, strideW: c.StrideW, padH: c.PadH, padW: c.PadW}, x)
	if err != nil {
		return nil, err
	}

	weight, _ := c.Parameter("weight")
	weightFlat, err := graph.Reshape(ctx, weight, tensor.NewShape(c.OutChannels, c.InChannels*c.KernelH*c.KernelW))
	if err != nil {
		return nil, err
	}
	weightFlatT, err := graph.Transpose(ctx, weightFlat, []int{1, 0})
	if err != nil {
		return nil, err
	}
	projected, err := graph.MatMul(ctx, patches, weightFlatT)
	if err != nil {
		return nil, err
	}

	bias, _ := c.Parameter("bias")
	biasB, err := graph.BroadcastTo(ctx, bias, tensor.NewShape(batch*outH*outW, c.OutChannels))
	if err != nil {
		return nil, err
	}
	added, err := graph.Add(ctx, projected, biasB)
	if err != nil {
		return nil, err
	}

	reshaped, err := graph.Reshape(ctx, added, tensor.NewShape(batch, outH, outW, c.OutChannels))
	if err != nil {
		return nil, err
	}
	return graph.Transpose(ctx, reshaped, []int{0, 3, 1, 2})
}

// im2colOp extracts sliding [kernelH, kernelW] patches from a
// [batch, channels, H, W] tensor into a [batch*outH*outW,
// channels*kernelH*kernelW] matrix, one row per output position. Its
// backward scatter-adds the gradient back into the zero-padded input shape
// (col2im), accumulating at positions read by more than one patch.
type im2colOp struct {
	kernelH, kernelW int
	strideH, strideW int
	padH, padW       int
	inShape          tensor.Shape
}

func (im2colOp) Arity() int { return 1 }

func (o *im2colOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	x := inputs[0]
	shape := x.Shape()
	if shape.Rank() != 4 {
		return nil, errs.Newf(errs.Unsupported, "im2col", "expected rank-4 input, got rank %d", shape.Rank())
	}
	o.inShape = shape
	batch, ch, h, w := shape[0], shape[1], shape[2], shape[3]
	outH := (h+2*o.padH-o.kernelH)/o.strideH + 1
	outW := (w+2*o.padW-o.kernelW)/o.strideW + 1
	k := ch * o.kernelH * o.kernelW

	data := x.Data()
	strides := shape.Strides()
	out := make([]float32, batch*outH*outW*k)

	for b := 0; b < batch; b++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				row := (b*outH+oh)*outW + ow
				for c := 0; c < ch; c++ {
					for kh := 0; kh < o.kernelH; kh++ {
						ih := oh*o.strideH - o.padH + kh
						if ih < 0 || ih >= h {
							continue
						}
						for kw := 0; kw < o.kernelW; kw++ {
							iw := ow*o.strideW - o.padW + kw
							if iw < 0 || iw >= w {
								continue
							}
							col := (c*o.kernelH+kh)*o.kernelW + kw
							idx := b*strides[0] + c*strides[1] + ih*strides[2] + iw*strides[3]
							out[row*k+col] = data[idx]
						}
					}
				}
			}
		}
	}
	outT, err := tensor.FromArray(out, tensor.NewShape(batch*outH*outW, k))
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{outT}, nil
}

func (o *im2colOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	batch, ch, h, w := o.inShape[0], o.inShape[1], o.inShape[2], o.inShape[3]
	outH := (h+2*o.padH-o.kernelH)/o.strideH + 1
	outW := (w+2*o.padW-o.kernelW)/o.strideW + 1
	k := ch * o.kernelH * o.kernelW

	g := outGrads[0].Data()
	strides := o.inShape.Strides()
	gradIn := make([]float32, o.inShape.Size())

	for b := 0; b < batch; b++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				row := (b*outH+oh)*outW + ow
				for c := 0; c < ch; c++ {
					for kh := 0; kh < o.kernelH; kh++ {
						ih := oh*o.strideH - o.padH + kh
						if ih < 0 || ih >= h {
							continue
						}
						for kw := 0; kw < o.kernelW; kw++ {
							iw := ow*o.strideW - o.padW + kw
							if iw < 0 || iw >= w {
								continue
							}
							col := (c*o.kernelH+kh)*o.kernelW + kw
							idx := b*strides[0] + c*strides[1] + ih*strides[2] + iw*strides[3]
							gradIn[idx] += g[row*k+col]
						}
					}
				}
			}
		}
	}
	gradT, err := tensor.FromArray(gradIn, o.inShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{gradT}, nil
}

// MaxPool2d downsamples [batch, channels, H, W] input by taking the max
// over each non-overlapping (or strided) kernel window, recording which
// input position won each window so Backward can route the gradient there
// and nowhere else.
type MaxPool2d struct {
	*nn.Module
	KernelH, KernelW int
	StrideH, StrideW int
}

// NewMaxPool2d builds a MaxPool2d with the given window and stride.
func NewMaxPool2d(kernelH, kernelW, strideH, strideW int) *MaxPool2d {
	return &MaxPool2d{Module: nn.New("MaxPool2d"), KernelH: kernelH, KernelW: kernelW, StrideH: strideH, StrideW: strideW}
}

// Forward pools x, [batch, channels, H, W].
func (p *MaxPool2d) Forward(x *graph.Node) (*graph.Node, error) {
	if x.Value().Shape().Rank() != 4 {
		return nil, errs.Newf(errs.ShapeMismatch, "MaxPool2d.Forward", "expected rank-4 input, got %s", x.Value().Shape())
	}
	op := &maxPool2dOp{kernelH: p.KernelH, kernelW: p.KernelW, strideH: p.StrideH, strideW: p.StrideW}
	return graph.Call1(p.Context(), op, x)
}

type maxPool2dOp struct {
	kernelH, kernelW int
	strideH, strideW int
	inShape          tensor.Shape
	argmax           []int
}

func (maxPool2dOp) Arity() int { return 1 }

func (o *maxPool2dOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	x := inputs[0]
	shape := x.Shape()
	o.inShape = shape
	batch, ch, h, w := shape[0], shape[1], shape[2], shape[3]
	outH := (h-o.kernelH)/o.strideH + 1
	outW := (w-o.kernelW)/o.strideW + 1
	if outH <= 0 || outW <= 0 {
		return nil, errs.Newf(errs.ShapeMismatch, "MaxPool2d", "input %s too small for kernel [%d,%d]", shape, o.kernelH, o.kernelW)
	}

	data := x.Data()
	strides := shape.Strides()
	outSize := batch * ch * outH * outW
	out := make([]float32, outSize)
	o.argmax = make([]int, outSize)

	for b := 0; b < batch; b++ {
		for c := 0; c < ch; c++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					best := float32(0)
					bestIdx := -1
					for kh := 0; kh < o.kernelH; kh++ {
						ih := oh*o.strideH + kh
						for kw := 0; kw < o.kernelW; kw++ {
							iw := ow*o.strideW + kw
							idx := b*strides[0] + c*strides[1] + ih*strides[2] + iw*strides[3]
							v := data[idx]
							if bestIdx == -1 || v > best {
								best = v
								bestIdx = idx
							}
						}
					}
					outIdx := ((b*ch+c)*outH+oh)*outW + ow
					out[outIdx] = best
					o.argmax[outIdx] = bestIdx
				}
			}
		}
	}
	outT, err := tensor.FromArray(out, tensor.NewShape(batch, ch, outH, outW))
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{outT}, nil
}

func (o *maxPool2dOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g := outGrads[0].Data()
	gradIn := make([]float32, o.inShape.Size())
	for outIdx, idx := range o.argmax {
		gradIn[idx] += g[outIdx]
	}
	gradT, err := tensor.FromArray(gradIn, o.inShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{gradT}, nil
}

// AvgPool2d downsamples [batch, channels, H, W] input by averaging each
// kernel window; Backward distributes each output gradient evenly back
// over the window it was averaged from.
type AvgPool2d struct {
	*nn.Module
	KernelH, KernelW int
	StrideH, StrideW int
}

// NewAvgPool2d builds an AvgPool2d with the given window and stride.
func NewAvgPool2d(kernelH, kernelW, strideH, strideW int) *AvgPool2d {
	return &AvgPool2d{Module: nn.New("AvgPool2d"), KernelH: kernelH, KernelW: kernelW, StrideH: strideH, StrideW: strideW}
}

// Forward pools x, [batch, channels, H, W].
func (p *AvgPool2d) Forward(x *graph.Node) (*graph.Node, error) {
	if x.Value().Shape().Rank() != 4 {
		return nil, errs.Newf(errs.ShapeMismatch, "AvgPool2d.Forward", "expected rank-4 input, got %s", x.Value().Shape())
	}
	op := &avgPool2dOp{kernelH: p.KernelH, kernelW: p.KernelW, strideH: p.StrideH, strideW: p.StrideW}
	return graph.Call1(p.Context(), op, x)
}

type avgPool2dOp struct {
	kernelH, kernelW int
	strideH, strideW int
	inShape          tensor.Shape
}

func (avgPool2dOp) Arity() int { return 1 }

func (o *avgPool2dOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	x := inputs[0]
	shape := x.Shape()
	o.inShape = shape
	batch, ch, h, w := shape[0], shape[1], shape[2], shape[3]
	outH := (h-o.kernelH)/o.strideH + 1
	outW := (w-o.kernelW)/o.strideW + 1
	if outH <= 0 || outW <= 0 {
		return nil, errs.Newf(errs.ShapeMismatch, "AvgPool2d", "input %s too small for kernel [%d,%d]", shape, o.kernelH, o.kernelW)
	}

	data := x.Data()
	strides := shape.Strides()
	windowSize := float32(o.kernelH * o.kernelW)
	out := make([]float32, batch*ch*outH*outW)

	for b := 0; b < batch; b++ {
		for c := 0; c < ch; c++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					var sum float32
					for kh := 0; kh < o.kernelH; kh++ {
						ih := oh*o.strideH + kh
						for kw := 0; kw < o.kernelW; kw++ {
							iw := ow*o.strideW + kw
							idx := b*strides[0] + c*strides[1] + ih*strides[2] + iw*strides[3]
							sum += data[idx]
						}
					}
					outIdx := ((b*ch+c)*outH+oh)*outW + ow
					out[outIdx] = sum / windowSize
				}
			}
		}
	}
	outT, err := tensor.FromArray(out, tensor.NewShape(batch, ch, outH, outW))
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{outT}, nil
}

func (o *avgPool2dOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	batch, ch, h, w := o.inShape[0], o.inShape[1], o.inShape[2], o.inShape[3]
	outH := (h-o.kernelH)/o.strideH + 1
	outW := (w-o.kernelW)/o.strideW + 1
	windowSize := float32(o.kernelH * o.kernelW)

	g := outGrads[0].Data()
	strides := o.inShape.Strides()
	gradIn := make([]float32, o.inShape.Size())

	for b := 0; b < batch; b++ {
		for c := 0; c < ch; c++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					outIdx := ((b*ch+c)*outH+oh)*outW + ow
					share := g[outIdx] / windowSize
					for kh := 0; kh < o.kernelH; kh++ {
						ih := oh*o.strideH + kh
						for kw := 0; kw < o.kernelW; kw++ {
							iw := ow*o.strideW + kw
							idx := b*strides[0] + c*strides[1] + ih*strides[2] + iw*strides[3]
							gradIn[idx] += share
						}
					}
				}
			}
		}
	}
	gradT, err := tensor.FromArray(gradIn, o.inShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{gradT}, nil
}

// LazyLinear is a Linear whose in_features is inferred from the first
// input it is called on, via the Module lazy-initialization mechanism,
// rather than supplied at construction time.
type LazyLinear struct {
	*nn.Module
	OutFeatures int
	InFeatures  int // 0 until the first Forward call resolves it
}

// NewLazyLinear builds a LazyLinear that defers weight/bias creation
// until its first Forward call.
func NewLazyLinear(outFeatures int, rng *rand.Rand) *LazyLinear {
	m := nn.New("LazyLinear")
	l := &LazyLinear{Module: m, OutFeatures: outFeatures}
	m.DeferInit(func(inputShape tensor.Shape) error {
		if inputShape.Rank() != 2 {
			return errs.Newf(errs.ShapeMismatch, "LazyLinear", "expected rank-2 input, got %s", inputShape)
		}
		inFeatures := inputShape[1]
		weight, err := initializers.KaimingUniform(1)(tensor.NewShape(outFeatures, inFeatures), rng)
		if err != nil {
			return err
		}
		if _, err := m.RegisterParameter("weight", weight); err != nil {
			return err
		}
		if _, err := m.RegisterParameter("bias", tensor.Zeros(tensor.NewShape(outFeatures))); err != nil {
			return err
		}
		l.InFeatures = inFeatures
		return nil
	})
	return l
}

// Forward resolves the lazy weight/bias on the first call (inferring
// InFeatures from x) and computes x @ weight^T + bias on every call.
// A later call whose last axis differs from the first is a fatal
// LazyInitFailure, surfaced by Module.ResolveLazy; the batch size may
// change between calls.
func (l *LazyLinear) Forward(x *graph.Node) (*graph.Node, error) {
	resolveShape := x.Value().Shape()
	if resolveShape.Rank() == 2 {
		resolveShape = tensor.NewShape(1, resolveShape[1])
	}
	if err := l.ResolveLazy(resolveShape); err != nil {
		return nil, err
	}
	ctx := l.Context()
	weight, _ := l.Parameter("weight")
	bias, _ := l.Parameter("bias")
	weightT, err := graph.Transpose(ctx, weight, []int{1, 0})
	if err != nil {
		return nil, err
	}
	projected, err := graph.MatMul(ctx, x, weightT)
	if err != nil {
		return nil, err
	}
	return graph.Add(ctx, projected, bias)
}

// LazyConv2d is a Conv2d whose in_channels is inferred from the first
// input it is called on, via the Module lazy-initialization mechanism.
type LazyConv2d struct {
	*nn.Module
	OutChannels      int
	KernelH, KernelW int
	StrideH, StrideW int
	PadH, PadW       int
	InChannels       int // 0 until the first Forward call resolves it
}

// NewLazyConv2d builds a LazyConv2d that defers kernel/bias creation
// until its first Forward call.
func NewLazyConv2d(outChannels, kernelH, kernelW, strideH, strideW, padH, padW int, rng *rand.Rand) *LazyConv2d {
	m := nn.New("LazyConv2d")
	c := &LazyConv2d{
		Module:      m,
		OutChannels: outChannels,
		KernelH:     kernelH,
		KernelW:     kernelW,
		StrideH:     strideH,
		StrideW:     strideW,
		PadH:        padH,
		PadW:        padW,
	}
	m.DeferInit(func(inputShape tensor.Shape) error {
		if inputShape.Rank() != 4 {
			return errs.Newf(errs.ShapeMismatch, "LazyConv2d", "expected rank-4 input, got %s", inputShape)
		}
		inChannels := inputShape[1]
		weight, err := initializers.KaimingUniform(1)(tensor.NewShape(outChannels, inChannels, kernelH, kernelW), rng)
		if err != nil {
			return err
		}
		if _, err := m.RegisterParameter("weight", weight); err != nil {
			return err
		}
		if _, err := m.RegisterParameter("bias", tensor.Zeros(tensor.NewShape(outChannels))); err != nil {
			return err
		}
		c.InChannels = inChannels
		return nil
	})
	return c
}

// OutputSize returns the spatial output dimensions for an input of height
// h, width w, following floor((d + 2*pad - kernel)/stride) + 1.
func (c *LazyConv2d) OutputSize(h, w int) (int, int) {
	outH := (h+2*c.PadH-c.KernelH)/c.StrideH + 1
	outW := (w+2*c.PadW-c.KernelW)/c.StrideW + 1
	return outH, outW
}

// Forward resolves the lazy kernel/bias on the first call (inferring
// InChannels from x) and computes the convolution on every call.
func (c *LazyConv2d) Forward(x *graph.Node) (*graph.Node, error) {
	if err := c.ResolveLazy(x.Value().Shape()); err != nil {
		return nil, err
	}
	shape := x.Value().Shape()
	batch, h, w := shape[0], shape[2], shape[3]
	outH, outW := c.OutputSize(h, w)
	if outH <= 0 || outW <= 0 {
		return nil, errs.Newf(errs.ShapeMismatch, "LazyConv2d.Forward", "input %s too small for kernel [%d,%d]", shape, c.KernelH, c.KernelW)
	}

	ctx := c.Context()
	patches, err := graph.Call1(ctx, &im2colOp{kernelH: c.KernelH, kernelW: c.KernelW, strideH: c.StrideH, strideW: c.StrideW, padH: c.PadH, padW: c.PadW}, x)
	if err != nil {
		return nil, err
	}

	weight, _ := c.Parameter("weight")
	weightFlat, err := graph.Reshape(ctx, weight, tensor.NewShape(c.OutChannels, c.InChannels*c.KernelH*c.KernelW))
	if err != nil {
		return nil, err
	}
	weightFlatT, err := graph.Transpose(ctx, weightFlat, []int{1, 0})
	if err != nil {
		return nil, err
	}
	projected, err := graph.MatMul(ctx, patches, weightFlatT)
	if err != nil {
		return nil, err
	}

	bias, _ := c.Parameter("bias")
	biasB, err := graph.BroadcastTo(ctx, bias, tensor.NewShape(batch*outH*outW, c.OutChannels))
	if err != nil {
		return nil, err
	}
	added, err := graph.Add(ctx, projected, biasB)
	if err != nil {
		return nil, err
	}

	reshaped, err := graph.Reshape(ctx, added, tensor.NewShape(batch, outH, outW, c.OutChannels))
	if err != nil {
		return nil, err
	}
	return graph.Transpose(ctx, reshaped, []int{0, 3, 1, 2})
}
