package layers

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// PositionalEncoding adds the fixed sinusoidal position signal from
// "Attention Is All You Need" to its input, followed by an optional
// dropout. The table is precomputed once at construction time and held
// as a non-trainable buffer.
type PositionalEncoding struct {
	*nn.Module
	MaxLen, DModel int
	dropout        *Dropout
}

// NewPositionalEncoding precomputes a [maxLen, dModel] encoding table.
// If p > 0, a trailing dropout with that rate is applied after the
// position signal is added.
func NewPositionalEncoding(maxLen, dModel int, p float32, rng *rand.Rand) (*PositionalEncoding, error) {
	m := nn.New("PositionalEncoding")
	table := tensor.Zeros(tensor.NewShape(maxLen, dModel))
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dModel; i += 2 {
			freq := math32.Pow(10000, -float32(i)/float32(dModel))
			angle := float32(pos) * freq
			table.Set(pos*dModel+i, math32.Sin(angle))
			if i+1 < dModel {
				table.Set(pos*dModel+i+1, math32.Cos(angle))
			}
		}
	}
	if err := m.RegisterBuffer("pe", table); err != nil {
		return nil, err
	}
	pe := &PositionalEncoding{Module: m, MaxLen: maxLen, DModel: dModel}
	if p > 0 {
		drop := NewDropout(p, rng)
		if err := m.RegisterSubmodule("dropout", drop.Module); err != nil {
			return nil, err
		}
		pe.dropout = drop
	}
	return pe, nil
}

// Forward adds the position signal for the first seqLen rows of x (shape
// [seqLen, DModel]) and applies dropout if configured.
func (p *PositionalEncoding) Forward(x *graph.Node) (*graph.Node, error) {
	seqLen := x.Value().Shape()[0]
	table, _ := p.Buffer("pe")
	slice, err := tensor.SubArray(table, 0, seqLen, 0, p.DModel)
	if err != nil {
		return nil, err
	}
	posNode := graph.NewLeaf(slice, false, "pe_slice")
	out, err := graph.Add(p.Context(), x, posNode)
	if err != nil {
		return nil, err
	}
	if p.dropout != nil {
		return p.dropout.Forward(out)
	}
	return out, nil
}
