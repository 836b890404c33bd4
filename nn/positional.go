package nn

import (
	"math"

	"github.com/seplab/dptnet/tensor"
)

// PositionalEncoding adds the sinusoidal position signal: sine on even
// feature indices, cosine on odd, with wavelengths growing geometrically
// from 2π to 10000·2π. The table has no trainable weights and grows on
// demand to the longest sequence seen.
type PositionalEncoding struct {
	Dim   int
	table *tensor.Tensor
}

func NewPositionalEncoding(dim int) *PositionalEncoding {
	return &PositionalEncoding{Dim: dim}
}

func (p *PositionalEncoding) ensure(rows int) {
	if p.table != nil && p.table.Shape[0] >= rows {
		return
	}
	if p.table != nil && 2*p.table.Shape[0] > rows {
		rows = 2 * p.table.Shape[0]
	}

	table := tensor.New(rows, p.Dim)
	for pos := 0; pos < rows; pos++ {
		for i := 0; i < p.Dim; i += 2 {
			angle := float64(pos) / math.Pow(10000, float64(i)/float64(p.Dim))
			table.Data[pos*p.Dim+i] = float32(math.Sin(angle))
			if i+1 < p.Dim {
				table.Data[pos*p.Dim+i+1] = float32(math.Cos(angle))
			}
		}
	}
	p.table = table
}

// Forward adds the encoding to x, which is laid out (batch, seq, dim).
func (p *PositionalEncoding) Forward(x *tensor.Tensor) *tensor.Tensor {
	batch, seqLen := x.Shape[0], x.Shape[1]
	p.ensure(seqLen)

	out := tensor.New(x.Shape...)
	for b := 0; b < batch; b++ {
		for t := 0; t < seqLen; t++ {
			off := (b*seqLen + t) * p.Dim
			tab := t * p.Dim
			for c := 0; c < p.Dim; c++ {
				out.Data[off+c] = x.Data[off+c] + p.table.Data[tab+c]
			}
		}
	}
	return out
}
