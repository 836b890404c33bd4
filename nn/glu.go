package nn

import (
	"fmt"
	"math/rand"

	"github.com/seplab/dptnet/tensor"
)

// GLU expands channels with a gated projection, act(xW) ⊙ sigmoid(xWg),
// applied independently at every frame of a (batch, channels, frames)
// tensor. The output activation is selected by name at construction.
type GLU struct {
	InFeatures  int
	OutFeatures int

	lin  *Linear
	gate *Linear
	act  func(*tensor.Tensor) *tensor.Tensor
}

func NewGLU(in, out int, activation string, rng *rand.Rand) (*GLU, error) {
	act, err := ActivationByName(activation)
	if err != nil {
		return nil, err
	}
	rng = ensureRNG(rng)
	return &GLU{
		InFeatures:  in,
		OutFeatures: out,
		lin:         NewLinear(in, out, rng),
		gate:        NewLinear(in, out, rng),
		act:         act,
	}, nil
}

func (g *GLU) Forward(x *tensor.Tensor) *tensor.Tensor {
	if len(x.Shape) != 3 || x.Shape[1] != g.InFeatures {
		panic(fmt.Sprintf("nn: glu expects (batch, %d, frames), got %v", g.InFeatures, x.Shape))
	}
	batch, ch, frames := x.Shape[0], x.Shape[1], x.Shape[2]

	// Channels-major to frame-major so both projections run as one product.
	cols := tensor.New(batch*frames, ch)
	for b := 0; b < batch; b++ {
		for c := 0; c < ch; c++ {
			src := (b*ch + c) * frames
			for t := 0; t < frames; t++ {
				cols.Data[(b*frames+t)*ch+c] = x.Data[src+t]
			}
		}
	}

	val := g.act(g.lin.Forward(cols))
	gate := tensor.Sigmoid(g.gate.Forward(cols))
	prod := tensor.Mul(val, gate)

	out := tensor.New(batch, g.OutFeatures, frames)
	for b := 0; b < batch; b++ {
		for t := 0; t < frames; t++ {
			src := (b*frames + t) * g.OutFeatures
			for c := 0; c < g.OutFeatures; c++ {
				out.Data[(b*g.OutFeatures+c)*frames+t] = prod.Data[src+c]
			}
		}
	}
	return out
}

func (g *GLU) Parameters() []*Parameter {
	return append(g.lin.Parameters(), g.gate.Parameters()...)
}
