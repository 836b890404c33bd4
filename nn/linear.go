package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/seplab/dptnet/tensor"
)

// Linear is a dense projection y = xW + b. The weight is stored (in, out)
// so the forward pass is a plain row-major product.
type Linear struct {
	InFeatures  int
	OutFeatures int
	Weight      *Parameter
	Bias        *Parameter
}

// NewLinear builds a linear layer with He-initialized weights and zero bias.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	rng = ensureRNG(rng)
	stddev := math.Sqrt(2.0 / float64(in))
	return &Linear{
		InFeatures:  in,
		OutFeatures: out,
		Weight:      &Parameter{Data: tensor.FromSlice(randomWeights(rng, in*out, stddev), in, out), Trainable: true},
		Bias:        &Parameter{Data: tensor.New(out), Trainable: true},
	}
}

// Forward applies the projection over the last axis of x; any leading axes
// are treated as batch.
func (l *Linear) Forward(x *tensor.Tensor) *tensor.Tensor {
	last := x.Shape[len(x.Shape)-1]
	if last != l.InFeatures {
		panic(fmt.Sprintf("nn: linear expects %d input features, got shape %v", l.InFeatures, x.Shape))
	}

	rows := x.Size() / l.InFeatures
	y := tensor.MatMul(x.Reshape(rows, l.InFeatures), l.Weight.Data)
	for r := 0; r < rows; r++ {
		off := r * l.OutFeatures
		for c := 0; c < l.OutFeatures; c++ {
			y.Data[off+c] += l.Bias.Data.Data[c]
		}
	}

	outShape := append(append([]int(nil), x.Shape[:len(x.Shape)-1]...), l.OutFeatures)
	return y.Reshape(outShape...)
}

func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.Weight, l.Bias}
}
