package nn

import (
	"math"

	"github.com/seplab/dptnet/tensor"
)

// LayerNorm normalizes the last axis with learned scale and shift. Means
// and variances accumulate in float64 so small eps values stay meaningful.
type LayerNorm struct {
	Dim   int
	Eps   float32
	Gamma *Parameter
	Beta  *Parameter
}

// NewLayerNorm builds a layer norm over dim features. A zero eps falls back
// to 1e-5.
func NewLayerNorm(dim int, eps float32) *LayerNorm {
	if eps == 0 {
		eps = 1e-5
	}
	gamma := tensor.New(dim)
	for i := range gamma.Data {
		gamma.Data[i] = 1
	}
	return &LayerNorm{
		Dim:   dim,
		Eps:   eps,
		Gamma: &Parameter{Data: gamma, Trainable: true},
		Beta:  &Parameter{Data: tensor.New(dim), Trainable: true},
	}
}

// Forward normalizes x over its last axis. A non-nil residual is added in
// first, which is the shape the transformer sublayers use.
func (l *LayerNorm) Forward(x, residual *tensor.Tensor) *tensor.Tensor {
	in := x
	if residual != nil {
		in = tensor.Add(x, residual)
	}

	rows := in.Size() / l.Dim
	out := tensor.New(in.Shape...)
	for r := 0; r < rows; r++ {
		start := r * l.Dim

		var sum float64
		for i := 0; i < l.Dim; i++ {
			sum += float64(in.Data[start+i])
		}
		mean := sum / float64(l.Dim)

		var variance float64
		for i := 0; i < l.Dim; i++ {
			d := float64(in.Data[start+i]) - mean
			variance += d * d
		}
		variance /= float64(l.Dim)

		invStd := 1 / math.Sqrt(variance+float64(l.Eps))
		for i := 0; i < l.Dim; i++ {
			normalized := float32((float64(in.Data[start+i]) - mean) * invStd)
			out.Data[start+i] = normalized*l.Gamma.Data.Data[i] + l.Beta.Data.Data[i]
		}
	}
	return out
}

func (l *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{l.Gamma, l.Beta}
}
