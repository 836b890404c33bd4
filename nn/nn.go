// Package nn provides the layers the separation model is assembled from:
// dense projections, layer normalization, sinusoidal positional encoding,
// multi-head self-attention, position-wise feed-forward stacks and gated
// output projections.
//
// Layers accept and return tensor values and register their weights as
// Parameters. Frozen parameters (Trainable false) stay in the model but are
// excluded from trainable counts, which is how fixed analysis bases are
// carried.
package nn

import (
	"math/rand"

	"github.com/seplab/dptnet/tensor"
)

// Parameter is a weight tensor with its trainability flag.
type Parameter struct {
	Data      *tensor.Tensor
	Trainable bool
}

// Module is anything that owns parameters.
type Module interface {
	Parameters() []*Parameter
}

// CountParameters sums element counts, optionally over trainable
// parameters only.
func CountParameters(params []*Parameter, trainableOnly bool) int64 {
	var total int64
	for _, p := range params {
		if trainableOnly && !p.Trainable {
			continue
		}
		total += int64(p.Data.Size())
	}
	return total
}

// randomWeights draws He-scaled normal weights.
func randomWeights(rng *rand.Rand, n int, stddev float64) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = float32(rng.NormFloat64() * stddev)
	}
	return w
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return rng
}
