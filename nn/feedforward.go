package nn

import (
	"math/rand"

	"github.com/seplab/dptnet/tensor"
)

// FeedForward is the position-wise two-layer stack with a ReLU between.
type FeedForward struct {
	fc1 *Linear
	fc2 *Linear
}

func NewFeedForward(dim, hidden int, rng *rand.Rand) *FeedForward {
	rng = ensureRNG(rng)
	return &FeedForward{
		fc1: NewLinear(dim, hidden, rng),
		fc2: NewLinear(hidden, dim, rng),
	}
}

func (f *FeedForward) Forward(x *tensor.Tensor) *tensor.Tensor {
	return f.fc2.Forward(tensor.ReLU(f.fc1.Forward(x)))
}

func (f *FeedForward) Parameters() []*Parameter {
	return append(f.fc1.Parameters(), f.fc2.Parameters()...)
}
