package dptnet

import (
	"math/rand"

	"github.com/seplab/dptnet/nn"
	"github.com/seplab/dptnet/tensor"
)

// DualPathBlock applies one transformer pass along each axis of a
// segmented (batch, channels, chunks, chunkSize) tensor: the intra pass
// attends within each chunk, the inter pass across chunks at a fixed
// chunk offset. Causality only ever restricts the inter pass; within a
// chunk the model always sees both directions.
type DualPathBlock struct {
	intra *nn.TransformerLayer
	inter *nn.TransformerLayer
}

func newDualPathBlock(channels, hidden, heads int, causal bool, eps float32, rng *rand.Rand) (*DualPathBlock, error) {
	intra, err := nn.NewTransformerLayer(channels, hidden, heads, false, eps, rng)
	if err != nil {
		return nil, err
	}
	inter, err := nn.NewTransformerLayer(channels, hidden, heads, causal, eps, rng)
	if err != nil {
		return nil, err
	}
	return &DualPathBlock{intra: intra, inter: inter}, nil
}

func (blk *DualPathBlock) Forward(x *tensor.Tensor) *tensor.Tensor {
	x = runAxis(blk.intra, x, true)
	return runAxis(blk.inter, x, false)
}

// runAxis folds the chosen axis into transformer sequences, runs the
// layer and scatters the result back. Intra sequences walk the positions
// of one chunk, inter sequences walk the chunks at one position.
func runAxis(layer *nn.TransformerLayer, x *tensor.Tensor, intra bool) *tensor.Tensor {
	b, c, chunks, chunkSize := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]

	var batch, seq int
	if intra {
		batch, seq = b*chunks, chunkSize
	} else {
		batch, seq = b*chunkSize, chunks
	}
	folded := tensor.New(batch, seq, c)
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			base := (bi*c + ci) * chunks * chunkSize
			for k := 0; k < chunks; k++ {
				for l := 0; l < chunkSize; l++ {
					v := x.Data[base+k*chunkSize+l]
					if intra {
						folded.Data[((bi*chunks+k)*chunkSize+l)*c+ci] = v
					} else {
						folded.Data[((bi*chunkSize+l)*chunks+k)*c+ci] = v
					}
				}
			}
		}
	}

	out := layer.Forward(folded)

	result := tensor.New(b, c, chunks, chunkSize)
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			base := (bi*c + ci) * chunks * chunkSize
			for k := 0; k < chunks; k++ {
				for l := 0; l < chunkSize; l++ {
					var v float32
					if intra {
						v = out.Data[((bi*chunks+k)*chunkSize+l)*c+ci]
					} else {
						v = out.Data[((bi*chunkSize+l)*chunks+k)*c+ci]
					}
					result.Data[base+k*chunkSize+l] = v
				}
			}
		}
	}
	return result
}

func (blk *DualPathBlock) Parameters() []*nn.Parameter {
	params := blk.intra.Parameters()
	return append(params, blk.inter.Parameters()...)
}
