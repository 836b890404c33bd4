package nn

import (
	"math/rand"

	"github.com/seplab/dptnet/tensor"
)

// TransformerLayer is one post-norm transformer encoder layer: sinusoidal
// positional encoding, multi-head self-attention and a position-wise
// feed-forward stack, each sublayer wrapped in residual + LayerNorm. The
// same layer serves any sequence axis; callers fold their data into
// (batch, seq, dim) and set causal as needed.
type TransformerLayer struct {
	Dim int

	pos   *PositionalEncoding
	attn  *MultiHeadAttention
	norm1 *LayerNorm
	ffn   *FeedForward
	norm2 *LayerNorm
}

func NewTransformerLayer(dim, hidden, numHeads int, causal bool, eps float32, rng *rand.Rand) (*TransformerLayer, error) {
	rng = ensureRNG(rng)
	attn, err := NewMultiHeadAttention(dim, numHeads, causal, rng)
	if err != nil {
		return nil, err
	}
	return &TransformerLayer{
		Dim:   dim,
		pos:   NewPositionalEncoding(dim),
		attn:  attn,
		norm1: NewLayerNorm(dim, eps),
		ffn:   NewFeedForward(dim, hidden, rng),
		norm2: NewLayerNorm(dim, eps),
	}, nil
}

// Causal reports whether the attention sublayer masks future positions.
func (l *TransformerLayer) Causal() bool { return l.attn.Causal }

func (l *TransformerLayer) Forward(x *tensor.Tensor) *tensor.Tensor {
	h := l.pos.Forward(x)
	attnOut := l.attn.Forward(h)
	h = l.norm1.Forward(attnOut, h)
	ffnOut := l.ffn.Forward(h)
	return l.norm2.Forward(ffnOut, h)
}

func (l *TransformerLayer) Parameters() []*Parameter {
	var params []*Parameter
	params = append(params, l.attn.Parameters()...)
	params = append(params, l.norm1.Parameters()...)
	params = append(params, l.ffn.Parameters()...)
	params = append(params, l.norm2.Parameters()...)
	return params
}
