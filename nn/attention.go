package nn

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/seplab/dptnet/tensor"
)

// MultiHeadAttention is scaled dot-product self-attention over sequences
// laid out (batch, seq, dim). With Causal set, position t attends only to
// positions up to t.
type MultiHeadAttention struct {
	Dim      int
	NumHeads int
	HeadDim  int
	Causal   bool

	query *Linear
	key   *Linear
	value *Linear
	out   *Linear
}

func NewMultiHeadAttention(dim, numHeads int, causal bool, rng *rand.Rand) (*MultiHeadAttention, error) {
	if numHeads <= 0 || dim%numHeads != 0 {
		return nil, fmt.Errorf("nn: model dim %d is not divisible by %d heads", dim, numHeads)
	}
	rng = ensureRNG(rng)
	return &MultiHeadAttention{
		Dim:      dim,
		NumHeads: numHeads,
		HeadDim:  dim / numHeads,
		Causal:   causal,
		query:    NewLinear(dim, dim, rng),
		key:      NewLinear(dim, dim, rng),
		value:    NewLinear(dim, dim, rng),
		out:      NewLinear(dim, dim, rng),
	}, nil
}

func (a *MultiHeadAttention) Forward(x *tensor.Tensor) *tensor.Tensor {
	batch, seqLen := x.Shape[0], x.Shape[1]

	// === STEP 1: Q, K, V projections ===
	q := a.query.Forward(x)
	k := a.key.Forward(x)
	v := a.value.Forward(x)

	// === STEP 2: Split heads ===
	// (batch, seq, dim) -> (batch*heads, seq, headDim)
	qh := splitHeads(q, a.NumHeads, a.HeadDim)
	kh := splitHeads(k, a.NumHeads, a.HeadDim)
	vh := splitHeads(v, a.NumHeads, a.HeadDim)

	// === STEP 3: Attention scores ===
	scores := tensor.BatchMatMulTransB(qh, kh)
	scale := 1 / math32.Sqrt(float32(a.HeadDim))
	for i := range scores.Data {
		scores.Data[i] *= scale
	}

	// === STEP 4: Causal mask (no peeking ahead) ===
	if a.Causal {
		rows := batch * a.NumHeads * seqLen
		for r := 0; r < rows; r++ {
			qPos := r % seqLen
			off := r * seqLen
			for kPos := qPos + 1; kPos < seqLen; kPos++ {
				scores.Data[off+kPos] = -1e9 // ~0 after softmax
			}
		}
	}

	// === STEP 5: Softmax and weighted sum ===
	attn := tensor.SoftmaxLastDim(scores)
	ctxt := tensor.BatchMatMul(attn, vh)

	// === STEP 6: Merge heads and project out ===
	merged := mergeHeads(ctxt, batch, a.NumHeads, a.HeadDim)
	return a.out.Forward(merged)
}

func splitHeads(x *tensor.Tensor, heads, headDim int) *tensor.Tensor {
	batch, seqLen, dim := x.Shape[0], x.Shape[1], x.Shape[2]
	out := tensor.New(batch*heads, seqLen, headDim)
	for b := 0; b < batch; b++ {
		for s := 0; s < seqLen; s++ {
			src := (b*seqLen + s) * dim
			for h := 0; h < heads; h++ {
				dst := ((b*heads+h)*seqLen + s) * headDim
				copy(out.Data[dst:dst+headDim], x.Data[src+h*headDim:src+(h+1)*headDim])
			}
		}
	}
	return out
}

func mergeHeads(x *tensor.Tensor, batch, heads, headDim int) *tensor.Tensor {
	seqLen := x.Shape[1]
	dim := heads * headDim
	out := tensor.New(batch, seqLen, dim)
	for b := 0; b < batch; b++ {
		for s := 0; s < seqLen; s++ {
			dst := (b*seqLen + s) * dim
			for h := 0; h < heads; h++ {
				src := ((b*heads+h)*seqLen + s) * headDim
				copy(out.Data[dst+h*headDim:dst+(h+1)*headDim], x.Data[src:src+headDim])
			}
		}
	}
	return out
}

func (a *MultiHeadAttention) Parameters() []*Parameter {
	var params []*Parameter
	params = append(params, a.query.Parameters()...)
	params = append(params, a.key.Parameters()...)
	params = append(params, a.value.Parameters()...)
	params = append(params, a.out.Parameters()...)
	return params
}
