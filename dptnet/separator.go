package dptnet

import (
	"fmt"
	"math/rand"

	"github.com/seplab/dptnet/nn"
	"github.com/seplab/dptnet/tensor"
)

// separator turns the encoded mixture (batch, bases, frames) into one
// mask per source (batch, sources, bases, frames). Frames are segmented
// into overlapping chunks, refined by a stack of dual-path blocks,
// overlap-added back and projected through a gated output unit.
type separator struct {
	bases     int
	sources   int
	chunkSize int
	hopSize   int
	maskKind  string

	blocks []*DualPathBlock
	glu    *nn.GLU
}

func newSeparator(cfg Config, rng *rand.Rand) (*separator, error) {
	blocks := make([]*DualPathBlock, cfg.NumBlocks)
	for i := range blocks {
		blk, err := newDualPathBlock(cfg.Bases, cfg.HiddenChannels, cfg.NumHeads, cfg.Causal, cfg.Eps, rng)
		if err != nil {
			return nil, err
		}
		blocks[i] = blk
	}
	glu, err := nn.NewGLU(cfg.Bases, cfg.Sources*cfg.Bases, cfg.GLUNonlinear, rng)
	if err != nil {
		return nil, err
	}
	return &separator{
		bases:     cfg.Bases,
		sources:   cfg.Sources,
		chunkSize: cfg.ChunkSize,
		hopSize:   cfg.HopSize,
		maskKind:  cfg.MaskNonlinear,
		blocks:    blocks,
		glu:       glu,
	}, nil
}

func (s *separator) Forward(w *tensor.Tensor) *tensor.Tensor {
	batch, frames := w.Shape[0], w.Shape[2]

	// Pad so the frame axis splits into whole chunks. Inputs shorter than
	// one chunk pad up to exactly one.
	pad := 0
	if frames < s.chunkSize {
		pad = s.chunkSize - frames
	} else if rem := (frames - s.chunkSize) % s.hopSize; rem != 0 {
		pad = s.hopSize - rem
	}
	left := pad / 2
	right := pad - left

	x := padFrames(w, left, right)
	chunked := segment(x, s.chunkSize, s.hopSize)
	for _, blk := range s.blocks {
		chunked = blk.Forward(chunked)
	}
	x = overlapAdd(chunked, s.hopSize)
	x = cropFrames(x, left, right)

	masks := s.glu.Forward(x) // (batch, sources*bases, frames)
	mask4 := masks.Reshape(batch, s.sources, s.bases, frames)
	switch s.maskKind {
	case MaskReLU:
		return tensor.ReLU(mask4)
	case MaskSigmoid:
		return tensor.Sigmoid(mask4)
	case MaskSoftmax:
		// Normalized over sources, so per-source masks sum to one for
		// every basis and frame.
		return tensor.SoftmaxAxis(mask4, 1)
	default:
		panic(fmt.Sprintf("dptnet: unknown mask nonlinearity %q", s.maskKind))
	}
}

func (s *separator) Parameters() []*nn.Parameter {
	var params []*nn.Parameter
	for _, blk := range s.blocks {
		params = append(params, blk.Parameters()...)
	}
	return append(params, s.glu.Parameters()...)
}
