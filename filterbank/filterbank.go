// Package filterbank provides the analysis/synthesis basis pairs around the
// separation network: a trainable convolutional basis, a fixed Fourier
// basis, a trainable Fourier-initialized basis and a pseudo-inverse
// synthesis basis.
//
// The factory returns a matched encoder/decoder pair:
//
//	basis kinds    trainable | fourier | trainable_fourier | pinv (decoder only)
//	windows        hann (default) | hamming | rect  (Fourier kinds only)
//	encoder shape  (batch, 1, T)      -> (batch, bases, frames)
//	decoder shape  (batch, bases, F)  -> (batch, 1, (F-1)*stride+kernel)
//
// where frames = (T-kernel)/stride + 1. Fixed Fourier weights are
// registered as frozen parameters so they ride along with the model but
// stay out of trainable counts.
package filterbank

import (
	"fmt"
	"math/rand"

	"github.com/seplab/dptnet/nn"
	"github.com/seplab/dptnet/tensor"
)

// Basis kind names accepted by the factory.
const (
	BasisTrainable        = "trainable"
	BasisFourier          = "fourier"
	BasisTrainableFourier = "trainable_fourier"
	BasisPinv             = "pinv"
)

// Window names accepted for the Fourier kinds.
const (
	WindowHann    = "hann"
	WindowHamming = "hamming"
	WindowRect    = "rect"
)

// Config selects the basis pair.
type Config struct {
	Bases  int
	Kernel int
	Stride int

	EncBasis string // trainable | fourier | trainable_fourier
	DecBasis string // trainable | fourier | trainable_fourier | pinv

	// EncNonlinear is an optional activation after the analysis basis,
	// currently "relu" or empty. It only applies to a trainable encoder
	// and is dropped when the decoder is pinv, which assumes a linear
	// analysis.
	EncNonlinear string

	// Window shapes the Fourier analysis/synthesis atoms. Empty means hann.
	Window string
}

// Encoder maps waveforms (batch, 1, T) into the basis domain.
type Encoder interface {
	nn.Module
	Forward(x *tensor.Tensor) *tensor.Tensor
	// Basis returns the analysis matrix (bases, kernel) currently in effect.
	Basis() *tensor.Tensor
}

// Decoder maps basis-domain tensors (batch, bases, frames) back to
// waveforms (batch, 1, T).
type Decoder interface {
	nn.Module
	Forward(w *tensor.Tensor) *tensor.Tensor
}

// New builds the encoder/decoder pair named by cfg. Unknown basis names,
// unknown windows and Fourier shape constraints are reported as errors
// before any weights are allocated.
func New(cfg Config, rng *rand.Rand) (Encoder, Decoder, error) {
	if cfg.Bases <= 0 || cfg.Kernel <= 0 || cfg.Stride <= 0 {
		return nil, nil, fmt.Errorf("filterbank: bases, kernel and stride must be positive, got %d, %d, %d",
			cfg.Bases, cfg.Kernel, cfg.Stride)
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	encBasis := cfg.EncBasis
	if encBasis == "" {
		encBasis = BasisTrainable
	}
	decBasis := cfg.DecBasis
	if decBasis == "" {
		decBasis = BasisTrainable
	}

	var win []float32
	if isFourier(encBasis) || isFourier(decBasis) {
		if cfg.Bases%2 != 0 {
			return nil, nil, fmt.Errorf("filterbank: fourier bases must be even, got %d", cfg.Bases)
		}
		if cfg.Bases/2 > cfg.Kernel/2+1 {
			return nil, nil, fmt.Errorf("filterbank: %d fourier bases need %d bins but kernel %d only has %d",
				cfg.Bases, cfg.Bases/2, cfg.Kernel, cfg.Kernel/2+1)
		}
		var err error
		win, err = buildWindow(cfg.Window, cfg.Kernel)
		if err != nil {
			return nil, nil, err
		}
	}

	switch cfg.EncNonlinear {
	case "", "relu":
	default:
		return nil, nil, fmt.Errorf("filterbank: unknown encoder nonlinearity %q", cfg.EncNonlinear)
	}
	relu := cfg.EncNonlinear == "relu" && encBasis == BasisTrainable && decBasis != BasisPinv

	var enc Encoder
	switch encBasis {
	case BasisTrainable:
		enc = newConvEncoder(cfg.Bases, cfg.Kernel, cfg.Stride, relu, rng)
	case BasisFourier:
		enc = newFourierEncoder(cfg.Bases, cfg.Kernel, cfg.Stride, win)
	case BasisTrainableFourier:
		enc = newDFTConvEncoder(cfg.Bases, cfg.Kernel, cfg.Stride, win)
	case BasisPinv:
		return nil, nil, fmt.Errorf("filterbank: pinv is a decoder basis")
	default:
		return nil, nil, fmt.Errorf("filterbank: unknown encoder basis %q", encBasis)
	}

	var dec Decoder
	switch decBasis {
	case BasisTrainable:
		dec = newConvDecoder(cfg.Bases, cfg.Kernel, cfg.Stride, rng)
	case BasisFourier:
		dec = newFourierDecoder(cfg.Bases, cfg.Kernel, cfg.Stride, win)
	case BasisTrainableFourier:
		dec = newDFTConvDecoder(cfg.Bases, cfg.Kernel, cfg.Stride, win)
	case BasisPinv:
		if cfg.Kernel%cfg.Stride != 0 {
			return nil, nil, fmt.Errorf("filterbank: pinv decoder needs kernel divisible by stride, got %d/%d",
				cfg.Kernel, cfg.Stride)
		}
		var err error
		dec, err = newPinvDecoder(enc.Basis(), cfg.Kernel, cfg.Stride)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("filterbank: unknown decoder basis %q", decBasis)
	}

	return enc, dec, nil
}

func isFourier(kind string) bool {
	return kind == BasisFourier || kind == BasisTrainableFourier
}

// numFrames is the analysis frame count for an input of length t.
func numFrames(t, kernel, stride int) int {
	return (t-kernel)/stride + 1
}
