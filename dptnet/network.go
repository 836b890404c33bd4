// Package dptnet assembles a dual-path transformer network for
// single-channel source separation. A trainable or fixed Fourier
// filterbank encodes the waveform into basis activations, a stack of
// dual-path blocks alternates attention within and across overlapping
// chunks of frames, and per-source masks gate the activations before the
// decoder maps every source back to the time domain.
//
// Networks are built from a Config, optionally loaded from YAML:
//
//	cfg := dptnet.DefaultConfig()
//	cfg.Sources = 3
//	net, err := dptnet.New(cfg, dptnet.WithLogger(logger))
//	if err != nil {
//		...
//	}
//	sources, latent, err := net.Separate(mixture)
//
// The package runs forward passes only; there is no training loop.
package dptnet

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/seplab/dptnet/filterbank"
	"github.com/seplab/dptnet/nn"
	"github.com/seplab/dptnet/tensor"
)

// Network is an encoder, separator and decoder wired together. Build it
// with New; the zero value is not usable.
type Network struct {
	cfg Config
	log *zap.Logger

	encoder   filterbank.Encoder
	decoder   filterbank.Decoder
	separator *separator
}

// Option configures a Network during New.
type Option func(*Network)

// WithLogger attaches a logger for construction and separation events.
// The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(n *Network) {
		if log != nil {
			n.log = log
		}
	}
}

// New builds the network described by cfg. Invalid configurations are
// reported as errors wrapping ErrInvalidConfig.
func New(cfg Config, opts ...Option) (*Network, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Network{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	enc, dec, err := filterbank.New(filterbank.Config{
		Bases:        cfg.Bases,
		Kernel:       cfg.Kernel,
		Stride:       cfg.Stride,
		EncBasis:     cfg.EncBasis,
		DecBasis:     cfg.DecBasis,
		EncNonlinear: cfg.EncNonlinear,
		Window:       cfg.Window,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	n.encoder, n.decoder = enc, dec

	n.separator, err = newSeparator(cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	n.log.Info("built dual-path transformer network",
		zap.Int("bases", cfg.Bases),
		zap.Int("kernel", cfg.Kernel),
		zap.Int("stride", cfg.Stride),
		zap.Int("num_blocks", cfg.NumBlocks),
		zap.Int("sources", cfg.Sources),
		zap.Bool("causal", cfg.Causal),
		zap.Int64("parameters", n.NumParameters()),
	)
	n.log.Debug("component parameter counts",
		zap.Int64("encoder", nn.CountParameters(n.encoder.Parameters(), true)),
		zap.Int64("separator", nn.CountParameters(n.separator.Parameters(), true)),
		zap.Int64("decoder", nn.CountParameters(n.decoder.Parameters(), true)),
	)
	return n, nil
}

// Config returns the configuration the network was built with, defaults
// resolved.
func (n *Network) Config() Config { return n.cfg }

// Separate splits a mixture shaped (batch, 1, samples) into per-source
// estimates (batch, sources, samples). It also returns the masked latent
// activations (batch, sources, bases, frames) the estimates were decoded
// from. The input is zero-padded internally so every sample is covered
// by a whole analysis frame; estimates keep the original length.
func (n *Network) Separate(mixture *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	if len(mixture.Shape) != 3 {
		return nil, nil, fmt.Errorf("dptnet: mixture must be shaped (batch, 1, samples), got %v", mixture.Shape)
	}
	if mixture.Shape[1] != 1 {
		return nil, nil, fmt.Errorf("dptnet: expected a single input channel, got %d", mixture.Shape[1])
	}
	batch, samples := mixture.Shape[0], mixture.Shape[2]
	if samples < n.cfg.Kernel {
		return nil, nil, fmt.Errorf("dptnet: %d samples is shorter than the %d-sample kernel", samples, n.cfg.Kernel)
	}

	pad := 0
	if rem := (samples - n.cfg.Kernel) % n.cfg.Stride; rem != 0 {
		pad = n.cfg.Stride - rem
	}
	left := pad / 2
	right := pad - left

	x := padFrames(mixture, left, right)
	w := n.encoder.Forward(x)      // (batch, bases, frames)
	mask := n.separator.Forward(w) // (batch, sources, bases, frames)

	frames := w.Shape[2]
	latent := tensor.New(batch, n.cfg.Sources, n.cfg.Bases, frames)
	for b := 0; b < batch; b++ {
		for src := 0; src < n.cfg.Sources; src++ {
			for f := 0; f < n.cfg.Bases; f++ {
				wOff := (b*n.cfg.Bases + f) * frames
				mOff := ((b*n.cfg.Sources+src)*n.cfg.Bases + f) * frames
				for t := 0; t < frames; t++ {
					latent.Data[mOff+t] = w.Data[wOff+t] * mask.Data[mOff+t]
				}
			}
		}
	}

	decoded := n.decoder.Forward(latent.Reshape(batch*n.cfg.Sources, n.cfg.Bases, frames))
	padded := decoded.Shape[2]
	out := tensor.New(batch, n.cfg.Sources, samples)
	for i := 0; i < batch*n.cfg.Sources; i++ {
		copy(out.Data[i*samples:(i+1)*samples], decoded.Data[i*padded+left:i*padded+left+samples])
	}

	n.log.Debug("separated mixture",
		zap.Int("batch", batch),
		zap.Int("samples", samples),
		zap.Int("frames", frames),
	)
	return out, latent, nil
}

// Forward runs Separate and returns only the waveform estimates.
func (n *Network) Forward(mixture *tensor.Tensor) (*tensor.Tensor, error) {
	out, _, err := n.Separate(mixture)
	return out, err
}

// Parameters returns every weight in the network, encoder first, then
// separator, then decoder.
func (n *Network) Parameters() []*nn.Parameter {
	var params []*nn.Parameter
	params = append(params, n.encoder.Parameters()...)
	params = append(params, n.separator.Parameters()...)
	params = append(params, n.decoder.Parameters()...)
	return params
}

// NumParameters counts trainable weights. Frozen bases, such as a fixed
// Fourier filterbank, are excluded.
func (n *Network) NumParameters() int64 {
	return nn.CountParameters(n.Parameters(), true)
}
