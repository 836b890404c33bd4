package dptnet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seplab/dptnet/filterbank"
)

// Mask nonlinearities accepted by the separator.
const (
	MaskReLU    = "relu"
	MaskSigmoid = "sigmoid"
	MaskSoftmax = "softmax"
)

// Config describes a network. Zero values for stride, hop size, eps and
// the string fields are filled with defaults at build time; everything
// else must be set.
type Config struct {
	// Filterbank.
	Bases        int    `yaml:"bases"`
	Kernel       int    `yaml:"kernel"`
	Stride       int    `yaml:"stride"` // 0 means kernel/2
	EncBasis     string `yaml:"enc_basis"`
	DecBasis     string `yaml:"dec_basis"`
	EncNonlinear string `yaml:"enc_nonlinear"`
	Window       string `yaml:"window"`

	// Separator.
	HiddenChannels int    `yaml:"hidden_channels"`
	ChunkSize      int    `yaml:"chunk_size"`
	HopSize        int    `yaml:"hop_size"` // 0 means chunk_size/2
	NumBlocks      int    `yaml:"num_blocks"`
	NumHeads       int    `yaml:"num_heads"`
	Causal         bool   `yaml:"causal"`
	MaskNonlinear  string `yaml:"mask_nonlinear"`
	GLUNonlinear   string `yaml:"glu_nonlinear"`

	Sources int     `yaml:"sources"`
	Eps     float32 `yaml:"eps"` // 0 means 1e-12

	// Seed fixes weight initialization; 0 draws a fresh seed.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig is the reference configuration: a trainable 64-basis
// filterbank over 16-sample windows and a causal six-block separator
// splitting two sources.
func DefaultConfig() Config {
	return Config{
		Bases:          64,
		Kernel:         16,
		Stride:         8,
		EncBasis:       filterbank.BasisTrainable,
		DecBasis:       filterbank.BasisTrainable,
		Window:         filterbank.WindowHann,
		HiddenChannels: 256,
		ChunkSize:      100,
		HopSize:        50,
		NumBlocks:      6,
		NumHeads:       4,
		Causal:         true,
		MaskNonlinear:  MaskSigmoid,
		GLUNonlinear:   "tanh",
		Sources:        2,
		Eps:            1e-12,
	}
}

// withDefaults resolves the documented zero-value shorthands.
func (c Config) withDefaults() Config {
	if c.Stride == 0 {
		c.Stride = c.Kernel / 2
	}
	if c.HopSize == 0 {
		c.HopSize = c.ChunkSize / 2
	}
	if c.Eps == 0 {
		c.Eps = 1e-12
	}
	if c.EncBasis == "" {
		c.EncBasis = filterbank.BasisTrainable
	}
	if c.DecBasis == "" {
		c.DecBasis = filterbank.BasisTrainable
	}
	if c.Window == "" {
		c.Window = filterbank.WindowHann
	}
	if c.NumHeads == 0 {
		c.NumHeads = 4
	}
	if c.MaskNonlinear == "" {
		c.MaskNonlinear = MaskSigmoid
	}
	if c.GLUNonlinear == "" {
		c.GLUNonlinear = "tanh"
	}
	return c
}

// Validate checks the configuration as New would interpret it, with the
// zero-value shorthands resolved first. Filterbank basis names are
// checked when the filterbank is built.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Bases <= 0 || c.Kernel <= 0 || c.Stride <= 0 {
		return invalidf("bases, kernel and stride must be positive, got %d, %d, %d", c.Bases, c.Kernel, c.Stride)
	}
	if c.Kernel%c.Stride != 0 {
		return invalidf("kernel %d is not divisible by stride %d", c.Kernel, c.Stride)
	}
	if c.HiddenChannels <= 0 {
		return invalidf("hidden_channels must be positive, got %d", c.HiddenChannels)
	}
	if c.ChunkSize <= 0 || c.HopSize <= 0 {
		return invalidf("chunk_size and hop_size must be positive, got %d, %d", c.ChunkSize, c.HopSize)
	}
	if c.HopSize > c.ChunkSize {
		return invalidf("hop_size %d exceeds chunk_size %d", c.HopSize, c.ChunkSize)
	}
	if c.NumBlocks <= 0 {
		return invalidf("num_blocks must be positive, got %d", c.NumBlocks)
	}
	if c.Bases%c.NumHeads != 0 {
		return invalidf("bases %d is not divisible by %d attention heads", c.Bases, c.NumHeads)
	}
	if c.Sources <= 0 {
		return invalidf("sources must be positive, got %d", c.Sources)
	}
	switch c.MaskNonlinear {
	case MaskReLU, MaskSigmoid, MaskSoftmax:
	default:
		return invalidf("unknown mask nonlinearity %q", c.MaskNonlinear)
	}
	return nil
}

// LoadConfig reads a YAML model description. Parsing starts from
// DefaultConfig, so absent keys keep their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("dptnet: read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("dptnet: parse config: %w", err)
	}
	return cfg, nil
}
