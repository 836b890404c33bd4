package dptnet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig does not validate: %v", err)
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = 3
	cfg.Causal = false

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(cfg, decoded); diff != "" {
		t.Errorf("config changed across YAML round trip (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	doc := []byte("bases: 32\nkernel: 8\nstride: 4\nnum_blocks: 2\ncausal: false\nmask_nonlinear: softmax\nsources: 3\n")
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bases != 32 || cfg.Kernel != 8 || cfg.Stride != 4 {
		t.Errorf("filterbank sizes = %d/%d/%d, want 32/8/4", cfg.Bases, cfg.Kernel, cfg.Stride)
	}
	if cfg.Causal {
		t.Error("causal = true, want override to false")
	}
	if cfg.MaskNonlinear != MaskSoftmax || cfg.Sources != 3 {
		t.Errorf("mask = %q sources = %d, want softmax and 3", cfg.MaskNonlinear, cfg.Sources)
	}
	// Keys absent from the file keep their defaults.
	if cfg.HiddenChannels != 256 || cfg.ChunkSize != 100 || cfg.Window != "hann" {
		t.Errorf("defaults not preserved: hidden=%d chunk=%d window=%q", cfg.HiddenChannels, cfg.ChunkSize, cfg.Window)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig accepted a missing file")
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Bases: 32, Kernel: 10, ChunkSize: 40, HiddenChannels: 64, NumBlocks: 2, Sources: 2}
	got := cfg.withDefaults()
	if got.Stride != 5 {
		t.Errorf("Stride = %d, want kernel/2 = 5", got.Stride)
	}
	if got.HopSize != 20 {
		t.Errorf("HopSize = %d, want chunk_size/2 = 20", got.HopSize)
	}
	if got.Eps != 1e-12 {
		t.Errorf("Eps = %g, want 1e-12", got.Eps)
	}
	if got.MaskNonlinear != MaskSigmoid || got.GLUNonlinear != "tanh" || got.Window != "hann" {
		t.Errorf("string defaults = %q/%q/%q", got.MaskNonlinear, got.GLUNonlinear, got.Window)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"kernel not divisible by stride", func(c *Config) { c.Kernel = 16; c.Stride = 6 }},
		{"hop exceeds chunk", func(c *Config) { c.HopSize = 200 }},
		{"bases not divisible by heads", func(c *Config) { c.Bases = 62 }},
		{"unknown mask nonlinearity", func(c *Config) { c.MaskNonlinear = "softplus" }},
		{"no sources", func(c *Config) { c.Sources = -1 }},
		{"no hidden channels", func(c *Config) { c.HiddenChannels = -5 }},
		{"no blocks", func(c *Config) { c.NumBlocks = -1 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: Validate accepted the config", tc.name)
			continue
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: error %v does not wrap ErrInvalidConfig", tc.name, err)
		}
	}
}
