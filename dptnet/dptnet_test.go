package dptnet

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seplab/dptnet/filterbank"
	"github.com/seplab/dptnet/tensor"
)

func randomMixture(rng *rand.Rand, batch, samples int) *tensor.Tensor {
	x := tensor.New(batch, 1, samples)
	for i := range x.Data {
		x.Data[i] = float32(rng.Float64()*2 - 1)
	}
	return x
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Bases = 16
	cfg.HiddenChannels = 32
	cfg.ChunkSize = 10
	cfg.HopSize = 5
	cfg.NumBlocks = 1
	cfg.Seed = 1
	return cfg
}

func TestSeparateShapes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumBlocks = 1
	cfg.HiddenChannels = 64
	cfg.Seed = 1
	net, err := New(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	mixture := randomMixture(rand.New(rand.NewSource(2)), 2, 8000)
	out, latent, err := net.Separate(mixture)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 8000}, out.Shape)
	// 8000 samples over a 16-sample kernel at stride 8 give 999 frames.
	assert.Equal(t, []int{2, 2, 64, 999}, latent.Shape)
}

func TestSeparateKeepsLength(t *testing.T) {
	cases := []struct {
		kernel, stride, samples int
	}{
		{16, 8, 1013},
		{8, 8, 500},
		{20, 10, 333},
	}
	for _, tc := range cases {
		cfg := smallConfig()
		cfg.Kernel = tc.kernel
		cfg.Stride = tc.stride
		net, err := New(cfg)
		require.NoError(t, err)

		out, _, err := net.Separate(randomMixture(rand.New(rand.NewSource(3)), 1, tc.samples))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, tc.samples}, out.Shape,
			"kernel %d stride %d samples %d", tc.kernel, tc.stride, tc.samples)
	}
}

func TestSeparateRejectsBadInputs(t *testing.T) {
	net, err := New(smallConfig())
	require.NoError(t, err)

	_, _, err = net.Separate(tensor.New(2, 8000))
	assert.Error(t, err, "rank-2 input")
	_, _, err = net.Separate(tensor.New(1, 2, 8000))
	assert.Error(t, err, "two channels")
	_, _, err = net.Separate(tensor.New(1, 1, 8))
	assert.Error(t, err, "shorter than the kernel")
}

func TestNewRejectsInvalidConfigs(t *testing.T) {
	cfg := smallConfig()
	cfg.MaskNonlinear = "softplus"
	_, err := New(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = smallConfig()
	cfg.EncBasis = "wavelet"
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = smallConfig()
	cfg.GLUNonlinear = "mish"
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSeparateDeterministicWithSeed(t *testing.T) {
	cfg := smallConfig()
	cfg.Seed = 123
	first, err := New(cfg)
	require.NoError(t, err)
	second, err := New(cfg)
	require.NoError(t, err)

	mixture := randomMixture(rand.New(rand.NewSource(4)), 1, 400)
	out1, _, err := first.Separate(mixture)
	require.NoError(t, err)
	out2, _, err := second.Separate(mixture)
	require.NoError(t, err)
	require.Equal(t, out1.Data, out2.Data)

	cfg.Seed = 124
	third, err := New(cfg)
	require.NoError(t, err)
	out3, _, err := third.Separate(mixture)
	require.NoError(t, err)
	assert.NotEqual(t, out1.Data, out3.Data)
}

func TestForwardMatchesSeparate(t *testing.T) {
	net, err := New(smallConfig())
	require.NoError(t, err)

	mixture := randomMixture(rand.New(rand.NewSource(5)), 1, 300)
	want, _, err := net.Separate(mixture)
	require.NoError(t, err)
	got, err := net.Forward(mixture)
	require.NoError(t, err)
	require.Equal(t, want.Data, got.Data)
}

func TestNumParametersExcludesFrozenBases(t *testing.T) {
	cfg := smallConfig()
	cfg.Seed = 5
	trainable, err := New(cfg)
	require.NoError(t, err)

	cfg.EncBasis = filterbank.BasisFourier
	cfg.DecBasis = filterbank.BasisFourier
	fixed, err := New(cfg)
	require.NoError(t, err)

	// Frozen bases still appear in Parameters but not in the count.
	assert.Equal(t, len(trainable.Parameters()), len(fixed.Parameters()))
	wantDiff := int64(2 * cfg.Bases * cfg.Kernel)
	assert.Equal(t, trainable.NumParameters()-wantDiff, fixed.NumParameters())
}

// With softmax masks the per-source latents partition the encoder output:
// summing them over sources restores it.
func TestMaskedLatentPartitionsEncoding(t *testing.T) {
	cfg := smallConfig()
	cfg.MaskNonlinear = MaskSoftmax
	net, err := New(cfg)
	require.NoError(t, err)

	// 248 samples need no padding, so the encoder sees the raw mixture.
	mixture := randomMixture(rand.New(rand.NewSource(6)), 2, 248)
	_, latent, err := net.Separate(mixture)
	require.NoError(t, err)

	w := net.encoder.Forward(mixture)
	frames := w.Shape[2]
	require.Equal(t, []int{2, cfg.Sources, cfg.Bases, frames}, latent.Shape)
	for b := 0; b < 2; b++ {
		for f := 0; f < cfg.Bases; f++ {
			for fr := 0; fr < frames; fr++ {
				var sum float32
				for s := 0; s < cfg.Sources; s++ {
					sum += latent.At(b, s, f, fr)
				}
				if diff := sum - w.At(b, f, fr); diff > 1e-4 || diff < -1e-4 {
					t.Fatalf("latent sum at (%d,%d,%d) = %g, want %g", b, f, fr, sum, w.At(b, f, fr))
				}
			}
		}
	}
}

func BenchmarkSeparate(b *testing.B) {
	cfg := DefaultConfig()
	cfg.NumBlocks = 1
	cfg.HiddenChannels = 64
	cfg.Seed = 1
	net, err := New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	mixture := randomMixture(rand.New(rand.NewSource(7)), 1, 4000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := net.Separate(mixture); err != nil {
			b.Fatal(err)
		}
	}
}
