package filterbank

import (
	"math/rand"
	"testing"

	"github.com/seplab/dptnet/tensor"
)

func randomSignal(rng *rand.Rand, shape ...int) *tensor.Tensor {
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = float32(rng.Float64()*2 - 1)
	}
	return t
}

func TestNewDefaultsToTrainable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	enc, dec, err := New(Config{Bases: 64, Kernel: 16, Stride: 8}, rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := enc.(*ConvEncoder); !ok {
		t.Errorf("encoder = %T, want *ConvEncoder", enc)
	}
	if _, ok := dec.(*ConvDecoder); !ok {
		t.Errorf("decoder = %T, want *ConvDecoder", dec)
	}

	x := randomSignal(rng, 2, 1, 96)
	w := enc.Forward(x)
	if len(w.Shape) != 3 || w.Shape[0] != 2 || w.Shape[1] != 64 || w.Shape[2] != 11 {
		t.Fatalf("encoded shape = %v, want [2 64 11]", w.Shape)
	}
	y := dec.Forward(w)
	if len(y.Shape) != 3 || y.Shape[0] != 2 || y.Shape[1] != 1 || y.Shape[2] != 96 {
		t.Errorf("decoded shape = %v, want [2 1 96]", y.Shape)
	}
}

func TestNewRejectsBadConfigs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		name string
		cfg  Config
	}{
		{"non-positive sizes", Config{Bases: 0, Kernel: 16, Stride: 8}},
		{"unknown encoder basis", Config{Bases: 64, Kernel: 16, Stride: 8, EncBasis: "wavelet"}},
		{"unknown decoder basis", Config{Bases: 64, Kernel: 16, Stride: 8, DecBasis: "wavelet"}},
		{"pinv as encoder", Config{Bases: 64, Kernel: 16, Stride: 8, EncBasis: BasisPinv}},
		{"unknown window", Config{Bases: 18, Kernel: 16, Stride: 8, EncBasis: BasisFourier, Window: "kaiser"}},
		{"unknown nonlinearity", Config{Bases: 64, Kernel: 16, Stride: 8, EncNonlinear: "gelu"}},
		{"odd fourier bases", Config{Bases: 17, Kernel: 16, Stride: 8, EncBasis: BasisFourier}},
		{"too many fourier bases", Config{Bases: 20, Kernel: 16, Stride: 8, EncBasis: BasisFourier}},
		{"pinv with ragged overlap", Config{Bases: 64, Kernel: 16, Stride: 6, DecBasis: BasisPinv}},
	}
	for _, tc := range cases {
		if _, _, err := New(tc.cfg, rng); err == nil {
			t.Errorf("%s: New accepted %+v", tc.name, tc.cfg)
		}
	}
}

func TestEncoderNonlinearity(t *testing.T) {
	cfg := Config{Bases: 64, Kernel: 16, Stride: 8, EncNonlinear: "relu"}

	enc, _, err := New(cfg, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	x := randomSignal(rand.New(rand.NewSource(2)), 1, 1, 96)
	for i, v := range enc.Forward(x).Data {
		if v < 0 {
			t.Fatalf("relu encoder produced negative value %g at %d", v, i)
		}
	}

	// The same weights without relu must go negative somewhere, and a pinv
	// decoder drops the nonlinearity so its encoder behaves the same way.
	cfg.DecBasis = BasisPinv
	enc, _, err = New(cfg, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	negative := false
	for _, v := range enc.Forward(x).Data {
		if v < 0 {
			negative = true
			break
		}
	}
	if !negative {
		t.Error("pinv-paired encoder kept relu, want linear analysis")
	}
}

func TestDFTEncoderMatchesFFT(t *testing.T) {
	cfg := Config{Bases: 18, Kernel: 16, Stride: 8, DecBasis: BasisFourier}
	cfg.EncBasis = BasisTrainableFourier
	convEnc, _, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New(trainable_fourier): %v", err)
	}
	cfg.EncBasis = BasisFourier
	fftEnc, _, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New(fourier): %v", err)
	}

	x := randomSignal(rand.New(rand.NewSource(3)), 2, 1, 64)
	got := convEnc.Forward(x)
	want := fftEnc.Forward(x)
	if !tensor.SameShape(got, want) {
		t.Fatalf("shape mismatch: %v vs %v", got.Shape, want.Shape)
	}
	for i := range got.Data {
		if diff := got.Data[i] - want.Data[i]; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("index %d: conv %g, fft %g", i, got.Data[i], want.Data[i])
		}
	}
}

// With bases/2 == kernel/2+1 the analysis keeps the full spectrum, so the
// windowed overlap-add must reconstruct every interior sample.
func TestFourierRoundTrip(t *testing.T) {
	cfg := Config{
		Bases: 18, Kernel: 16, Stride: 8,
		EncBasis: BasisFourier, DecBasis: BasisFourier,
	}
	enc, dec, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	x := randomSignal(rand.New(rand.NewSource(4)), 1, 1, 96)
	y := dec.Forward(enc.Forward(x))
	if !tensor.SameShape(y, x) {
		t.Fatalf("round trip shape = %v, want %v", y.Shape, x.Shape)
	}
	for i := cfg.Kernel; i < 96-cfg.Kernel; i++ {
		diff := y.Data[i] - x.Data[i]
		if diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("sample %d: got %g, want %g", i, y.Data[i], x.Data[i])
		}
	}
}

// pinv(A)·A must be the identity when the analysis matrix has full column
// rank, which a random 64x16 basis has.
func TestPinvInvertsAnalysisBasis(t *testing.T) {
	cfg := Config{Bases: 64, Kernel: 16, Stride: 8, DecBasis: BasisPinv}
	enc, dec, err := New(cfg, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pd, ok := dec.(*PinvDecoder)
	if !ok {
		t.Fatalf("decoder = %T, want *PinvDecoder", dec)
	}

	prod := tensor.MatMul(pd.Weight.Data, enc.Basis())
	if len(prod.Shape) != 2 || prod.Shape[0] != 16 || prod.Shape[1] != 16 {
		t.Fatalf("product shape = %v, want [16 16]", prod.Shape)
	}
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			want := float32(0)
			if i == j {
				want = 1
			}
			got := prod.At(i, j)
			if diff := got - want; diff > 1e-3 || diff < -1e-3 {
				t.Fatalf("pinv·basis[%d][%d] = %g, want %g", i, j, got, want)
			}
		}
	}
}

func TestFourierParametersAreFrozen(t *testing.T) {
	cfg := Config{
		Bases: 18, Kernel: 16, Stride: 8,
		EncBasis: BasisFourier, DecBasis: BasisFourier,
	}
	enc, dec, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, p := range append(enc.Parameters(), dec.Parameters()...) {
		if p.Trainable {
			t.Error("fourier basis registered as trainable")
		}
	}

	enc, dec, err = New(Config{Bases: 64, Kernel: 16, Stride: 8}, rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, p := range append(enc.Parameters(), dec.Parameters()...) {
		if !p.Trainable {
			t.Error("trainable basis registered as frozen")
		}
	}
}
