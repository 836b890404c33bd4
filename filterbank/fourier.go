package filterbank

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/seplab/dptnet/nn"
	"github.com/seplab/dptnet/tensor"
)

// analysisAtoms materializes the windowed DFT as convolution atoms. Row f
// holds the real part of bin f, row bases/2+f the imaginary part, with the
// e^{-i2πfk/K} sign convention of the FFT path.
func analysisAtoms(bases, kernel int, win []float32) *tensor.Tensor {
	half := bases / 2
	w := tensor.New(bases, kernel)
	for f := 0; f < half; f++ {
		for k := 0; k < kernel; k++ {
			angle := 2 * math.Pi * float64(f) * float64(k) / float64(kernel)
			w.Data[f*kernel+k] = win[k] * float32(math.Cos(angle))
			w.Data[(half+f)*kernel+k] = win[k] * float32(-math.Sin(angle))
		}
	}
	return w
}

// synthesisAtoms materializes the inverse DFT as transposed-convolution
// atoms. DC and Nyquist bins carry weight 1/K, every other bin 2/K to
// stand in for its conjugate mirror.
func synthesisAtoms(bases, kernel int, win []float32) *tensor.Tensor {
	half := bases / 2
	w := tensor.New(bases, kernel)
	for f := 0; f < half; f++ {
		c := 2.0 / float64(kernel)
		if f == 0 || 2*f == kernel {
			c = 1.0 / float64(kernel)
		}
		for k := 0; k < kernel; k++ {
			angle := 2 * math.Pi * float64(f) * float64(k) / float64(kernel)
			w.Data[f*kernel+k] = win[k] * float32(c*math.Cos(angle))
			w.Data[(half+f)*kernel+k] = win[k] * float32(-c*math.Sin(angle))
		}
	}
	return w
}

// FourierEncoder analyses each windowed frame with a real FFT and keeps
// the first bases/2 bins, real parts in the lower half of the latent
// channels and imaginary parts in the upper half. The basis is fixed.
type FourierEncoder struct {
	Bases  int
	Kernel int
	Stride int

	win    []float32
	fft    *fourier.FFT
	weight *nn.Parameter // frozen analysis matrix, (bases, kernel)
}

func newFourierEncoder(bases, kernel, stride int, win []float32) *FourierEncoder {
	return &FourierEncoder{
		Bases:  bases,
		Kernel: kernel,
		Stride: stride,
		win:    win,
		fft:    fourier.NewFFT(kernel),
		weight: &nn.Parameter{Data: analysisAtoms(bases, kernel, win)},
	}
}

// Forward maps (batch, 1, T) to (batch, bases, frames).
func (e *FourierEncoder) Forward(x *tensor.Tensor) *tensor.Tensor {
	if len(x.Shape) != 3 || x.Shape[1] != 1 {
		panic("filterbank: encoder expects input shaped (batch, 1, samples)")
	}
	batch, t := x.Shape[0], x.Shape[2]
	if t < e.Kernel {
		panic(fmt.Sprintf("filterbank: %d samples is shorter than kernel %d", t, e.Kernel))
	}
	frames := numFrames(t, e.Kernel, e.Stride)
	half := e.Bases / 2
	out := tensor.New(batch, e.Bases, frames)
	frame := make([]float64, e.Kernel)
	coeff := make([]complex128, e.Kernel/2+1)
	for b := 0; b < batch; b++ {
		xOff := b * t
		for fr := 0; fr < frames; fr++ {
			start := xOff + fr*e.Stride
			for k := 0; k < e.Kernel; k++ {
				frame[k] = float64(e.win[k] * x.Data[start+k])
			}
			coeff = e.fft.Coefficients(coeff, frame)
			for f := 0; f < half; f++ {
				out.Data[(b*e.Bases+f)*frames+fr] = float32(real(coeff[f]))
				out.Data[(b*e.Bases+half+f)*frames+fr] = float32(imag(coeff[f]))
			}
		}
	}
	return out
}

func (e *FourierEncoder) Basis() *tensor.Tensor { return e.weight.Data }

func (e *FourierEncoder) Parameters() []*nn.Parameter { return []*nn.Parameter{e.weight} }

// FourierDecoder inverts FourierEncoder: each frame's latent halves are
// reassembled into spectrum bins, inverse-transformed, windowed and
// overlap-added, then normalized by the accumulated window power.
type FourierDecoder struct {
	Bases  int
	Kernel int
	Stride int

	win    []float32
	fft    *fourier.FFT
	weight *nn.Parameter // frozen synthesis matrix, (bases, kernel)
}

func newFourierDecoder(bases, kernel, stride int, win []float32) *FourierDecoder {
	return &FourierDecoder{
		Bases:  bases,
		Kernel: kernel,
		Stride: stride,
		win:    win,
		fft:    fourier.NewFFT(kernel),
		weight: &nn.Parameter{Data: synthesisAtoms(bases, kernel, win)},
	}
}

// Forward maps (batch, bases, frames) to (batch, 1, (frames-1)*stride+kernel).
func (d *FourierDecoder) Forward(w *tensor.Tensor) *tensor.Tensor {
	if len(w.Shape) != 3 || w.Shape[1] != d.Bases {
		panic(fmt.Sprintf("filterbank: decoder expects input shaped (batch, %d, frames)", d.Bases))
	}
	batch, frames := w.Shape[0], w.Shape[2]
	half := d.Bases / 2
	tOut := (frames-1)*d.Stride + d.Kernel
	out := tensor.New(batch, 1, tOut)

	norm := make([]float32, tOut)
	for fr := 0; fr < frames; fr++ {
		start := fr * d.Stride
		for k := 0; k < d.Kernel; k++ {
			norm[start+k] += d.win[k] * d.win[k]
		}
	}

	coeff := make([]complex128, d.Kernel/2+1)
	seq := make([]float64, d.Kernel)
	scale := 1.0 / float64(d.Kernel)
	for b := 0; b < batch; b++ {
		acc := out.Data[b*tOut : (b+1)*tOut]
		for fr := 0; fr < frames; fr++ {
			for i := range coeff {
				coeff[i] = 0
			}
			for f := 0; f < half; f++ {
				re := w.Data[(b*d.Bases+f)*frames+fr]
				im := w.Data[(b*d.Bases+half+f)*frames+fr]
				if f == 0 || 2*f == d.Kernel {
					im = 0 // DC and Nyquist bins are real
				}
				coeff[f] = complex(float64(re), float64(im))
			}
			seq = d.fft.Sequence(seq, coeff)
			start := fr * d.Stride
			for k := 0; k < d.Kernel; k++ {
				acc[start+k] += float32(seq[k]*scale) * d.win[k]
			}
		}
		for t := range acc {
			denom := norm[t]
			if denom < 1e-8 {
				denom = 1e-8
			}
			acc[t] /= denom
		}
	}
	return out
}

func (d *FourierDecoder) Parameters() []*nn.Parameter { return []*nn.Parameter{d.weight} }
