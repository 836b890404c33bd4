package filterbank

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/seplab/dptnet/nn"
	"github.com/seplab/dptnet/tensor"
)

// ConvEncoder is a strided 1-D convolution over the waveform with one
// learned atom per basis. With relu set it keeps only non-negative
// activations, the usual choice when the decoder is also trainable.
type ConvEncoder struct {
	Bases  int
	Kernel int
	Stride int

	Weight *nn.Parameter // (bases, kernel)

	relu bool
}

func newConvEncoder(bases, kernel, stride int, relu bool, rng *rand.Rand) *ConvEncoder {
	weight := tensor.New(bases, kernel)
	stddev := math32.Sqrt(2.0 / float32(kernel))
	for i := range weight.Data {
		weight.Data[i] = float32(rng.NormFloat64()) * stddev
	}
	return &ConvEncoder{
		Bases:  bases,
		Kernel: kernel,
		Stride: stride,
		Weight: &nn.Parameter{Data: weight, Trainable: true},
		relu:   relu,
	}
}

// newDFTConvEncoder starts the trainable atoms at the windowed DFT so the
// basis begins as a Fourier analysis and may drift during training.
func newDFTConvEncoder(bases, kernel, stride int, win []float32) *ConvEncoder {
	return &ConvEncoder{
		Bases:  bases,
		Kernel: kernel,
		Stride: stride,
		Weight: &nn.Parameter{Data: analysisAtoms(bases, kernel, win), Trainable: true},
	}
}

// Forward maps (batch, 1, T) to (batch, bases, frames).
func (e *ConvEncoder) Forward(x *tensor.Tensor) *tensor.Tensor {
	if len(x.Shape) != 3 || x.Shape[1] != 1 {
		panic("filterbank: encoder expects input shaped (batch, 1, samples)")
	}
	batch, t := x.Shape[0], x.Shape[2]
	if t < e.Kernel {
		panic(fmt.Sprintf("filterbank: %d samples is shorter than kernel %d", t, e.Kernel))
	}
	frames := numFrames(t, e.Kernel, e.Stride)
	out := tensor.New(batch, e.Bases, frames)
	w := e.Weight.Data.Data
	for b := 0; b < batch; b++ {
		xOff := b * t
		for f := 0; f < e.Bases; f++ {
			wOff := f * e.Kernel
			outOff := (b*e.Bases + f) * frames
			for fr := 0; fr < frames; fr++ {
				start := xOff + fr*e.Stride
				var sum float32
				for k := 0; k < e.Kernel; k++ {
					sum += w[wOff+k] * x.Data[start+k]
				}
				if e.relu && sum < 0 {
					sum = 0
				}
				out.Data[outOff+fr] = sum
			}
		}
	}
	return out
}

func (e *ConvEncoder) Basis() *tensor.Tensor { return e.Weight.Data }

func (e *ConvEncoder) Parameters() []*nn.Parameter { return []*nn.Parameter{e.Weight} }

// ConvDecoder is the transposed counterpart of ConvEncoder: every frame
// scatters its atom back onto the waveform with overlap-add.
type ConvDecoder struct {
	Bases  int
	Kernel int
	Stride int

	Weight *nn.Parameter // (bases, kernel)
}

func newConvDecoder(bases, kernel, stride int, rng *rand.Rand) *ConvDecoder {
	weight := tensor.New(bases, kernel)
	stddev := math32.Sqrt(2.0 / float32(kernel))
	for i := range weight.Data {
		weight.Data[i] = float32(rng.NormFloat64()) * stddev
	}
	return &ConvDecoder{
		Bases:  bases,
		Kernel: kernel,
		Stride: stride,
		Weight: &nn.Parameter{Data: weight, Trainable: true},
	}
}

func newDFTConvDecoder(bases, kernel, stride int, win []float32) *ConvDecoder {
	return &ConvDecoder{
		Bases:  bases,
		Kernel: kernel,
		Stride: stride,
		Weight: &nn.Parameter{Data: synthesisAtoms(bases, kernel, win), Trainable: true},
	}
}

// Forward maps (batch, bases, frames) to (batch, 1, (frames-1)*stride+kernel).
func (d *ConvDecoder) Forward(w *tensor.Tensor) *tensor.Tensor {
	if len(w.Shape) != 3 || w.Shape[1] != d.Bases {
		panic(fmt.Sprintf("filterbank: decoder expects input shaped (batch, %d, frames)", d.Bases))
	}
	batch, frames := w.Shape[0], w.Shape[2]
	tOut := (frames-1)*d.Stride + d.Kernel
	out := tensor.New(batch, 1, tOut)
	wgt := d.Weight.Data.Data
	for b := 0; b < batch; b++ {
		acc := out.Data[b*tOut : (b+1)*tOut]
		for f := 0; f < d.Bases; f++ {
			wOff := f * d.Kernel
			inOff := (b*d.Bases + f) * frames
			for fr := 0; fr < frames; fr++ {
				v := w.Data[inOff+fr]
				if v == 0 {
					continue
				}
				start := fr * d.Stride
				for k := 0; k < d.Kernel; k++ {
					acc[start+k] += wgt[wOff+k] * v
				}
			}
		}
	}
	return out
}

func (d *ConvDecoder) Parameters() []*nn.Parameter { return []*nn.Parameter{d.Weight} }
