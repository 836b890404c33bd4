package filterbank

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/seplab/dptnet/nn"
	"github.com/seplab/dptnet/tensor"
)

// PinvDecoder synthesizes with the Moore-Penrose pseudo-inverse of the
// encoder's analysis matrix, computed once at construction. Each frame is
// mapped back through the inverse atoms and overlap-added, then divided by
// the kernel/stride overlap count.
type PinvDecoder struct {
	Bases  int
	Kernel int
	Stride int

	Weight *nn.Parameter // (kernel, bases), frozen
}

func newPinvDecoder(basis *tensor.Tensor, kernel, stride int) (*PinvDecoder, error) {
	bases := basis.Shape[0]
	a := mat.NewDense(bases, kernel, nil)
	for f := 0; f < bases; f++ {
		for k := 0; k < kernel; k++ {
			a.Set(f, k, float64(basis.At(f, k)))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("filterbank: svd of the analysis basis failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)
	tol := 1e-10 * s[0]
	inv := make([]float64, len(s))
	for i, sv := range s {
		if sv > tol {
			inv[i] = 1 / sv
		}
	}

	// pinv = V diag(1/s) Uᵀ, shaped (kernel, bases).
	var scaled mat.Dense
	scaled.Mul(&v, mat.NewDiagDense(len(inv), inv))
	var pinv mat.Dense
	pinv.Mul(&scaled, u.T())

	w := tensor.New(kernel, bases)
	for k := 0; k < kernel; k++ {
		for f := 0; f < bases; f++ {
			w.Data[k*bases+f] = float32(pinv.At(k, f))
		}
	}
	return &PinvDecoder{
		Bases:  bases,
		Kernel: kernel,
		Stride: stride,
		Weight: &nn.Parameter{Data: w},
	}, nil
}

// Forward maps (batch, bases, frames) to (batch, 1, (frames-1)*stride+kernel).
func (d *PinvDecoder) Forward(w *tensor.Tensor) *tensor.Tensor {
	if len(w.Shape) != 3 || w.Shape[1] != d.Bases {
		panic(fmt.Sprintf("filterbank: decoder expects input shaped (batch, %d, frames)", d.Bases))
	}
	batch, frames := w.Shape[0], w.Shape[2]
	tOut := (frames-1)*d.Stride + d.Kernel
	out := tensor.New(batch, 1, tOut)
	overlap := float32(d.Kernel / d.Stride)
	wgt := d.Weight.Data.Data
	for b := 0; b < batch; b++ {
		acc := out.Data[b*tOut : (b+1)*tOut]
		for fr := 0; fr < frames; fr++ {
			start := fr * d.Stride
			for k := 0; k < d.Kernel; k++ {
				row := k * d.Bases
				var sum float32
				for f := 0; f < d.Bases; f++ {
					sum += wgt[row+f] * w.Data[(b*d.Bases+f)*frames+fr]
				}
				acc[start+k] += sum
			}
		}
		for t := range acc {
			acc[t] /= overlap
		}
	}
	return out
}

func (d *PinvDecoder) Parameters() []*nn.Parameter { return []*nn.Parameter{d.Weight} }
