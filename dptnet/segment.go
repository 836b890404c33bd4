package dptnet

import "github.com/seplab/dptnet/tensor"

// padFrames zero-pads the last axis of a (batch, channels, n) tensor.
func padFrames(x *tensor.Tensor, left, right int) *tensor.Tensor {
	if left == 0 && right == 0 {
		return x
	}
	rows, n := x.Shape[0]*x.Shape[1], x.Shape[2]
	padded := left + n + right
	out := tensor.New(x.Shape[0], x.Shape[1], padded)
	for i := 0; i < rows; i++ {
		copy(out.Data[i*padded+left:], x.Data[i*n:(i+1)*n])
	}
	return out
}

// cropFrames drops entries from both ends of the last axis, undoing a
// padFrames with the same arguments.
func cropFrames(x *tensor.Tensor, left, right int) *tensor.Tensor {
	if left == 0 && right == 0 {
		return x
	}
	rows, n := x.Shape[0]*x.Shape[1], x.Shape[2]
	keep := n - left - right
	out := tensor.New(x.Shape[0], x.Shape[1], keep)
	for i := 0; i < rows; i++ {
		copy(out.Data[i*keep:(i+1)*keep], x.Data[i*n+left:i*n+left+keep])
	}
	return out
}

// segment cuts the last axis of a (batch, channels, n) tensor into
// overlapping chunks, returning (batch, channels, chunks, chunkSize).
// The caller pads n so that (n-chunkSize) divides evenly by hop.
func segment(x *tensor.Tensor, chunkSize, hop int) *tensor.Tensor {
	rows, n := x.Shape[0]*x.Shape[1], x.Shape[2]
	chunks := (n-chunkSize)/hop + 1
	out := tensor.New(x.Shape[0], x.Shape[1], chunks, chunkSize)
	for i := 0; i < rows; i++ {
		src := x.Data[i*n : (i+1)*n]
		dst := out.Data[i*chunks*chunkSize:]
		for k := 0; k < chunks; k++ {
			copy(dst[k*chunkSize:(k+1)*chunkSize], src[k*hop:k*hop+chunkSize])
		}
	}
	return out
}

// overlapAdd is the adjoint of segment: chunks are laid back onto the
// time axis at hop intervals and overlapping samples sum.
func overlapAdd(x *tensor.Tensor, hop int) *tensor.Tensor {
	rows, chunks, chunkSize := x.Shape[0]*x.Shape[1], x.Shape[2], x.Shape[3]
	n := (chunks-1)*hop + chunkSize
	out := tensor.New(x.Shape[0], x.Shape[1], n)
	for i := 0; i < rows; i++ {
		src := x.Data[i*chunks*chunkSize:]
		dst := out.Data[i*n : (i+1)*n]
		for k := 0; k < chunks; k++ {
			off := k * hop
			for j := 0; j < chunkSize; j++ {
				dst[off+j] += src[k*chunkSize+j]
			}
		}
	}
	return out
}
