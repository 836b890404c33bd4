package tensor

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Add returns a + b elementwise.
func Add(a, b *Tensor) *Tensor {
	if !SameShape(a, b) {
		panic(fmt.Sprintf("tensor: add shape mismatch %v vs %v", a.Shape, b.Shape))
	}
	out := New(a.Shape...)
	for i := range a.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out
}

// AddInPlace accumulates src into dst.
func AddInPlace(dst, src *Tensor) {
	if !SameShape(dst, src) {
		panic(fmt.Sprintf("tensor: add shape mismatch %v vs %v", dst.Shape, src.Shape))
	}
	for i := range src.Data {
		dst.Data[i] += src.Data[i]
	}
}

// Mul returns the elementwise (Hadamard) product a * b.
func Mul(a, b *Tensor) *Tensor {
	if !SameShape(a, b) {
		panic(fmt.Sprintf("tensor: mul shape mismatch %v vs %v", a.Shape, b.Shape))
	}
	out := New(a.Shape...)
	for i := range a.Data {
		out.Data[i] = a.Data[i] * b.Data[i]
	}
	return out
}

// Scale returns t * s.
func Scale(t *Tensor, s float32) *Tensor {
	out := New(t.Shape...)
	for i := range t.Data {
		out.Data[i] = t.Data[i] * s
	}
	return out
}

// Apply returns f mapped over every element.
func Apply(t *Tensor, f func(float32) float32) *Tensor {
	out := New(t.Shape...)
	for i := range t.Data {
		out.Data[i] = f(t.Data[i])
	}
	return out
}

// ReLU returns max(0, x) elementwise.
func ReLU(t *Tensor) *Tensor {
	return Apply(t, func(x float32) float32 {
		if x > 0 {
			return x
		}
		return 0
	})
}

// Sigmoid returns 1/(1+exp(-x)) elementwise.
func Sigmoid(t *Tensor) *Tensor {
	return Apply(t, func(x float32) float32 { return 1 / (1 + math32.Exp(-x)) })
}

// Tanh returns tanh(x) elementwise.
func Tanh(t *Tensor) *Tensor {
	return Apply(t, math32.Tanh)
}

// SoftmaxAxis normalizes t along the given axis with the usual
// max-subtraction for stability. Every slice along the axis sums to 1.
func SoftmaxAxis(t *Tensor, axis int) *Tensor {
	if axis < 0 || axis >= len(t.Shape) {
		panic(fmt.Sprintf("tensor: softmax axis %d out of range for shape %v", axis, t.Shape))
	}
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= t.Shape[i]
	}
	n := t.Shape[axis]
	inner := 1
	for i := axis + 1; i < len(t.Shape); i++ {
		inner *= t.Shape[i]
	}

	out := New(t.Shape...)
	for o := 0; o < outer; o++ {
		base := o * n * inner
		for in := 0; in < inner; in++ {
			maxVal := t.Data[base+in]
			for j := 1; j < n; j++ {
				if v := t.Data[base+j*inner+in]; v > maxVal {
					maxVal = v
				}
			}

			var sum float32
			for j := 0; j < n; j++ {
				idx := base + j*inner + in
				e := math32.Exp(t.Data[idx] - maxVal)
				out.Data[idx] = e
				sum += e
			}

			inv := 1 / sum
			for j := 0; j < n; j++ {
				out.Data[base+j*inner+in] *= inv
			}
		}
	}
	return out
}

// SoftmaxLastDim normalizes along the final axis.
func SoftmaxLastDim(t *Tensor) *Tensor {
	return SoftmaxAxis(t, len(t.Shape)-1)
}
