package tensor

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/seplab/dptnet/gpu"
)

var gpuEnabled atomic.Bool

// gpuMinWork is the multiply count below which a product stays on the CPU;
// buffer round-trips dominate for anything smaller.
const gpuMinWork = 1 << 18

// EnableGPU switches matrix products onto the WebGPU backend. It returns
// gpu.ErrNoGPU when no usable adapter exists, in which case everything keeps
// running on the CPU.
func EnableGPU() error {
	if err := gpu.Ensure(); err != nil {
		return err
	}
	gpuEnabled.Store(true)
	return nil
}

// DisableGPU switches matrix products back to the CPU.
func DisableGPU() { gpuEnabled.Store(false) }

// MatMul computes a @ b for a (M,K) and b (K,N).
func MatMul(a, b *Tensor) *Tensor {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		panic(fmt.Sprintf("tensor: matmul needs 2-d operands, got %v and %v", a.Shape, b.Shape))
	}
	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	if b.Shape[0] != k {
		panic(fmt.Sprintf("tensor: matmul inner dims %v vs %v", a.Shape, b.Shape))
	}

	if gpuEnabled.Load() && m*k*n >= gpuMinWork {
		if out, err := gpu.MatMul(a.Data, b.Data, 1, m, k, n); err == nil {
			return FromSlice(out, m, n)
		}
		// Device errors fall back to the CPU path silently; the result is
		// identical either way.
	}

	out := New(m, n)
	matmulTiled(out.Data, a.Data, b.Data, m, k, n)
	return out
}

// BatchMatMul computes a @ b per batch for a (B,M,K) and b (B,K,N).
// Batches run in parallel on the CPU path.
func BatchMatMul(a, b *Tensor) *Tensor {
	batch, m, k, n := checkBatched(a, b)
	if b.Shape[1] != k {
		panic(fmt.Sprintf("tensor: batch matmul inner dims %v vs %v", a.Shape, b.Shape))
	}

	if gpuEnabled.Load() && batch*m*k*n >= gpuMinWork {
		if out, err := gpu.MatMul(a.Data, b.Data, batch, m, k, n); err == nil {
			return FromSlice(out, batch, m, n)
		}
	}

	out := New(batch, m, n)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < batch; i++ {
		g.Go(func() error {
			matmulTiled(out.Data[i*m*n:(i+1)*m*n], a.Data[i*m*k:(i+1)*m*k], b.Data[i*k*n:(i+1)*k*n], m, k, n)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// BatchMatMulTransB computes a @ b^T per batch for a (B,M,K) and b (B,N,K).
// This is the attention-score shape; transposing b in the loop avoids
// materializing it.
func BatchMatMulTransB(a, b *Tensor) *Tensor {
	batch, m, k, n := checkBatchedTransB(a, b)

	out := New(batch, m, n)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < batch; i++ {
		g.Go(func() error {
			aOff := i * m * k
			bOff := i * n * k
			cOff := i * m * n
			for r := 0; r < m; r++ {
				aRow := aOff + r*k
				for c := 0; c < n; c++ {
					bRow := bOff + c*k
					var sum float32
					for j := 0; j < k; j++ {
						sum += a.Data[aRow+j] * b.Data[bRow+j]
					}
					out.Data[cOff+r*n+c] = sum
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func checkBatched(a, b *Tensor) (batch, m, k, n int) {
	if len(a.Shape) != 3 || len(b.Shape) != 3 {
		panic(fmt.Sprintf("tensor: batch matmul needs 3-d operands, got %v and %v", a.Shape, b.Shape))
	}
	if a.Shape[0] != b.Shape[0] {
		panic(fmt.Sprintf("tensor: batch dims %d vs %d", a.Shape[0], b.Shape[0]))
	}
	return a.Shape[0], a.Shape[1], a.Shape[2], b.Shape[2]
}

func checkBatchedTransB(a, b *Tensor) (batch, m, k, n int) {
	if len(a.Shape) != 3 || len(b.Shape) != 3 {
		panic(fmt.Sprintf("tensor: batch matmul needs 3-d operands, got %v and %v", a.Shape, b.Shape))
	}
	if a.Shape[0] != b.Shape[0] || a.Shape[2] != b.Shape[2] {
		panic(fmt.Sprintf("tensor: transposed batch matmul shapes %v vs %v", a.Shape, b.Shape))
	}
	return a.Shape[0], a.Shape[1], a.Shape[2], b.Shape[1]
}

// matmulTiled is the cache-friendly CPU baseline.
func matmulTiled(c, a, b []float32, m, k, n int) {
	const ts = 64
	for i0 := 0; i0 < m; i0 += ts {
		for k0 := 0; k0 < k; k0 += ts {
			for j0 := 0; j0 < n; j0 += ts {
				iMax := min(i0+ts, m)
				kMax := min(k0+ts, k)
				jMax := min(j0+ts, n)
				for i := i0; i < iMax; i++ {
					for kk := k0; kk < kMax; kk++ {
						av := a[i*k+kk]
						rowC := i * n
						rowB := kk * n
						for j := j0; j < jMax; j++ {
							c[rowC+j] += av * b[rowB+j]
						}
					}
				}
			}
		}
	}
}
