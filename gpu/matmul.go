package gpu

import (
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// One thread per output element; dims arrive through a uniform so the
// pipeline compiles once and serves every call.
const matmulShader = `
struct Dims {
	batch : u32,
	m : u32,
	k : u32,
	n : u32,
}

@group(0) @binding(0) var<uniform> dims : Dims;
@group(0) @binding(1) var<storage, read> a : array<f32>;
@group(0) @binding(2) var<storage, read> b : array<f32>;
@group(0) @binding(3) var<storage, read_write> c : array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
	let idx = gid.x;
	let total = dims.batch * dims.m * dims.n;
	if (idx >= total) {
		return;
	}

	let bi = idx / (dims.m * dims.n);
	let rem = idx % (dims.m * dims.n);
	let row = rem / dims.n;
	let col = rem % dims.n;

	let aOff = bi * dims.m * dims.k + row * dims.k;
	let bOff = bi * dims.k * dims.n;

	var sum : f32 = 0.0;
	for (var i : u32 = 0u; i < dims.k; i++) {
		sum += a[aOff + i] * b[bOff + i * dims.n + col];
	}
	c[idx] = sum;
}
`

var (
	pipeOnce   sync.Once
	pipeErr    error
	matmulPipe *wgpu.ComputePipeline
	matmulBGL  *wgpu.BindGroupLayout
)

func matmulPipeline(c *Context) (*wgpu.ComputePipeline, *wgpu.BindGroupLayout, error) {
	pipeOnce.Do(func() {
		module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          "MatMul_Shader",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: matmulShader},
		})
		if err != nil {
			pipeErr = fmt.Errorf("gpu: compile matmul shader: %w", err)
			return
		}
		defer module.Release()

		matmulBGL, err = c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label: "MatMul_BGL",
			Entries: []wgpu.BindGroupLayoutEntry{
				{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
				{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
				{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
				{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			},
		})
		if err != nil {
			pipeErr = fmt.Errorf("gpu: create bind group layout: %w", err)
			return
		}

		layout, err := c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            "MatMul_Layout",
			BindGroupLayouts: []*wgpu.BindGroupLayout{matmulBGL},
		})
		if err != nil {
			pipeErr = fmt.Errorf("gpu: create pipeline layout: %w", err)
			return
		}

		matmulPipe, err = c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  "MatMul_Pipe",
			Layout: layout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			pipeErr = fmt.Errorf("gpu: create pipeline: %w", err)
		}
	})
	if pipeErr != nil {
		return nil, nil, pipeErr
	}
	return matmulPipe, matmulBGL, nil
}

// MatMul computes batched C = A @ B on the device, with A (batch,m,k) and
// B (batch,k,n) flattened row-major. The result is (batch,m,n).
func MatMul(a, b []float32, batch, m, k, n int) ([]float32, error) {
	if len(a) != batch*m*k || len(b) != batch*k*n {
		return nil, fmt.Errorf("gpu: matmul operand sizes %d, %d do not match dims (%d,%d,%d,%d)", len(a), len(b), batch, m, k, n)
	}

	c, err := Get()
	if err != nil {
		return nil, err
	}
	pipe, bgl, err := matmulPipeline(c)
	if err != nil {
		return nil, err
	}

	dims, err := newUniformBuffer(c, "MatMul_Dims", []uint32{uint32(batch), uint32(m), uint32(k), uint32(n)})
	if err != nil {
		return nil, err
	}
	defer dims.Destroy()

	aBuf, err := newStorageBuffer(c, "MatMul_A", a)
	if err != nil {
		return nil, err
	}
	defer aBuf.Destroy()

	bBuf, err := newStorageBuffer(c, "MatMul_B", b)
	if err != nil {
		return nil, err
	}
	defer bBuf.Destroy()

	outElems := batch * m * n
	outBuf, err := newOutputBuffer(c, "MatMul_C", outElems)
	if err != nil {
		return nil, err
	}
	defer outBuf.Destroy()

	bindGroup, err := c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "MatMul_Bind",
		Layout: bgl,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: dims, Size: dims.GetSize()},
			{Binding: 1, Buffer: aBuf, Size: aBuf.GetSize()},
			{Binding: 2, Buffer: bBuf, Size: bBuf.GetSize()},
			{Binding: 3, Buffer: outBuf, Size: outBuf.GetSize()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group: %w", err)
	}
	defer bindGroup.Release()

	encoder, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipe)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((outElems+255)/256), 1, 1)
	pass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: finish command: %w", err)
	}
	c.Queue.Submit(cmd)

	return readBuffer(c, outBuf, outElems)
}
