// Package gpu is the optional WebGPU compute backend for matrix products.
// The tensor package dispatches here when a caller has opted in via
// tensor.EnableGPU; everything works identically on the CPU when no adapter
// exists.
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// ErrNoGPU is returned when no usable WebGPU adapter can be acquired.
var ErrNoGPU = errors.New("gpu: no usable webgpu adapter")

// Context holds the process-wide WebGPU handles. The first caller
// initializes it; later callers share it.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

var (
	ctx     *Context
	ctxErr  error
	ctxOnce sync.Once
)

// Get returns the singleton context, initializing it on first use. Adapter
// selection tries high performance first, then low power, then whatever the
// platform offers.
func Get() (*Context, error) {
	ctxOnce.Do(func() {
		instance := wgpu.CreateInstance(nil)
		if instance == nil {
			ctxErr = ErrNoGPU
			return
		}

		adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		if adapter == nil || err != nil {
			adapter, err = instance.RequestAdapter(&wgpu.RequestAdapterOptions{
				PowerPreference: wgpu.PowerPreferenceLowPower,
			})
		}
		if adapter == nil || err != nil {
			adapter, err = instance.RequestAdapter(nil)
		}
		if adapter == nil {
			if err != nil {
				ctxErr = fmt.Errorf("%w: %v", ErrNoGPU, err)
			} else {
				ctxErr = ErrNoGPU
			}
			return
		}

		device, err := adapter.RequestDevice(nil)
		if err != nil {
			ctxErr = fmt.Errorf("gpu: request device: %w", err)
			return
		}

		ctx = &Context{
			Instance: instance,
			Adapter:  adapter,
			Device:   device,
			Queue:    device.GetQueue(),
		}
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	return ctx, nil
}

// Ensure initializes the context if needed and reports whether it worked.
func Ensure() error {
	_, err := Get()
	return err
}

// Available reports whether a WebGPU device is usable in this process.
func Available() bool { return Ensure() == nil }
