package compute

import "github.com/cogentcore/webgpu/wgpu"

// WGPUBackendBuilderOption is a functional option used to configure the WebGPU backend during construction.
type WGPUBackendBuilderOption func(*wgpuBackend)

// WithDevice makes the backend share an existing device and queue, typically the renderer's,
// so deformed buffers can be bound directly by draw calls. The backend does not release them.
//
// Parameters:
//   - device: the device to create resources on
//   - queue: the device's queue
//
// Returns:
//   - WGPUBackendBuilderOption: a function that sets the shared device
func WithDevice(device *wgpu.Device, queue *wgpu.Queue) WGPUBackendBuilderOption {
	return func(b *wgpuBackend) {
		b.device = device
		b.queue = queue
	}
}

// WithForceFallbackAdapter requests the software fallback adapter when the backend creates its own device.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - WGPUBackendBuilderOption: a function that sets the adapter preference
func WithForceFallbackAdapter(force bool) WGPUBackendBuilderOption {
	return func(b *wgpuBackend) {
		b.forceFallbackAdapter = force
	}
}

// WithKernelValidation compiles every kernel's WGSL with naga before handing it to the driver.
//
// Parameters:
//   - validate: true to validate kernels on load
//
// Returns:
//   - WGPUBackendBuilderOption: a function that toggles kernel validation
func WithKernelValidation(validate bool) WGPUBackendBuilderOption {
	return func(b *wgpuBackend) {
		b.validate = validate
	}
}
