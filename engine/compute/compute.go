package compute

import (
	"errors"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
)

// Element is one entry of a vertex attribute buffer. Positions and normals use xyz with w = 0,
// tangents carry their handedness in w. The 16 byte stride matches array<vec4<f32>> in WGSL.
type Element = [4]float32

// BackendType identifies a compute backend implementation.
type BackendType string

const (
	// BackendTypeWGPU runs kernels on the GPU through WebGPU.
	BackendTypeWGPU BackendType = "wgpu"

	// BackendTypeSoftware runs the Go reference implementation of each kernel on a worker pool.
	BackendTypeSoftware BackendType = "software"
)

var (
	// ErrBufferAllocation is returned when a backend cannot create a buffer.
	ErrBufferAllocation = errors.New("buffer allocation failed")

	// ErrKernelInvalid is returned when a kernel source cannot be loaded.
	ErrKernelInvalid = errors.New("kernel is invalid")

	// ErrEntryPointMismatch is returned when the kernel's WGSL entry point differs from the requested one.
	ErrEntryPointMismatch = errors.New("kernel entry point mismatch")

	// ErrUnknownBinding is returned when a binding name is not declared by the kernel.
	ErrUnknownBinding = errors.New("kernel has no binding with that name")

	// ErrBindingType is returned when a value of the wrong kind is set on a binding.
	ErrBindingType = errors.New("binding type mismatch")

	// ErrUnboundBinding is returned when a kernel is dispatched with a storage binding left unset.
	ErrUnboundBinding = errors.New("kernel dispatched with unbound buffer")

	// ErrForeignResource is returned when a buffer or kernel from another backend is used.
	ErrForeignResource = errors.New("resource belongs to a different backend")

	// ErrReleased is returned when a released buffer or kernel is used.
	ErrReleased = errors.New("resource already released")

	// ErrNoFrame is returned when DispatchCompute is called outside BeginComputeFrame/EndComputeFrame.
	ErrNoFrame = errors.New("no compute frame in progress")

	// ErrFrameInProgress is returned when BeginComputeFrame is called twice without EndComputeFrame.
	ErrFrameInProgress = errors.New("compute frame already in progress")
)

// Buffer is a device buffer of Elements owned by exactly one backend.
type Buffer interface {
	// Label returns the debug label given at creation.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Len returns the number of Elements the buffer holds.
	//
	// Returns:
	//   - int: the element count
	Len() int

	// Released reports whether Release has been called.
	//
	// Returns:
	//   - bool: true once the buffer has been released
	Released() bool

	// Release frees the device memory. Safe to call more than once.
	Release()
}

// Kernel is a loaded compute program whose inputs are addressed by name. Storage buffers are set
// with SetBuffer; scalars declared as members of the kernel's uniform struct are set with SetInt
// or SetFloat. Values are captured when the kernel is dispatched.
type Kernel interface {
	// Key returns the unique key of the kernel source.
	//
	// Returns:
	//   - string: the kernel key
	Key() string

	// EntryPoint returns the compute entry point name.
	//
	// Returns:
	//   - string: the entry point
	EntryPoint() string

	// WorkgroupSize returns the @workgroup_size declared by the kernel.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// SetBuffer binds a storage buffer by its WGSL variable name.
	//
	// Parameters:
	//   - name: the variable name, e.g. "PositionInput"
	//   - b: a buffer created by the same backend
	//
	// Returns:
	//   - error: ErrUnknownBinding, ErrForeignResource or ErrReleased on misuse
	SetBuffer(name string, b Buffer) error

	// SetInt sets an integer member of the kernel's uniform struct.
	//
	// Parameters:
	//   - name: the field name, e.g. "TriangleCount"
	//   - v: the value, stored as u32 or i32 depending on the field type
	//
	// Returns:
	//   - error: ErrUnknownBinding or ErrBindingType on misuse
	SetInt(name string, v int) error

	// SetFloat sets an f32 member of the kernel's uniform struct.
	//
	// Parameters:
	//   - name: the field name, e.g. "Amplitude"
	//   - v: the value
	//
	// Returns:
	//   - error: ErrUnknownBinding or ErrBindingType on misuse
	SetFloat(name string, v float32) error

	// Release frees the kernel's pipeline and parameter buffers. Safe to call more than once.
	Release()
}

// KernelSource describes a kernel to load. WGSL is always parsed, so both backends agree on
// binding names and workgroup size; Software is only required by the software backend.
type KernelSource struct {
	// Key uniquely names the kernel, e.g. "vacs.inflate".
	Key string

	// EntryPoint is the expected compute entry point. The WGSL must declare exactly this name.
	EntryPoint string

	// WGSL is the kernel source, which may contain @vacs: annotations.
	WGSL string

	// Includes are the snippets available to the WGSL pre-processor.
	Includes map[shader.AnnotationArg]shader.Include

	// Bindings lists every buffer or scalar name the caller will set. Loading fails if one is not declared.
	Bindings []string

	// Software is the Go implementation run by the software backend, one call per invocation.
	Software SoftwareKernel
}

// SoftwareKernel is the CPU form of a kernel. It is called once per invocation and must
// bounds-check its GlobalID exactly like the WGSL does.
type SoftwareKernel func(inv Invocation)

// Stats are cumulative counters kept by every backend.
type Stats struct {
	Frames          int
	Dispatches      int
	BuffersCreated  int
	BuffersReleased int
}

// BuffersAlive returns the number of buffers created and not yet released.
func (s Stats) BuffersAlive() int {
	return s.BuffersCreated - s.BuffersReleased
}

// Backend creates buffers and kernels and records dispatches. All dispatches between
// BeginComputeFrame and EndComputeFrame are submitted together and execute in order, with
// each dispatch observing the writes of the ones before it.
type Backend interface {
	// Type returns the backend implementation type.
	//
	// Returns:
	//   - BackendType: the backend type
	Type() BackendType

	// CreateBuffer allocates a storage buffer initialized with data.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the initial contents; its length becomes the buffer's Len
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error wrapping ErrBufferAllocation if the buffer could not be created
	CreateBuffer(label string, data []Element) (Buffer, error)

	// LoadKernel parses, checks and compiles a kernel.
	//
	// Parameters:
	//   - src: the kernel source
	//
	// Returns:
	//   - Kernel: the loaded kernel
	//   - error: an error wrapping ErrKernelInvalid if the kernel cannot be used
	LoadKernel(src KernelSource) (Kernel, error)

	// BeginComputeFrame opens a batch of dispatches.
	//
	// Returns:
	//   - error: ErrFrameInProgress or a device error
	BeginComputeFrame() error

	// DispatchCompute records a dispatch of k with the given workgroup counts. Counts with a
	// zero dimension record nothing.
	//
	// Parameters:
	//   - k: a kernel loaded by this backend
	//   - workgroups: workgroup counts in x, y and z
	//
	// Returns:
	//   - error: ErrNoFrame, ErrUnboundBinding, ErrForeignResource or ErrReleased on misuse
	DispatchCompute(k Kernel, workgroups [3]uint32) error

	// EndComputeFrame submits the recorded dispatches.
	//
	// Returns:
	//   - error: ErrNoFrame or a device error
	EndComputeFrame() error

	// ReadBuffer copies the current contents of a buffer back to host memory. It waits for all
	// submitted work and is intended for tools and tests, not for the per-frame path.
	//
	// Parameters:
	//   - b: a buffer created by this backend
	//
	// Returns:
	//   - []Element: a copy of the buffer contents
	//   - error: ErrForeignResource, ErrReleased or a device error
	ReadBuffer(b Buffer) ([]Element, error)

	// Stats returns the backend's cumulative counters.
	//
	// Returns:
	//   - Stats: a snapshot of the counters
	Stats() Stats

	// Release frees backend-owned resources such as a worker pool or an owned device.
	Release()
}

// WorkgroupCount returns the number of workgroups needed to cover items when each invocation
// handles itemsPerInvocation items and a workgroup has width invocations.
//
// Parameters:
//   - items: the number of work items, e.g. triangles
//   - width: the workgroup size in x
//   - itemsPerInvocation: the number of items each invocation processes
//
// Returns:
//   - uint32: ceil(items / (width * itemsPerInvocation))
func WorkgroupCount(items int, width uint32, itemsPerInvocation int) uint32 {
	return uint32(common.DivCeil(items, int(width)*itemsPerInvocation))
}
