package compute

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// elementSize is the byte stride of one Element.
const elementSize = 16

// GPUBuffer is implemented by buffers that live in WebGPU device memory.
type GPUBuffer interface {
	Buffer

	// GPUBuffer returns the underlying device buffer.
	//
	// Returns:
	//   - *wgpu.Buffer: the device buffer, or nil once released
	GPUBuffer() *wgpu.Buffer
}

// wgpuBackend records every dispatch of a frame on one command encoder and submits it at
// EndComputeFrame. WebGPU orders the compute passes of a submission, so each pass sees the
// writes of the previous one.
type wgpuBackend struct {
	mu *sync.Mutex

	instance   *wgpu.Instance
	adapter    *wgpu.Adapter
	device     *wgpu.Device
	queue      *wgpu.Queue
	ownsDevice bool

	forceFallbackAdapter bool
	validate             bool

	encoder *wgpu.CommandEncoder
	staging *uniformStaging
	stats   Stats
}

type wgpuBuffer struct {
	owner    *wgpuBackend
	label    string
	length   int
	buffer   *wgpu.Buffer
	released atomic.Bool
}

type wgpuKernel struct {
	*kernelState
	owner    *wgpuBackend
	pipeline pipeline.Pipeline

	// providers hold one bind group per group index. Uniform blocks are owned by the provider,
	// storage buffers are borrowed.
	providers map[int]bind_group_provider.BindGroupProvider
}

var (
	_ Backend   = &wgpuBackend{}
	_ GPUBuffer = &wgpuBuffer{}
	_ Kernel    = &wgpuKernel{}
)

// NewWGPUBackend creates a WebGPU compute backend. Without WithDevice it requests a headless
// adapter and device of its own and releases them in Release.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Backend: the WebGPU backend
//   - error: an error if no adapter or device could be obtained
func NewWGPUBackend(options ...WGPUBackendBuilderOption) (Backend, error) {
	b := &wgpuBackend{
		mu: &sync.Mutex{},
	}
	b.staging = newUniformStaging(b.createStagingBuffer, (*wgpu.Buffer).Release)
	for _, opt := range options {
		opt(b)
	}
	if b.device != nil {
		return b, nil
	}

	runtime.LockOSThread()
	b.instance = wgpu.CreateInstance(nil)
	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
	})
	if err != nil {
		b.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Compute Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		a.Release()
		b.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()
	b.ownsDevice = true
	common.LogDebug("wgpu compute backend created its own device")
	return b, nil
}

func (b *wgpuBackend) Type() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuBackend) CreateBuffer(label string, data []Element) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	var (
		buf *wgpu.Buffer
		err error
	)
	if len(data) == 0 {
		// WebGPU rejects zero sized storage bindings, so an empty buffer still gets one element.
		buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label,
			Size:  elementSize,
			Usage: usage,
		})
	} else {
		buf, err = b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    label,
			Contents: common.SliceToBytes(data),
			Usage:    usage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBufferAllocation, label, err)
	}

	b.stats.BuffersCreated++
	return &wgpuBuffer{owner: b, label: label, length: len(data), buffer: buf}, nil
}

// LoadKernel parses the kernel, then creates its pipeline the same way a renderer registers
// a compute pipeline, and allocates one uniform buffer per uniform block.
func (b *wgpuBackend) LoadKernel(src KernelSource) (Kernel, error) {
	state, err := newKernelState(src, b.validate)
	if err != nil {
		return nil, err
	}

	p := pipeline.NewPipeline(src.Key, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(state.shader))
	if err := b.registerComputePipeline(p); err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: %s: %w", ErrKernelInvalid, src.Key, err)
	}

	k := &wgpuKernel{
		kernelState: state,
		owner:       b,
		pipeline:    p,
		providers:   make(map[int]bind_group_provider.BindGroupProvider),
	}
	for g := range state.shader.BindGroupLayoutDescriptors() {
		k.providers[g] = bind_group_provider.NewBindGroupProvider(
			fmt.Sprintf("%s group %d", src.Key, g),
			bind_group_provider.WithBindGroupLayout(p.BindGroupLayout(g)),
		)
	}
	for key, block := range state.params {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s params %d:%d", src.Key, key.group, key.binding),
			Size:  uint64(len(block)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			k.Release()
			return nil, fmt.Errorf("%w: %s: %w", ErrBufferAllocation, src.Key, err)
		}
		k.providers[key.group].SetBuffer(key.binding, buf)
	}
	return k, nil
}

func (b *wgpuBackend) registerComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer s.Release()

	descriptors := computeShader.BindGroupLayoutDescriptors()
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	release := func() {
		for _, l := range bindGroupLayouts {
			if l != nil {
				l.Release()
			}
		}
	}
	for g := 0; g <= maxGroup; g++ {
		desc, ok := descriptors[g]
		if !ok {
			desc = wgpu.BindGroupLayoutDescriptor{Label: fmt.Sprintf("%s empty group %d", p.PipelineKey(), g)}
		}
		bgl, bglErr := b.device.CreateBindGroupLayout(&desc)
		if bglErr != nil {
			release()
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, bglErr)
		}
		bindGroupLayouts[g] = bgl
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		release()
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		release()
		return err
	}

	p.SetComputePipeline(created, bindGroupLayouts)
	return nil
}

func (b *wgpuBackend) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.encoder != nil {
		return ErrFrameInProgress
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.encoder = encoder
	return nil
}

func (b *wgpuBackend) DispatchCompute(k Kernel, workgroups [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.encoder == nil {
		return ErrNoFrame
	}
	wk, ok := k.(*wgpuKernel)
	if !ok || wk.owner != b {
		return fmt.Errorf("kernel %s: %w", k.Key(), ErrForeignResource)
	}
	if err := wk.checkBound(); err != nil {
		return err
	}
	if workgroups[0] == 0 || workgroups[1] == 0 || workgroups[2] == 0 {
		return nil
	}

	if err := b.stageWrites(wk.paramWrites()); err != nil {
		return fmt.Errorf("kernel %s: %w", k.Key(), err)
	}
	if err := wk.refreshBindGroups(); err != nil {
		return err
	}

	pass := b.encoder.BeginComputePass(nil)
	pass.SetPipeline(wk.pipeline.Pipeline().(*wgpu.ComputePipeline))
	for _, g := range sortedGroups(wk.providers) {
		pass.SetBindGroup(uint32(g), wk.providers[g].BindGroup(), nil)
	}
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	pass.End()

	b.stats.Dispatches++
	return nil
}

// stageWrites copies the uniform bytes captured now into a staging buffer of their own and records
// the copy into the params buffer on the frame encoder, ahead of the pass that reads them.
func (b *wgpuBackend) stageWrites(writes []bind_group_provider.BufferWrite) error {
	for _, w := range writes {
		dst := w.Provider.Buffer(w.Binding)
		if dst == nil {
			continue
		}
		size := uint64(len(w.Data))
		staging, err := b.staging.acquire(size)
		if err != nil {
			return fmt.Errorf("%w: uniform staging: %w", ErrBufferAllocation, err)
		}
		if err := b.queue.WriteBuffer(staging, 0, w.Data); err != nil {
			return err
		}
		if err := b.encoder.CopyBufferToBuffer(staging, 0, dst, w.Offset, size); err != nil {
			return err
		}
	}
	return nil
}

func (b *wgpuBackend) createStagingBuffer(size uint64) (*wgpu.Buffer, error) {
	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Uniform Staging",
		Size:  size,
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
}

func (b *wgpuBackend) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.encoder == nil {
		return ErrNoFrame
	}
	defer func() {
		b.encoder.Release()
		b.encoder = nil
		b.staging.recycle()
	}()

	commandBuffer, err := b.encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.stats.Frames++
	return nil
}

func (b *wgpuBackend) ReadBuffer(buf Buffer) ([]Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gb, ok := buf.(*wgpuBuffer)
	if !ok || gb.owner != b {
		return nil, ErrForeignResource
	}
	if gb.released.Load() {
		return nil, fmt.Errorf("buffer %s: %w", gb.label, ErrReleased)
	}
	if gb.length == 0 {
		return []Element{}, nil
	}

	size := uint64(gb.length) * elementSize
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: gb.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s readback: %w", ErrBufferAllocation, gb.label, err)
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(gb.buffer, 0, staging, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	mapped := false
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		mapped = s == wgpu.BufferMapAsyncStatusSuccess
	})
	b.device.Poll(true, nil)
	if !mapped {
		return nil, fmt.Errorf("failed to map %s for reading", gb.label)
	}
	out := common.BytesToSlice[Element](staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (b *wgpuBackend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.encoder != nil {
		b.encoder.Release()
		b.encoder = nil
	}
	b.staging.release()
	if !b.ownsDevice {
		return
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (w *wgpuBuffer) Label() string {
	return w.label
}

func (w *wgpuBuffer) Len() int {
	return w.length
}

func (w *wgpuBuffer) GPUBuffer() *wgpu.Buffer {
	return w.buffer
}

func (w *wgpuBuffer) Released() bool {
	return w.released.Load()
}

func (w *wgpuBuffer) Release() {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	if !w.released.CompareAndSwap(false, true) {
		return
	}
	if w.buffer != nil {
		w.buffer.Release()
		w.buffer = nil
	}
	w.owner.stats.BuffersReleased++
}

func (k *wgpuKernel) Key() string {
	return k.src.Key
}

func (k *wgpuKernel) EntryPoint() string {
	return k.shader.EntryPoint()
}

func (k *wgpuKernel) WorkgroupSize() [3]uint32 {
	return k.shader.WorkgroupSize()
}

func (k *wgpuKernel) SetBuffer(name string, b Buffer) error {
	gb, ok := b.(*wgpuBuffer)
	if !ok || gb.owner != k.owner {
		return fmt.Errorf("kernel %s: buffer %q: %w", k.src.Key, name, ErrForeignResource)
	}
	if err := k.setBuffer(name, b); err != nil {
		return err
	}
	binding, _ := k.shader.Binding(name)
	k.providers[binding.Group].BindBuffer(binding.Binding, gb.buffer)
	return nil
}

func (k *wgpuKernel) SetInt(name string, v int) error {
	return k.setInt(name, v)
}

func (k *wgpuKernel) SetFloat(name string, v float32) error {
	return k.setFloat(name, v)
}

// paramWrites returns one write per uniform block holding its currently staged bytes.
func (k *wgpuKernel) paramWrites() []bind_group_provider.BufferWrite {
	writes := make([]bind_group_provider.BufferWrite, 0, len(k.params))
	for key, block := range k.params {
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: k.providers[key.group],
			Binding:  key.binding,
			Offset:   0,
			Data:     append([]byte(nil), block...),
		})
	}
	return writes
}

// refreshBindGroups rebuilds the bind group of every provider whose entries changed.
func (k *wgpuKernel) refreshBindGroups() error {
	for _, g := range sortedGroups(k.providers) {
		p := k.providers[g]
		if !p.Stale() {
			continue
		}
		bg, err := k.owner.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   p.Label() + " Bind Group",
			Layout:  p.BindGroupLayout(),
			Entries: p.Entries(),
		})
		if err != nil {
			return fmt.Errorf("kernel %s: failed to create bind group %d: %w", k.src.Key, g, err)
		}
		p.SetBindGroup(bg)
	}
	return nil
}

func (k *wgpuKernel) Release() {
	if k.released {
		return
	}
	k.released = true
	k.buffers = map[string]Buffer{}
	for g, p := range k.providers {
		p.Release()
		delete(k.providers, g)
	}
	if k.pipeline != nil {
		k.pipeline.Release()
	}
}

func sortedGroups(providers map[int]bind_group_provider.BindGroupProvider) []int {
	groups := make([]int, 0, len(providers))
	for g := range providers {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	return groups
}
