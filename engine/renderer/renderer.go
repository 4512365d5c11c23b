package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/camera"
	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/vacs-go/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrReleased is returned by Render after Release.
var ErrReleased = errors.New("renderer released")

type renderer struct {
	mu *sync.Mutex

	backend  RendererBackend
	camera   camera.Camera
	pipeline pipeline.Pipeline
	cameraBG bind_group_provider.BindGroupProvider

	presentMode          PresentMode
	sampleCount          MSAASampleCount
	forceFallbackAdapter bool
	validate             bool
	clearColor           wgpu.Color
	style                PreviewStyle
	frontFace            wgpu.FrontFace

	released bool
}

// Renderer draws DrawItems into a window with a single lit preview pipeline. Its device can be
// shared with a compute backend so the deformed buffers are drawn without a copy.
type Renderer interface {
	// Camera returns the camera the frame is viewed through.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Device returns the device the renderer draws with.
	//
	// Returns:
	//   - *wgpu.Device: the device
	Device() *wgpu.Device

	// Queue returns the device's queue.
	//
	// Returns:
	//   - *wgpu.Queue: the queue
	Queue() *wgpu.Queue

	// NewComputeBackend creates a WebGPU compute backend on the renderer's device.
	//
	// Parameters:
	//   - options: extra backend options; WithDevice is always applied
	//
	// Returns:
	//   - compute.Backend: the backend
	//   - error: an error creating the backend
	NewComputeBackend(options ...compute.WGPUBackendBuilderOption) (compute.Backend, error)

	// Resize reconfigures the surface and the camera aspect for a new framebuffer size.
	//
	// Parameters:
	//   - width: framebuffer width in pixels
	//   - height: framebuffer height in pixels
	//
	// Returns:
	//   - error: an error recreating the render targets
	Resize(width, height int) error

	// Render draws one frame containing the given items and presents it. Items without
	// drawable device buffers are skipped.
	//
	// Parameters:
	//   - items: the items to draw
	//
	// Returns:
	//   - error: an error acquiring, encoding or submitting the frame
	Render(items ...DrawItem) error

	// Release releases the pipeline, the camera bind group and the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a renderer drawing into win.
//
// Parameters:
//   - win: the window whose surface is drawn into
//   - options: builder options
//
// Returns:
//   - Renderer: the renderer
//   - error: an error obtaining a device or building the preview pipeline
func NewRenderer(win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		presentMode: PresentModeVSync,
		sampleCount: MSAA4x,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		frontFace:   wgpu.FrontFaceCCW,
	}
	for _, opt := range options {
		opt(r)
	}

	backend, err := newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, r.sampleCount, r.clearColor)
	if err != nil {
		return nil, err
	}
	backend.SetPresentMode(r.presentMode)
	r.backend = backend

	if err := r.backend.ConfigureSurface(win.Width(), win.Height()); err != nil {
		r.Release()
		return nil, err
	}
	r.camera = camera.NewCamera(camera.WithAspect(aspect(win.Width(), win.Height())))

	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	common.LogInfo("renderer ready, %d samples", r.sampleCount)
	return r, nil
}

// init builds the preview pipeline and the camera bind group.
func (r *renderer) init() error {
	p, err := newPreviewPipeline(r.validate, r.style, r.frontFace)
	if err != nil {
		return err
	}
	if err := r.backend.RegisterRenderPipeline(p); err != nil {
		return fmt.Errorf("register preview pipeline: %w", err)
	}
	r.pipeline = p

	size := camera.GPUCameraUniform{}
	buf, err := r.backend.CreateUniformBuffer("Camera Uniform", uint64(size.Size()))
	if err != nil {
		return err
	}
	r.cameraBG = bind_group_provider.NewBindGroupProvider("camera",
		bind_group_provider.WithBindGroupLayout(p.BindGroupLayout(groupCamera)),
		bind_group_provider.WithBuffer(0, buf),
	)
	return nil
}

// newPreviewPipeline parses the preview shader for both stages and applies the rasterization of style.
func newPreviewPipeline(validate bool, style PreviewStyle, frontFace wgpu.FrontFace) (pipeline.Pipeline, error) {
	opts := []shader.ShaderBuilderOption{
		shader.WithIncludes(previewIncludes()),
		shader.WithValidation(validate),
	}
	vs, err := shader.NewShader("preview.vertex", shader.ShaderTypeVertex, PreviewShaderSource, opts...)
	if err != nil {
		return nil, err
	}
	fs, err := shader.NewShader("preview.fragment", shader.ShaderTypeFragment, PreviewShaderSource, opts...)
	if err != nil {
		return nil, err
	}
	// Deformation can flip triangles, so both faces are drawn.
	pipelineOpts := []pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithCullMode(wgpu.CullModeNone),
		pipeline.WithFrontFace(frontFace),
	}
	switch style {
	case PreviewStylePoints:
		pipelineOpts = append(pipelineOpts, pipeline.WithTopology(wgpu.PrimitiveTopologyPointList))
	case PreviewStyleXRay:
		pipelineOpts = append(pipelineOpts,
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		)
	}
	return pipeline.NewPipeline("preview", pipeline.PipelineTypeRender, pipelineOpts...), nil
}

func (r *renderer) Camera() camera.Camera {
	return r.camera
}

func (r *renderer) Device() *wgpu.Device {
	return r.backend.Device()
}

func (r *renderer) Queue() *wgpu.Queue {
	return r.backend.Queue()
}

func (r *renderer) NewComputeBackend(options ...compute.WGPUBackendBuilderOption) (compute.Backend, error) {
	options = append(options, compute.WithDevice(r.backend.Device(), r.backend.Queue()))
	return compute.NewWGPUBackend(options...)
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.camera.SetAspect(aspect(width, height))
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) Render(items ...DrawItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}

	u := r.camera.Uniform()
	writes := []bind_group_provider.BufferWrite{{Provider: r.cameraBG, Binding: 0, Data: u.Marshal()}}
	if err := r.backend.RefreshBindGroup(r.cameraBG); err != nil {
		return err
	}

	type draw struct {
		item     *drawItem
		vertices uint32
	}
	draws := make([]draw, 0, len(items))
	for _, it := range items {
		d, ok := it.(*drawItem)
		if !ok {
			continue
		}
		vertices := d.resolve()
		if vertices == 0 {
			continue
		}
		if err := r.prepare(d); err != nil {
			return err
		}
		params := d.params()
		writes = append(writes, bind_group_provider.BufferWrite{Provider: d.provider, Binding: bindingItemParams, Data: params.Marshal()})
		draws = append(draws, draw{item: d, vertices: vertices})
	}
	r.backend.WriteBuffers(writes)

	if err := r.backend.BeginFrame(); err != nil {
		return err
	}
	for _, d := range draws {
		r.backend.DrawCall(r.pipeline, d.vertices, []bind_group_provider.BindGroupProvider{r.cameraBG, d.item.provider})
	}
	if err := r.backend.EndFrame(); err != nil {
		return err
	}
	r.backend.Present()
	return nil
}

// prepare gives a draw item its uniform buffer on first use and rebuilds its bind group
// whenever its bindings changed.
func (r *renderer) prepare(d *drawItem) error {
	if d.provider.BindGroupLayout() == nil {
		d.provider.SetBindGroupLayout(r.pipeline.BindGroupLayout(groupItem))
	}
	if d.provider.Buffer(bindingItemParams) == nil {
		buf, err := r.backend.CreateUniformBuffer(d.label+" Item Params", gpuItemParamsSize)
		if err != nil {
			return fmt.Errorf("draw item %s: %w", d.label, err)
		}
		d.provider.SetBuffer(bindingItemParams, buf)
	}
	return r.backend.RefreshBindGroup(d.provider)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	if r.cameraBG != nil {
		r.cameraBG.Release()
	}
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	if r.backend != nil {
		r.backend.Release()
	}
}

func aspect(width, height int) float32 {
	if width <= 0 || height <= 0 {
		return 0
	}
	return float32(width) / float32(height)
}
