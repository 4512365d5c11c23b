package renderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/vacs-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are delivered to the display.
type PresentMode int

const (
	// PresentModeVSync synchronizes presentation with the display refresh rate.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames as soon as they are ready.
	PresentModeUncapped
)

// PreviewStyle selects how the preview pipeline rasterizes draw items.
type PreviewStyle int

const (
	// PreviewStyleShaded draws depth-tested lit triangles.
	PreviewStyleShaded PreviewStyle = iota

	// PreviewStylePoints draws every triangle corner as a point.
	PreviewStylePoints

	// PreviewStyleXRay draws lit triangles without depth testing, so hidden surfaces show through.
	PreviewStyleXRay
)

var (
	// ErrUnknownPresentMode is returned by ParsePresentMode for a name other than vsync or uncapped.
	ErrUnknownPresentMode = errors.New("unknown present mode")

	// ErrUnknownPreviewStyle is returned by ParsePreviewStyle for a name other than shaded, points or xray.
	ErrUnknownPreviewStyle = errors.New("unknown preview style")
)

// ParsePresentMode maps a configuration name to a PresentMode. An empty name selects VSync.
//
// Parameters:
//   - name: "vsync" or "uncapped", case insensitive
//
// Returns:
//   - PresentMode: the mode
//   - error: ErrUnknownPresentMode
func ParsePresentMode(name string) (PresentMode, error) {
	switch strings.ToLower(name) {
	case "", "vsync":
		return PresentModeVSync, nil
	case "uncapped":
		return PresentModeUncapped, nil
	}
	return PresentModeVSync, fmt.Errorf("%w: %q", ErrUnknownPresentMode, name)
}

// ParsePreviewStyle maps a configuration name to a PreviewStyle. An empty name selects shaded.
//
// Parameters:
//   - name: "shaded", "points" or "xray", case insensitive
//
// Returns:
//   - PreviewStyle: the style
//   - error: ErrUnknownPreviewStyle
func ParsePreviewStyle(name string) (PreviewStyle, error) {
	switch strings.ToLower(name) {
	case "", "shaded":
		return PreviewStyleShaded, nil
	case "points":
		return PreviewStylePoints, nil
	case "xray":
		return PreviewStyleXRay, nil
	}
	return PreviewStyleShaded, fmt.Errorf("%w: %q", ErrUnknownPreviewStyle, name)
}

// MSAASampleCount is the number of samples per pixel of the main render pass.
type MSAASampleCount uint32

const (
	MSAAOff MSAASampleCount = 1
	MSAA4x  MSAASampleCount = 4
)

// RendererBackend is the device-level half of the renderer: surface management, pipeline
// creation and frame encoding.
type RendererBackend interface {
	// Device returns the device every renderer resource is created on.
	//
	// Returns:
	//   - *wgpu.Device: the device
	Device() *wgpu.Device

	// Queue returns the device's queue.
	//
	// Returns:
	//   - *wgpu.Queue: the queue
	Queue() *wgpu.Queue

	// ConfigureSurface configures the surface and recreates the depth and MSAA targets.
	// Call it again whenever the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if a render target could not be created
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the present mode used by the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// RegisterRenderPipeline creates the shader modules, bind group layouts and render pipeline
	// of p and stores them on p.
	//
	// Parameters:
	//   - p: the pipeline holding a vertex and a fragment shader
	//
	// Returns:
	//   - error: an error if any GPU object could not be created
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// CreateUniformBuffer creates a uniform buffer of the given size.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the size in bytes
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	//   - error: an error if the buffer could not be created
	CreateUniformBuffer(label string, size uint64) (*wgpu.Buffer, error)

	// RefreshBindGroup rebuilds the provider's bind group if it is stale.
	//
	// Parameters:
	//   - provider: the provider to refresh
	//
	// Returns:
	//   - error: an error if the bind group could not be created
	RefreshBindGroup(provider bind_group_provider.BindGroupProvider) error

	// WriteBuffers queues all staged buffer writes.
	//
	// Parameters:
	//   - writes: the writes to queue
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginFrame acquires the next swapchain texture and begins the main render pass.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// DrawCall encodes a non-indexed draw of vertexCount vertices with the given bind groups.
	//
	// Parameters:
	//   - p: the render pipeline
	//   - vertexCount: the number of vertices to draw
	//   - bindGroups: providers for groups 0..n-1
	DrawCall(p pipeline.Pipeline, vertexCount uint32, bindGroups []bind_group_provider.BindGroupProvider)

	// EndFrame ends the render pass and submits it.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	EndFrame() error

	// Present presents the surface and releases the swapchain texture.
	Present()

	// Release releases every object the backend created.
	Release()
}
