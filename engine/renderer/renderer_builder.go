package renderer

import "github.com/cogentcore/webgpu/wgpu"

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count for the renderer.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.sampleCount = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithShaderValidation compiles the preview shader with naga before creating the pipeline.
func WithShaderValidation(validate bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validate = validate
	}
}

// WithClearColor sets the background color of every frame.
func WithClearColor(c wgpu.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithPreviewStyle sets how draw items are rasterized.
//
// Parameters:
//   - style: the PreviewStyle (default PreviewStyleShaded)
//
// Returns:
//   - RendererBuilderOption: a function that applies the style to a renderer
func WithPreviewStyle(style PreviewStyle) RendererBuilderOption {
	return func(r *renderer) {
		r.style = style
	}
}

// WithFrontFace sets the winding the preview lights as the front side. Meshes authored with
// clockwise winding want wgpu.FrontFaceCW.
func WithFrontFace(frontFace wgpu.FrontFace) RendererBuilderOption {
	return func(r *renderer) {
		r.frontFace = frontFace
	}
}
