package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the preview window the deformed mesh is presented in. It owns the platform event loop
// and exposes the process clock, which serves as the live time source of a driver.
type Window interface {
	// SetFrameCallback sets the function called once per event loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetFrameCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical scroll delta, positive away from the user
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key presses. Escape always closes the window and is
	// not forwarded.
	//
	// Parameters:
	//   - callback: function receiving the key code, see common.Key*
	SetKeyCallback(callback func(keyCode uint32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for creating a WebGPU surface on this window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Time returns seconds since the window was created.
	//
	// Returns:
	//   - float32: elapsed seconds
	Time() float32

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: false once the window was closed
	IsRunning() bool

	// Run polls events and calls the frame callback until the window is closed.
	Run()

	// Close destroys the window and releases the platform library.
	//
	// Returns:
	//   - error: an error if the window was never opened
	Close() error

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// previewWindow is the implementation of the Window interface.
type previewWindow struct {
	title string

	width     int
	height    int
	minWidth  int
	minHeight int

	// platform holds the platform window (*glfwWindow).
	platform any

	onFrame  func()
	onResize func(width, height int)
	onScroll func(delta float32)
	onKey    func(keyCode uint32)
}

var _ Window = &previewWindow{}

// NewWindow opens a window with the given options.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: an error from the platform layer
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &previewWindow{
		title:     "vacs",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 200,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	return w, nil
}

func (w *previewWindow) SetFrameCallback(callback func()) {
	w.onFrame = callback
}

func (w *previewWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *previewWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *previewWindow) SetKeyCallback(callback func(keyCode uint32)) {
	w.onKey = callback
}

func (w *previewWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformSurfaceDescriptor(w)
}

func (w *previewWindow) Time() float32 {
	return platformTime(w)
}

func (w *previewWindow) IsRunning() bool {
	return platformIsRunning(w)
}

func (w *previewWindow) Run() {
	for platformPollEvents(w) {
		if w.onFrame != nil {
			w.onFrame()
		}
		runtime.Gosched()
	}
}

func (w *previewWindow) Close() error {
	return platformClose(w)
}

func (w *previewWindow) Width() int {
	return w.width
}

func (w *previewWindow) Height() int {
	return w.height
}
