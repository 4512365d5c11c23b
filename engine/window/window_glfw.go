package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW window state.
type glfwWindow struct {
	window  *glfw.Window
	running bool
	start   float64
}

// newPlatformWindow creates the GLFW window without a client API, since WebGPU drives the surface.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *previewWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, glfw.DontCare, glfw.DontCare)

	gw := &glfwWindow{
		window:  win,
		running: true,
		start:   glfw.GetTime(),
	}
	w.platform = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if key == glfw.KeyEscape {
			gw.running = false
			win.SetShouldClose(true)
			return
		}
		if w.onKey != nil {
			w.onKey(uint32(key))
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	// Framebuffer size is in pixels, which differs from the window size on high-DPI displays.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	w.width, w.height = win.GetFramebufferSize()
	return nil
}

func glfwOf(w *previewWindow) *glfwWindow {
	gw, _ := w.platform.(*glfwWindow)
	return gw
}

// platformSurfaceDescriptor builds the surface descriptor through the wgpuglfw bridge.
func platformSurfaceDescriptor(w *previewWindow) *wgpu.SurfaceDescriptor {
	gw := glfwOf(w)
	if gw == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

func platformTime(w *previewWindow) float32 {
	gw := glfwOf(w)
	if gw == nil {
		return 0
	}
	return float32(glfw.GetTime() - gw.start)
}

func platformIsRunning(w *previewWindow) bool {
	gw := glfwOf(w)
	return gw != nil && gw.running && !gw.window.ShouldClose()
}

// platformPollEvents processes pending events without blocking and reports whether the window
// is still open.
func platformPollEvents(w *previewWindow) bool {
	if glfwOf(w) == nil {
		return false
	}
	glfw.PollEvents()
	return platformIsRunning(w)
}

func platformClose(w *previewWindow) error {
	gw := glfwOf(w)
	if gw == nil {
		return errors.New("window is not open")
	}
	gw.running = false
	gw.window.Destroy()
	glfw.Terminate()
	w.platform = nil
	return nil
}
