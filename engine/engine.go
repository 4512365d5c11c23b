package engine

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/profiler"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer"
	"github.com/Carmen-Shannon/vacs-go/engine/vacs"
	"github.com/Carmen-Shannon/vacs-go/engine/window"
)

// ErrNoRenderer is returned by Run when the engine was built without a window or renderer.
var ErrNoRenderer = errors.New("engine has no window or renderer")

// layer is one driver and the item it deforms.
type layer struct {
	driver vacs.Driver
	item   renderer.DrawItem
}

// engine implements the Engine interface.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window   window.Window
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	layers map[int]layer

	renderFrameLimit time.Duration
	lastRender       time.Time
	now              func() time.Time
}

// Engine runs the preview: every window frame it updates each active driver, draws the items the
// drivers bound in ascending layer order and presents the result. A separate fixed-rate tick loop
// runs the tick callback for logic that does not need the render thread.
type Engine interface {
	// Window returns the window frames are presented in.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer items are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick from the tick goroutine.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each frame is presented.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddDriver registers a driver at the given layer key and makes item its draw target.
	// Layers are drawn in ascending key order. A driver already at key is replaced, not destroyed.
	//
	// Parameters:
	//   - key: the layer determining draw order (lower draws first)
	//   - d: the driver
	//   - item: the item the driver binds its output to
	AddDriver(key int, d vacs.Driver, item renderer.DrawItem)

	// RemoveDriver removes the layer at key. The driver is neither deactivated nor destroyed.
	//
	// Parameters:
	//   - key: the layer to remove
	RemoveDriver(key int)

	// Driver returns the driver at key, or nil.
	//
	// Parameters:
	//   - key: the layer to look up
	//
	// Returns:
	//   - vacs.Driver: the driver or nil
	Driver(key int) vacs.Driver

	// Drivers returns a copy of all registered drivers keyed by layer.
	//
	// Returns:
	//   - map[int]vacs.Driver: the drivers
	Drivers() map[int]vacs.Driver

	// Run starts the tick loop and the window event loop. It blocks until the window closes
	// or Quit is called.
	//
	// Returns:
	//   - error: ErrNoRenderer if the engine has no window or renderer
	Run() error

	// Quit stops the tick loop and ends Run after the current frame. Safe to call more than once.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options. When both a window and a renderer are
// given, window resizes are forwarded to the renderer.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		layers:          make(map[int]layer),
		engineTickRate:  time.Second / 60,
		now:             time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithClock(e.now))
	}

	if e.window != nil && e.renderer != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if err := e.renderer.Resize(width, height); err != nil {
				common.LogError("resize to %dx%d: %v", width, height, err)
			}
		})
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Run() error {
	if e.window == nil || e.renderer == nil {
		return ErrNoRenderer
	}
	e.mu.Lock()
	e.running = true
	e.lastRender = e.now()
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleEngine()

	e.window.SetFrameCallback(func() {
		select {
		case <-e.quitChannel:
			_ = e.window.Close()
		default:
			e.frame()
		}
	})
	e.window.Run()

	e.signalQuit()
	e.wg.Wait()
	return nil
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel exactly once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate tick loop until the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickRate())
	defer ticker.Stop()
	lastTick := e.now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := e.now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.mu.Lock()
			cb := e.tickCallback
			e.mu.Unlock()
			if cb != nil {
				cb(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// frame updates every active driver, draws the layers in ascending key order and runs the
// per-frame callbacks. A driver whose update fails is skipped for the frame.
func (e *engine) frame() {
	e.mu.Lock()
	now := e.now()
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now
	keys := slices.Sorted(maps.Keys(e.layers))
	layers := make([]layer, 0, len(keys))
	for _, k := range keys {
		layers = append(layers, e.layers[k])
	}
	renderCallback := e.renderCallback
	profiling := e.profilingEnabled
	limit := e.renderFrameLimit
	e.mu.Unlock()

	items := make([]renderer.DrawItem, 0, len(layers))
	for _, l := range layers {
		if l.driver.State() != vacs.StateActive {
			continue
		}
		if err := l.driver.Update(); err != nil {
			continue
		}
		items = append(items, l.item)
	}

	if err := e.renderer.Render(items...); err != nil {
		common.LogError("render: %v", err)
		if errors.Is(err, renderer.ErrReleased) {
			e.signalQuit()
		}
	}

	if renderCallback != nil {
		renderCallback(dt)
	}
	if profiling {
		e.profiler.Tick()
	}

	if limit > 0 {
		if remaining := limit - e.now().Sub(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) tickRate() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engineTickRate
}

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	e.engineTickRate = newRate
	running := e.running
	e.mu.Unlock()
	if !running {
		return
	}

	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) AddDriver(key int, d vacs.Driver, item renderer.DrawItem) {
	d.SetTarget(item)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layers[key] = layer{driver: d, item: item}
}

func (e *engine) RemoveDriver(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.layers, key)
}

func (e *engine) Driver(key int) vacs.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.layers[key]; ok {
		return l.driver
	}
	return nil
}

func (e *engine) Drivers() map[int]vacs.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[int]vacs.Driver, len(e.layers))
	for k, l := range e.layers {
		out[k] = l.driver
	}
	return out
}

// frameDuration converts a frame rate to a frame duration; 0 means uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
