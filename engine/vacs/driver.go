package vacs

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/effect"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
)

// State is the lifecycle state of a Driver.
type State int

const (
	// StateInactive holds no buffers. It is the initial state and the state after Deactivate.
	StateInactive State = iota

	// StateActive runs the pipeline on every Update.
	StateActive

	// StateDestroyed is terminal. Every operation returns ErrDestroyed.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// driver is the implementation of the Driver interface.
type driver struct {
	mu *sync.Mutex

	label   string
	backend compute.Backend
	state   State

	buffers        BufferManager
	chain          StageChain
	reconstruction Reconstruction
	binder         RenderBinder

	target     DrawTarget
	timeSource TimeSource
	params     Parameters

	seed       float32
	seeded     bool
	seedSource func() float32

	// err is the failure that last deactivated the driver.
	err error

	// Set by builder options and consumed by NewDriver.
	geometry geometry.Geometry
}

// Driver runs the deformation pipeline of one mesh instance. Each Update while active encodes the
// five effect stages and the reconstruction into a single compute frame, then publishes the
// resulting buffers to the draw target. All methods are safe for concurrent use; Update,
// Deactivate and Destroy never interleave.
//
// Usage pattern:
//  1. NewDriver loads every kernel, failing loudly on a bad kernel
//  2. Activate assigns the session seed the first time it is called
//  3. Update once per frame, before the target is drawn
//  4. Deactivate or Destroy releases every buffer
//
// A failed frame deactivates the driver. It stays inactive until Activate is called again.
type Driver interface {
	// Label returns the debug label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// State returns the lifecycle state.
	//
	// Returns:
	//   - State: the state
	State() State

	// Activate moves the driver to StateActive. The random seed is assigned on the first call
	// and kept for the driver's lifetime. Activating an active driver is a no-op. Activation
	// clears the error reported by Err.
	//
	// Returns:
	//   - error: ErrDestroyed after Destroy
	Activate() error

	// Deactivate releases every buffer and moves the driver to StateInactive.
	Deactivate()

	// Destroy deactivates the driver and releases its kernels and binding set. Later calls to
	// any method that returns an error report ErrDestroyed. Safe to call more than once.
	Destroy()

	// Update runs one frame. It is a no-op while inactive or while no geometry is assigned:
	// nothing is allocated and nothing is dispatched. A failed frame releases every buffer and
	// leaves the driver in StateInactive, so the failure is reported once.
	//
	// Returns:
	//   - error: ErrDestroyed, or a buffer allocation or dispatch error
	Update() error

	// Err returns the error of the frame that deactivated the driver.
	//
	// Returns:
	//   - error: the failure, or nil if the driver has not failed since its last activation
	Err() error

	// Geometry returns the assigned geometry.
	//
	// Returns:
	//   - geometry.Geometry: the geometry or nil
	Geometry() geometry.Geometry

	// SetGeometry assigns the geometry. Buffers allocated for a different geometry are released
	// and the next Update allocates them at the new size.
	//
	// Parameters:
	//   - g: the geometry, or nil to idle
	//
	// Returns:
	//   - error: ErrDestroyed after Destroy
	SetGeometry(g geometry.Geometry) error

	// SetTarget assigns the draw target. With no target the pipeline still runs but nothing is bound.
	//
	// Parameters:
	//   - t: the draw target or nil
	SetTarget(t DrawTarget)

	// SetTimeSource replaces the time source read by the next Update.
	//
	// Parameters:
	//   - ts: the time source
	SetTimeSource(ts TimeSource)

	// Seed returns the session random seed, 0 until the first activation.
	//
	// Returns:
	//   - float32: the seed in [0, 1)
	Seed() float32

	// Parameters returns the current amplitudes.
	//
	// Returns:
	//   - Parameters: the amplitudes
	Parameters() Parameters

	// SetParameters replaces all amplitudes, clamped to [0, 1]. They apply from the next Update.
	//
	// Parameters:
	//   - p: the amplitudes
	SetParameters(p Parameters)

	// SetAmplitude replaces one stage's amplitude, clamped to [0, 1].
	//
	// Parameters:
	//   - s: the stage
	//   - v: the amplitude
	SetAmplitude(s effect.Stage, v float32)

	// SetDissolve sets the dissolve amplitude.
	SetDissolve(v float32)
	// SetInflate sets the inflate amplitude.
	SetInflate(v float32)
	// SetVoxelize sets the voxelize amplitude.
	SetVoxelize(v float32)
	// SetJitter sets the jitter amplitude.
	SetJitter(v float32)
	// SetDigitize sets the digitize amplitude.
	SetDigitize(v float32)

	// Buffers returns the driver's buffer manager.
	//
	// Returns:
	//   - BufferManager: the buffer manager
	Buffers() BufferManager

	// Output returns the final position buffer, or nil when buffers are not allocated.
	//
	// Returns:
	//   - compute.Buffer: the deformed positions
	Output() compute.Buffer

	// BindingSet returns the binding set handed to the target, or nil before the first bind.
	//
	// Returns:
	//   - BindingSet: the binding set
	BindingSet() BindingSet

	// Backend returns the compute backend the driver runs on.
	//
	// Returns:
	//   - compute.Backend: the backend
	Backend() compute.Backend
}

var _ Driver = &driver{}

// NewDriver creates an inactive driver and loads its kernels. Each driver owns its kernels and
// buffers; drivers sharing a geometry never share buffers.
//
// Parameters:
//   - b: the compute backend
//   - options: builder options such as WithGeometry, WithTarget and WithTimeSource
//
// Returns:
//   - Driver: the driver
//   - error: ErrNoBackend, or a kernel load error wrapping compute.ErrKernelInvalid
func NewDriver(b compute.Backend, options ...DriverBuilderOption) (Driver, error) {
	if b == nil {
		return nil, ErrNoBackend
	}
	d := &driver{
		mu:         &sync.Mutex{},
		label:      "vacs",
		backend:    b,
		timeSource: FixedTime(PreviewTime),
		seedSource: rand.Float32,
		binder:     NewRenderBinder(),
	}
	for _, opt := range options {
		opt(d)
	}
	d.params = d.params.Clamped()

	chain, err := NewStageChain(b)
	if err != nil {
		return nil, fmt.Errorf("driver %s: %w", d.label, err)
	}
	rec, err := NewReconstruction(b)
	if err != nil {
		chain.Release()
		return nil, fmt.Errorf("driver %s: %w", d.label, err)
	}
	d.chain, d.reconstruction = chain, rec
	d.buffers = NewBufferManager(d.label, b, d.geometry)
	d.geometry = nil
	return d, nil
}

func (d *driver) Label() string {
	return d.label
}

func (d *driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *driver) Activate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateDestroyed:
		return ErrDestroyed
	case StateActive:
		return nil
	}
	if !d.seeded {
		d.seed = d.seedSource()
		d.seeded = true
	}
	d.err = nil
	d.state = StateActive
	common.Logger().Debug("driver activated", "driver", d.label, "seed", d.seed)
	return nil
}

func (d *driver) Deactivate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deactivate()
}

func (d *driver) deactivate() {
	d.buffers.ReleaseBuffers()
	d.binder.Release()
	if d.state == StateActive {
		d.state = StateInactive
		common.Logger().Debug("driver deactivated", "driver", d.label)
	}
}

func (d *driver) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateDestroyed {
		return
	}
	d.deactivate()
	d.chain.Release()
	d.reconstruction.Release()
	d.target = nil
	d.state = StateDestroyed
	common.Logger().Debug("driver destroyed", "driver", d.label)
}

func (d *driver) Update() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.state == StateDestroyed:
		return ErrDestroyed
	case d.state != StateActive:
		return nil
	case d.buffers.Geometry() == nil:
		return nil
	}

	if err := d.update(); err != nil {
		common.LogError("driver %s: frame failed, deactivating: %v", d.label, err)
		d.deactivate()
		d.err = err
		return err
	}
	return nil
}

func (d *driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *driver) update() error {
	if err := d.buffers.EnsureBuffers(); err != nil {
		return err
	}

	in := FrameInputs{
		Parameters: d.params,
		Seed:       d.seed,
		Time:       d.timeSource.Now(),
	}
	if err := d.backend.BeginComputeFrame(); err != nil {
		return err
	}
	deformed := d.chain.Output(d.buffers)
	err := d.chain.Encode(d.backend, d.buffers, in)
	if err == nil {
		err = d.reconstruction.Encode(d.backend, d.buffers, deformed)
	}
	// The frame is always closed, even after a failed encode.
	if endErr := d.backend.EndComputeFrame(); endErr != nil {
		err = errors.Join(err, endErr)
	}
	if err != nil {
		return err
	}

	if d.target == nil {
		return nil
	}
	if mesh := d.buffers.Geometry().TemplateMesh(); d.target.Mesh() != mesh {
		d.target.SetMesh(mesh)
	}
	d.binder.Bind(d.target, d.buffers, deformed)
	return nil
}

func (d *driver) Geometry() geometry.Geometry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers.Geometry()
}

func (d *driver) SetGeometry(g geometry.Geometry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateDestroyed {
		return ErrDestroyed
	}
	if g == d.buffers.Geometry() {
		return nil
	}
	d.binder.Release()
	d.buffers.SetGeometry(g)
	return nil
}

func (d *driver) SetTarget(t DrawTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = t
}

func (d *driver) SetTimeSource(ts TimeSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ts == nil {
		ts = FixedTime(PreviewTime)
	}
	d.timeSource = ts
}

func (d *driver) Seed() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seed
}

func (d *driver) Parameters() Parameters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

func (d *driver) SetParameters(p Parameters) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = p.Clamped()
}

func (d *driver) SetAmplitude(s effect.Stage, v float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = d.params.WithAmplitude(s, v)
}

func (d *driver) SetDissolve(v float32) {
	d.SetAmplitude(effect.StageDissolve, v)
}

func (d *driver) SetInflate(v float32) {
	d.SetAmplitude(effect.StageInflate, v)
}

func (d *driver) SetVoxelize(v float32) {
	d.SetAmplitude(effect.StageVoxelize, v)
}

func (d *driver) SetJitter(v float32) {
	d.SetAmplitude(effect.StageJitter, v)
}

func (d *driver) SetDigitize(v float32) {
	d.SetAmplitude(effect.StageDigitize, v)
}

func (d *driver) Buffers() BufferManager {
	return d.buffers
}

func (d *driver) Output() compute.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.buffers.Allocated() {
		return nil
	}
	return d.chain.Output(d.buffers)
}

func (d *driver) BindingSet() BindingSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binder.BindingSet()
}

func (d *driver) Backend() compute.Backend {
	return d.backend
}
