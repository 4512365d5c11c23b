package vacs

import "github.com/Carmen-Shannon/vacs-go/engine/geometry"

// DriverBuilderOption is a functional option for configuring a Driver.
// Use the With* functions to create options that are applied directly to the driver instance.
type DriverBuilderOption func(*driver)

// WithLabel sets the debug label used in logs and buffer labels.
//
// Parameters:
//   - label: the label, ignored if empty
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithLabel(label string) DriverBuilderOption {
	return func(d *driver) {
		if label != "" {
			d.label = label
		}
	}
}

// WithGeometry assigns the initial geometry.
//
// Parameters:
//   - g: the geometry
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithGeometry(g geometry.Geometry) DriverBuilderOption {
	return func(d *driver) {
		d.geometry = g
	}
}

// WithTarget assigns the initial draw target.
//
// Parameters:
//   - t: the draw target
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithTarget(t DrawTarget) DriverBuilderOption {
	return func(d *driver) {
		d.target = t
	}
}

// WithTimeSource sets the time source. The default is FixedTime(PreviewTime); pass LiveClock()
// or a window clock while playing back.
//
// Parameters:
//   - ts: the time source, ignored if nil
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithTimeSource(ts TimeSource) DriverBuilderOption {
	return func(d *driver) {
		if ts != nil {
			d.timeSource = ts
		}
	}
}

// WithParameters sets the initial amplitudes. They are clamped to [0, 1].
//
// Parameters:
//   - p: the amplitudes
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithParameters(p Parameters) DriverBuilderOption {
	return func(d *driver) {
		d.params = p
	}
}

// WithSeedSource replaces the generator of the session seed, called once on first activation.
// The default draws from math/rand/v2.
//
// Parameters:
//   - fn: returns a seed in [0, 1)
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithSeedSource(fn func() float32) DriverBuilderOption {
	return func(d *driver) {
		if fn != nil {
			d.seedSource = fn
		}
	}
}
