package vacs

import "errors"

var (
	// ErrDestroyed is returned by every driver operation after Destroy.
	ErrDestroyed = errors.New("driver destroyed")

	// ErrNoGeometry is returned by EnsureBuffers when no geometry is assigned.
	ErrNoGeometry = errors.New("no geometry assigned")

	// ErrNoBackend is returned by NewDriver when no compute backend is given.
	ErrNoBackend = errors.New("no compute backend")
)
