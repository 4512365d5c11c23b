package loader

import "github.com/Carmen-Shannon/vacs-go/engine/geometry"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithNormalizedRadius recenters every loaded mesh on its bounding box center and scales it so
// its farthest vertex lies at radius. Zero keeps the file's units.
//
// Parameters:
//   - radius: the bounding radius after loading
//
// Returns:
//   - LoaderBuilderOption: a function that applies the option to a loader
func WithNormalizedRadius(radius float32) LoaderBuilderOption {
	return func(l *loader) {
		l.radius = max(radius, 0)
	}
}

// WithGeometry pre-populates the cache.
//
// Parameters:
//   - key: the cache key
//   - g: the geometry to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the option to a loader
func WithGeometry(key string, g geometry.Geometry) LoaderBuilderOption {
	return func(l *loader) {
		l.cache[key] = g
	}
}
