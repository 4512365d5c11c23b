package loader

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// ErrUnsupportedFormat is returned by Load for a file extension no backend reads.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	cache   map[string]geometry.Geometry
	backend loaderBackend
	radius  float32
}

// Loader reads model files into Geometry the effect chain can deform and caches the result.
// Every mesh instance of the file's default scene is placed by its node transform and merged
// into one geometry. Materials, skins and animations are ignored.
type Loader interface {
	// Load imports a model file, or returns the geometry cached under path.
	// The backend is selected by extension (.gltf/.glb).
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - geometry.Geometry: the loaded geometry, labeled with the file's base name
	//   - error: ErrUnsupportedFormat, or an error reading or converting the file
	Load(path string) (geometry.Geometry, error)

	// LoadReader imports a model from a stream and caches it under name.
	//
	// Parameters:
	//   - name: the cache key and geometry label
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - geometry.Geometry: the loaded geometry
	//   - error: error if reading or converting fails
	LoadReader(name string, r io.Reader, isGLB bool) (geometry.Geometry, error)

	// Get returns a cached geometry, or nil.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - geometry.Geometry: the cached geometry or nil
	Get(name string) geometry.Geometry

	// Geometries returns a copy of the cache.
	//
	// Returns:
	//   - map[string]geometry.Geometry: all cached geometry keyed by name
	Geometries() map[string]geometry.Geometry
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the loader
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		cache: make(map[string]geometry.Geometry),
	}
	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (geometry.Geometry, error) {
	if g := l.Get(path); g != nil {
		return g, nil
	}
	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	data, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return l.store(path, label, data)
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (geometry.Geometry, error) {
	if g := l.Get(name); g != nil {
		return g, nil
	}
	data, err := l.backend.LoadReader(r, isGLB)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	return l.store(name, name, data)
}

func (l *loader) Get(name string) geometry.Geometry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[name]
}

func (l *loader) Geometries() map[string]geometry.Geometry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.cache)
}

func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// store converts the merged triangles to a Geometry and caches it. Attributes the file did not
// provide for every primitive are generated by the geometry package.
func (l *loader) store(key, label string, data *meshData) (geometry.Geometry, error) {
	if l.radius > 0 {
		data.normalize(l.radius)
	}
	opts := []geometry.GeometryBuilderOption{
		geometry.WithLabel(label),
		geometry.WithIndexedMesh(data.positions, data.indices),
	}
	if data.normals != nil {
		opts = append(opts, geometry.WithNormals(data.normals))
	}
	if data.tangents != nil {
		opts = append(opts, geometry.WithTangents(data.tangents))
	}
	if data.texCoords != nil {
		opts = append(opts, geometry.WithTexCoords(data.texCoords))
	}
	g, err := geometry.NewGeometry(opts...)
	if err != nil {
		return nil, err
	}
	common.LogDebug("loaded %s: %d primitives, %d triangles", label, data.primitives, g.TriangleCount())

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.cache[key]; ok {
		return cached, nil
	}
	l.cache[key] = g
	return g, nil
}
