package loader

import "io"

// loaderBackend reads a model format into a merged triangle list.
type loaderBackend interface {
	// Load reads the model file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *meshData: the merged triangles
	//   - error: error if reading or extraction fails
	Load(path string) (*meshData, error)

	// LoadReader reads a model from a stream.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - *meshData: the merged triangles
	//   - error: error if reading or extraction fails
	LoadReader(r io.Reader, isGLB bool) (*meshData, error)
}
