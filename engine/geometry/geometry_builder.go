package geometry

import "github.com/go-gl/mathgl/mgl32"

// GeometryBuilderOption is a functional option used to configure a Geometry during construction.
type GeometryBuilderOption func(*geometry)

// WithLabel sets the debug label, which is also the template mesh label.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - GeometryBuilderOption: a function that sets the label
func WithLabel(label string) GeometryBuilderOption {
	return func(g *geometry) {
		g.label = label
	}
}

// WithIndexedMesh sets shared vertex positions and the triangle list indexing them.
//
// Parameters:
//   - positions: the vertex positions
//   - indices: three indices per triangle
//
// Returns:
//   - GeometryBuilderOption: a function that sets the mesh topology
func WithIndexedMesh(positions []mgl32.Vec3, indices []uint32) GeometryBuilderOption {
	return func(g *geometry) {
		g.positions = positions
		g.indices = indices
	}
}

// WithTriangles sets an unindexed triangle list where every three positions form a triangle.
//
// Parameters:
//   - corners: the triangle corners
//
// Returns:
//   - GeometryBuilderOption: a function that sets the mesh topology
func WithTriangles(corners []mgl32.Vec3) GeometryBuilderOption {
	return func(g *geometry) {
		g.positions = corners
		g.indices = make([]uint32, len(corners))
		for i := range g.indices {
			g.indices[i] = uint32(i)
		}
	}
}

// WithNormals sets one normal per vertex instead of generating them.
//
// Parameters:
//   - normals: unit normals matching the positions
//
// Returns:
//   - GeometryBuilderOption: a function that sets the normals
func WithNormals(normals []mgl32.Vec3) GeometryBuilderOption {
	return func(g *geometry) {
		g.normals = normals
	}
}

// WithTangents sets one tangent per vertex, handedness in w, instead of generating them.
//
// Parameters:
//   - tangents: tangents matching the positions
//
// Returns:
//   - GeometryBuilderOption: a function that sets the tangents
func WithTangents(tangents []mgl32.Vec4) GeometryBuilderOption {
	return func(g *geometry) {
		g.tangents = tangents
	}
}

// WithTexCoords sets texture coordinates used only to generate tangents.
//
// Parameters:
//   - texCoords: texture coordinates matching the positions
//
// Returns:
//   - GeometryBuilderOption: a function that sets the texture coordinates
func WithTexCoords(texCoords []mgl32.Vec2) GeometryBuilderOption {
	return func(g *geometry) {
		g.texCoords = texCoords
	}
}
