package geometry

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	// ErrIndexCount is returned when the index count is not a multiple of 3.
	ErrIndexCount = errors.New("index count is not a multiple of 3")

	// ErrIndexOutOfRange is returned when an index refers past the end of the vertex arrays.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrAttributeCount is returned when a vertex attribute array does not match the position count.
	ErrAttributeCount = errors.New("attribute count does not match position count")
)

// Mesh is the handle of the renderable template mesh a Geometry was built from. Two handles are
// equal only if they refer to the same template.
type Mesh struct {
	ID          uuid.UUID
	Label       string
	VertexCount int
}

// geometry is the implementation of the Geometry interface.
type geometry struct {
	label string
	mesh  Mesh

	// Indexed input, consumed by NewGeometry.
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	tangents  []mgl32.Vec4
	texCoords []mgl32.Vec2
	indices   []uint32

	// Triangle-corner data, 3 elements per triangle.
	cornerPositions []compute.Element
	cornerNormals   []compute.Element
	cornerTangents  []compute.Element

	boundingRadius float32
}

// Geometry is an immutable triangle soup in triangle-corner layout: triangle t owns elements
// 3t, 3t+1 and 3t+2 of every attribute. It creates device buffers initialized with its data but
// never owns them.
type Geometry interface {
	// Label returns the debug label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// TriangleCount returns the number of triangles.
	//
	// Returns:
	//   - int: the triangle count, possibly 0
	TriangleCount() int

	// TemplateMesh returns the handle of the renderable mesh this geometry describes.
	//
	// Returns:
	//   - Mesh: the template mesh handle
	TemplateMesh() Mesh

	// BoundingRadius returns the largest distance of any position from the origin.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// Positions returns a copy of the corner positions with w = 0.
	//
	// Returns:
	//   - []compute.Element: 3 * TriangleCount elements
	Positions() []compute.Element

	// Normals returns a copy of the corner normals with w = 0.
	//
	// Returns:
	//   - []compute.Element: 3 * TriangleCount elements
	Normals() []compute.Element

	// Tangents returns a copy of the corner tangents with the handedness in w.
	//
	// Returns:
	//   - []compute.Element: 3 * TriangleCount elements
	Tangents() []compute.Element

	// CreatePositionBuffer creates a buffer initialized with the corner positions.
	//
	// Parameters:
	//   - b: the backend to allocate on
	//   - label: a debug label
	//
	// Returns:
	//   - compute.Buffer: a buffer of 3 * TriangleCount elements owned by the caller
	//   - error: an allocation error from the backend
	CreatePositionBuffer(b compute.Backend, label string) (compute.Buffer, error)

	// CreateNormalBuffer creates a buffer initialized with the corner normals.
	//
	// Parameters:
	//   - b: the backend to allocate on
	//   - label: a debug label
	//
	// Returns:
	//   - compute.Buffer: a buffer of 3 * TriangleCount elements owned by the caller
	//   - error: an allocation error from the backend
	CreateNormalBuffer(b compute.Backend, label string) (compute.Buffer, error)

	// CreateTangentBuffer creates a buffer initialized with the corner tangents.
	//
	// Parameters:
	//   - b: the backend to allocate on
	//   - label: a debug label
	//
	// Returns:
	//   - compute.Buffer: a buffer of 3 * TriangleCount elements owned by the caller
	//   - error: an allocation error from the backend
	CreateTangentBuffer(b compute.Backend, label string) (compute.Buffer, error)
}

var _ Geometry = &geometry{}

// NewGeometry builds a Geometry from an indexed mesh or a list of triangle corners. Missing
// normals are generated as area weighted vertex normals. Missing tangents are generated from
// texture coordinates when they are supplied, otherwise as any unit vector orthogonal to the
// normal with w = 1.
//
// Parameters:
//   - options: builder options such as WithIndexedMesh, WithTriangles and WithNormals
//
// Returns:
//   - Geometry: the geometry
//   - error: ErrIndexCount, ErrIndexOutOfRange or ErrAttributeCount for malformed input
func NewGeometry(options ...GeometryBuilderOption) (Geometry, error) {
	g := &geometry{}
	for _, opt := range options {
		opt(g)
	}

	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("geometry %s: %w", g.label, err)
	}
	if g.normals == nil {
		g.normals = generateNormals(g.positions, g.indices)
	}
	if g.tangents == nil {
		g.tangents = generateTangents(g.positions, g.normals, g.texCoords, g.indices)
	}
	g.expand()

	g.mesh = Mesh{
		ID:          uuid.New(),
		Label:       g.label,
		VertexCount: len(g.indices),
	}
	g.positions, g.normals, g.tangents, g.texCoords, g.indices = nil, nil, nil, nil, nil
	return g, nil
}

func (g *geometry) validate() error {
	if len(g.indices)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrIndexCount, len(g.indices))
	}
	n := len(g.positions)
	for i, idx := range g.indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d at %d, %d vertices", ErrIndexOutOfRange, idx, i, n)
		}
	}
	if g.normals != nil && len(g.normals) != n {
		return fmt.Errorf("%w: %d normals", ErrAttributeCount, len(g.normals))
	}
	if g.tangents != nil && len(g.tangents) != n {
		return fmt.Errorf("%w: %d tangents", ErrAttributeCount, len(g.tangents))
	}
	if g.texCoords != nil && len(g.texCoords) != n {
		return fmt.Errorf("%w: %d texture coordinates", ErrAttributeCount, len(g.texCoords))
	}
	return nil
}

// expand converts the indexed attributes into triangle-corner elements.
func (g *geometry) expand() {
	count := len(g.indices)
	g.cornerPositions = make([]compute.Element, count)
	g.cornerNormals = make([]compute.Element, count)
	g.cornerTangents = make([]compute.Element, count)
	for c, idx := range g.indices {
		p, n, t := g.positions[idx], g.normals[idx], g.tangents[idx]
		g.cornerPositions[c] = compute.Element{p[0], p[1], p[2], 0}
		g.cornerNormals[c] = compute.Element{n[0], n[1], n[2], 0}
		g.cornerTangents[c] = compute.Element(t)
		g.boundingRadius = max(g.boundingRadius, p.Len())
	}
}

func (g *geometry) Label() string {
	return g.label
}

func (g *geometry) TriangleCount() int {
	return len(g.cornerPositions) / 3
}

func (g *geometry) TemplateMesh() Mesh {
	return g.mesh
}

func (g *geometry) BoundingRadius() float32 {
	return g.boundingRadius
}

func (g *geometry) Positions() []compute.Element {
	return append([]compute.Element(nil), g.cornerPositions...)
}

func (g *geometry) Normals() []compute.Element {
	return append([]compute.Element(nil), g.cornerNormals...)
}

func (g *geometry) Tangents() []compute.Element {
	return append([]compute.Element(nil), g.cornerTangents...)
}

func (g *geometry) CreatePositionBuffer(b compute.Backend, label string) (compute.Buffer, error) {
	return b.CreateBuffer(label, g.cornerPositions)
}

func (g *geometry) CreateNormalBuffer(b compute.Backend, label string) (compute.Buffer, error) {
	return b.CreateBuffer(label, g.cornerNormals)
}

func (g *geometry) CreateTangentBuffer(b compute.Backend, label string) (compute.Buffer, error) {
	return b.CreateBuffer(label, g.cornerTangents)
}
