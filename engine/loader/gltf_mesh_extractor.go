package loader

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// maxNodeDepth bounds the scene graph walk so a cyclic node hierarchy fails instead of recursing forever.
const maxNodeDepth = 64

// meshData is the merged, world-space triangle list of every mesh instance in a scene.
// An optional attribute is kept only if every primitive provided it.
type meshData struct {
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	tangents  []mgl32.Vec4
	texCoords []mgl32.Vec2
	indices   []uint32

	hasNormals   bool
	hasTangents  bool
	hasTexCoords bool
	primitives   int
}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
	data   *meshData
}

// gltfMeshExtractor flattens the meshes of a parsed glTF document into a single triangle list.
type gltfMeshExtractor interface {
	// Extract walks the default scene (or every root mesh when the document has no scenes),
	// transforms every primitive by its node's world matrix and merges them.
	//
	// Returns:
	//   - *meshData: the merged triangles
	//   - error: error if the document has no triangles or an accessor is malformed
	Extract() (*meshData, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) Extract() (*meshData, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, errors.New("no document loaded")
	}
	e.data = &meshData{hasNormals: true, hasTangents: true, hasTexCoords: true}

	if len(doc.Scenes) == 0 {
		for i := range doc.Meshes {
			if err := e.appendMesh(i, mgl32.Ident4()); err != nil {
				return nil, err
			}
		}
	} else {
		scene := 0
		if doc.Scene != nil {
			scene = *doc.Scene
		}
		if scene < 0 || scene >= len(doc.Scenes) {
			return nil, fmt.Errorf("scene %d out of range", scene)
		}
		for _, n := range doc.Scenes[scene].Nodes {
			if err := e.walk(n, mgl32.Ident4(), 0); err != nil {
				return nil, err
			}
		}
	}

	d := e.data
	if len(d.indices) == 0 {
		return nil, errors.New("document contains no triangles")
	}
	if !d.hasNormals {
		d.normals = nil
	}
	if !d.hasTangents {
		d.tangents = nil
	}
	if !d.hasTexCoords {
		d.texCoords = nil
	}
	return d, nil
}

func (e *gltfMeshExtractorImpl) walk(nodeIndex int, parent mgl32.Mat4, depth int) error {
	doc := e.parser.Document()
	if nodeIndex < 0 || nodeIndex >= len(doc.Nodes) {
		return fmt.Errorf("node %d out of range", nodeIndex)
	}
	if depth > maxNodeDepth {
		return fmt.Errorf("node %d: hierarchy deeper than %d", nodeIndex, maxNodeDepth)
	}
	node := &doc.Nodes[nodeIndex]
	world := parent.Mul4(localMatrix(node))

	if node.Mesh != nil {
		if err := e.appendMesh(*node.Mesh, world); err != nil {
			return fmt.Errorf("node %d: %w", nodeIndex, err)
		}
	}
	for _, c := range node.Children {
		if err := e.walk(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// localMatrix returns the node matrix, or T * R * S when it has none.
func localMatrix(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if t := n.Translation; t != nil {
		m = mgl32.Translate3D(t[0], t[1], t[2])
	}
	if r := n.Rotation; r != nil {
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		m = m.Mul4(q.Normalize().Mat4())
	}
	if s := n.Scale; s != nil {
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

func (e *gltfMeshExtractorImpl) appendMesh(meshIndex int, world mgl32.Mat4) error {
	doc := e.parser.Document()
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return fmt.Errorf("mesh index %d out of range", meshIndex)
	}
	mesh := &doc.Meshes[meshIndex]
	for i := range mesh.Primitives {
		if err := e.appendPrimitive(&mesh.Primitives[i], world); err != nil {
			return fmt.Errorf("mesh %d primitive %d: %w", meshIndex, i, err)
		}
	}
	return nil
}

func (e *gltfMeshExtractorImpl) appendPrimitive(prim *gltfPrimitive, world mgl32.Mat4) error {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return errors.New("primitive has no POSITION attribute")
	}
	raw, err := e.parser.ReadFloats(posAccessor, gltfAccessorTypeVec3)
	if err != nil {
		return fmt.Errorf("failed to read positions: %w", err)
	}

	d := e.data
	base := uint32(len(d.positions))
	count := len(raw) / 3
	for i := range count {
		p := world.Mul4x1(mgl32.Vec4{raw[3*i], raw[3*i+1], raw[3*i+2], 1})
		d.positions = append(d.positions, p.Vec3())
	}

	linear := world.Mat3()
	normalMatrix := linear.Inv().Transpose()

	if a, ok := prim.Attributes["NORMAL"]; ok && d.hasNormals {
		raw, err := e.parser.ReadFloats(a, gltfAccessorTypeVec3)
		if err != nil {
			return fmt.Errorf("failed to read normals: %w", err)
		}
		if len(raw)/3 != count {
			return fmt.Errorf("%d normals for %d positions", len(raw)/3, count)
		}
		for i := range count {
			n := normalMatrix.Mul3x1(mgl32.Vec3{raw[3*i], raw[3*i+1], raw[3*i+2]})
			d.normals = append(d.normals, safeNormalize(n))
		}
	} else {
		d.hasNormals = false
	}

	if a, ok := prim.Attributes["TANGENT"]; ok && d.hasTangents {
		raw, err := e.parser.ReadFloats(a, gltfAccessorTypeVec4)
		if err != nil {
			return fmt.Errorf("failed to read tangents: %w", err)
		}
		if len(raw)/4 != count {
			return fmt.Errorf("%d tangents for %d positions", len(raw)/4, count)
		}
		for i := range count {
			t := safeNormalize(linear.Mul3x1(mgl32.Vec3{raw[4*i], raw[4*i+1], raw[4*i+2]}))
			d.tangents = append(d.tangents, t.Vec4(raw[4*i+3]))
		}
	} else {
		d.hasTangents = false
	}

	if a, ok := prim.Attributes["TEXCOORD_0"]; ok && d.hasTexCoords {
		raw, err := e.parser.ReadFloats(a, gltfAccessorTypeVec2)
		if err != nil {
			return fmt.Errorf("failed to read texcoords: %w", err)
		}
		if len(raw)/2 != count {
			return fmt.Errorf("%d texture coordinates for %d positions", len(raw)/2, count)
		}
		for i := range count {
			d.texCoords = append(d.texCoords, mgl32.Vec2{raw[2*i], raw[2*i+1]})
		}
	} else {
		d.hasTexCoords = false
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = e.parser.ReadIndices(*prim.Indices)
		if err != nil {
			return fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		indices = make([]uint32, count)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("%d indices is not a whole number of triangles", len(indices))
	}

	// A mirroring transform reverses the winding.
	mirrored := linear.Det() < 0
	for t := 0; t < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if mirrored {
			b, c = c, b
		}
		d.indices = append(d.indices, base+a, base+b, base+c)
	}
	d.primitives++
	return nil
}

// normalize recenters the positions on their bounding box center and scales them uniformly so
// the farthest vertex lies at radius.
func (d *meshData) normalize(radius float32) {
	if len(d.positions) == 0 || radius <= 0 {
		return
	}
	lo, hi := d.positions[0], d.positions[0]
	for _, p := range d.positions[1:] {
		for k := range 3 {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	center := lo.Add(hi).Mul(0.5)

	var extent float32
	for i, p := range d.positions {
		d.positions[i] = p.Sub(center)
		extent = max(extent, d.positions[i].Len())
	}
	if extent == 0 {
		return
	}
	scale := radius / extent
	for i := range d.positions {
		d.positions[i] = d.positions[i].Mul(scale)
	}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}
