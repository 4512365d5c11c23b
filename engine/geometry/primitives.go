package geometry

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// NewIcosphere builds a sphere by subdividing an icosahedron. Each subdivision splits every
// triangle into four, so the sphere has 20 * 4^subdivisions triangles. Normals point outward.
//
// Parameters:
//   - subdivisions: the number of subdivision passes, clamped to [0, 6]
//   - radius: the sphere radius
//
// Returns:
//   - Geometry: the sphere
//   - error: an error from NewGeometry
func NewIcosphere(subdivisions int, radius float32) (Geometry, error) {
	subdivisions = min(max(subdivisions, 0), 6)

	t := float32((1 + 2.2360679775) / 2)
	positions := []mgl32.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range positions {
		positions[i] = positions[i].Normalize()
	}
	indices := []uint32{
		0, 11, 5, 0, 5, 1, 0, 1, 7, 0, 7, 10, 0, 10, 11,
		1, 5, 9, 5, 11, 4, 11, 10, 2, 10, 7, 6, 7, 1, 8,
		3, 9, 4, 3, 4, 2, 3, 2, 6, 3, 6, 8, 3, 8, 9,
		4, 9, 5, 2, 4, 11, 6, 2, 10, 8, 6, 7, 9, 8, 1,
	}

	for range subdivisions {
		midpoints := make(map[[2]uint32]uint32)
		midpoint := func(a, b uint32) uint32 {
			key := [2]uint32{min(a, b), max(a, b)}
			if idx, ok := midpoints[key]; ok {
				return idx
			}
			positions = append(positions, positions[a].Add(positions[b]).Normalize())
			idx := uint32(len(positions) - 1)
			midpoints[key] = idx
			return idx
		}

		next := make([]uint32, 0, len(indices)*4)
		for i := 0; i < len(indices); i += 3 {
			a, b, c := indices[i], indices[i+1], indices[i+2]
			ab, bc, ca := midpoint(a, b), midpoint(b, c), midpoint(c, a)
			next = append(next,
				a, ab, ca,
				b, bc, ab,
				c, ca, bc,
				ab, bc, ca,
			)
		}
		indices = next
	}

	normals := make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		normals[i] = p
		positions[i] = p.Mul(radius)
	}

	return NewGeometry(
		WithLabel(fmt.Sprintf("icosphere-%d", subdivisions)),
		WithIndexedMesh(positions, indices),
		WithNormals(normals),
	)
}

// NewCube builds an axis aligned cube centered on the origin with flat shaded faces.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - Geometry: the cube with 12 triangles
//   - error: an error from NewGeometry
func NewCube(size float32) (Geometry, error) {
	h := size / 2
	type face struct {
		normal, u, v mgl32.Vec3
	}
	faces := []face{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}

	positions := make([]mgl32.Vec3, 0, 24)
	normals := make([]mgl32.Vec3, 0, 24)
	tangents := make([]mgl32.Vec4, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(positions))
		center := f.normal.Mul(h)
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			positions = append(positions, center.Add(f.u.Mul(c[0]*h)).Add(f.v.Mul(c[1]*h)))
			normals = append(normals, f.normal)
			tangents = append(tangents, f.u.Vec4(1))
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	return NewGeometry(
		WithLabel("cube"),
		WithIndexedMesh(positions, indices),
		WithNormals(normals),
		WithTangents(tangents),
	)
}
