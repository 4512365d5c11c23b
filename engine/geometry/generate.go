package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

// generateNormals computes smooth vertex normals from the triangle geometry. Each face normal is
// the cross product of two edges, so its length is proportional to the triangle's area, and is
// accumulated onto every vertex of the triangle before normalizing. Vertices that only touch
// degenerate triangles get +Y.
//
// Parameters:
//   - positions: the vertex positions
//   - indices: the triangle index buffer (a multiple of 3)
//
// Returns:
//   - []mgl32.Vec3: one unit normal per vertex
func generateNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	accum := make([]mgl32.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := positions[i0], positions[i1], positions[i2]
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, idx := range [3]uint32{i0, i1, i2} {
			accum[idx] = accum[idx].Add(face)
		}
	}

	for i, n := range accum {
		if n.Len() < 1e-12 {
			accum[i] = mgl32.Vec3{0, 1, 0}
			continue
		}
		accum[i] = n.Normalize()
	}
	return accum
}

// generateTangents computes per-vertex tangents. With texture coordinates it uses the UV
// gradient of each triangle, accumulated per vertex and orthonormalized against the normal,
// with the handedness in w. Without them, or where the gradient is degenerate, the tangent is
// an arbitrary unit vector orthogonal to the normal with w = 1.
//
// Parameters:
//   - positions: the vertex positions
//   - normals: unit vertex normals
//   - texCoords: optional texture coordinates, nil if absent
//   - indices: the triangle index buffer (a multiple of 3)
//
// Returns:
//   - []mgl32.Vec4: one tangent per vertex
func generateTangents(positions, normals []mgl32.Vec3, texCoords []mgl32.Vec2, indices []uint32) []mgl32.Vec4 {
	n := len(positions)
	tan := make([]mgl32.Vec3, n)
	btan := make([]mgl32.Vec3, n)

	if texCoords != nil {
		for i := 0; i+2 < len(indices); i += 3 {
			i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
			edge1 := positions[i1].Sub(positions[i0])
			edge2 := positions[i2].Sub(positions[i0])
			duv1 := texCoords[i1].Sub(texCoords[i0])
			duv2 := texCoords[i2].Sub(texCoords[i0])

			det := duv1[0]*duv2[1] - duv1[1]*duv2[0]
			if det == 0 {
				continue
			}
			invDet := 1 / det
			t := edge1.Mul(duv2[1]).Sub(edge2.Mul(duv1[1])).Mul(invDet)
			b := edge2.Mul(duv1[0]).Sub(edge1.Mul(duv2[0])).Mul(invDet)
			for _, idx := range [3]uint32{i0, i1, i2} {
				tan[idx] = tan[idx].Add(t)
				btan[idx] = btan[idx].Add(b)
			}
		}
	}

	out := make([]mgl32.Vec4, n)
	for i := range n {
		normal := normals[i]
		// Gram-Schmidt: T' = normalize(T - N * dot(N, T))
		ortho := tan[i].Sub(normal.Mul(normal.Dot(tan[i])))
		if ortho.Len() < 1e-6 {
			out[i] = orthogonal(normal).Vec4(1)
			continue
		}
		ortho = ortho.Normalize()
		w := float32(1)
		if normal.Cross(ortho).Dot(btan[i]) < 0 {
			w = -1
		}
		out[i] = ortho.Vec4(w)
	}
	return out
}

// orthogonal returns a unit vector orthogonal to n, built against the world axis least aligned with n.
func orthogonal(n mgl32.Vec3) mgl32.Vec3 {
	if n.Len() < 1e-12 {
		return mgl32.Vec3{1, 0, 0}
	}
	var axis mgl32.Vec3
	ax, ay, az := abs(n[0]), abs(n[1]), abs(n[2])
	switch {
	case ax <= ay && ax <= az:
		axis = mgl32.Vec3{1, 0, 0}
	case ay <= az:
		axis = mgl32.Vec3{0, 1, 0}
	default:
		axis = mgl32.Vec3{0, 0, 1}
	}
	return axis.Cross(n).Normalize()
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
