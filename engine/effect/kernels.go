package effect

import (
	"math"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/go-gl/mathgl/mgl32"
)

// The functions in this file are the CPU forms of the WGSL kernels in assets/. Each mirrors its
// shader statement for statement so both backends produce the same deformation.

// hash32 is the PCG hash used by vacs_hash.
func hash32(x uint32) uint32 {
	s := x*747796405 + 2891336453
	w := ((s >> ((s >> 28) + 4)) ^ s) * 277803737
	return (w >> 22) ^ w
}

// rand01 matches vacs_rand: a uniform value in [0, 1) for a triangle, a salt and the seed.
func rand01(triangle, salt uint32, seed float32) float32 {
	h := hash32(triangle ^ hash32(salt^hash32(uint32(seed*16777216))))
	return float32(h>>8) / 16777216
}

func xyz(e compute.Element) mgl32.Vec3 {
	return mgl32.Vec3{e[0], e[1], e[2]}
}

func element(v mgl32.Vec3, w float32) compute.Element {
	return compute.Element{v[0], v[1], v[2], w}
}

func mix(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

func mixf(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

func clampf(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

func normalizeOr(v, fallback mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return fallback
	}
	return v.Mul(1 / l)
}

func snap(v mgl32.Vec3, step float32) mgl32.Vec3 {
	var out mgl32.Vec3
	for i := range 3 {
		out[i] = float32(math.Floor(float64(v[i]/step+0.5))) * step
	}
	return out
}

func orthogonal(n mgl32.Vec3) mgl32.Vec3 {
	ax, ay, az := abs(n[0]), abs(n[1]), abs(n[2])
	axis := mgl32.Vec3{0, 0, 1}
	if ax <= ay && ax <= az {
		axis = mgl32.Vec3{1, 0, 0}
	} else if ay <= az {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return axis.Cross(n).Normalize()
}

func abs(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

// stageInvocation is the state every effect stage reads for one triangle.
type stageInvocation struct {
	inv       compute.Invocation
	input     []compute.Element
	output    []compute.Element
	amplitude float32
	seed      float32
}

// beginTriangle bounds-checks triangle t and applies the shared zero amplitude copy. It reports
// whether the caller must still deform the triangle.
func beginTriangle(inv compute.Invocation, t uint32) (stageInvocation, bool) {
	if int(t) >= inv.Int(BindingTriangleCount) {
		return stageInvocation{}, false
	}
	s := stageInvocation{
		inv:       inv,
		input:     inv.Buffer(BindingPositionInput),
		output:    inv.Buffer(BindingPositionOutput),
		amplitude: inv.Float(BindingAmplitude),
		seed:      inv.Float(BindingRandomSeed),
	}
	if s.amplitude <= 0 {
		base := 3 * t
		copy(s.output[base:base+3], s.input[base:base+3])
		return s, false
	}
	return s, true
}

func (s stageInvocation) center(base uint32) mgl32.Vec3 {
	return xyz(s.input[base]).Add(xyz(s.input[base+1])).Add(xyz(s.input[base+2])).Mul(1.0 / 3.0)
}

func (s stageInvocation) faceNormal(base uint32) mgl32.Vec3 {
	normals := s.inv.Buffer(BindingNormalSource)
	n := xyz(normals[base]).Add(xyz(normals[base+1])).Add(xyz(normals[base+2]))
	return normalizeOr(n, mgl32.Vec3{0, 1, 0})
}

func dissolveKernel(inv compute.Invocation) {
	t := inv.GlobalID[0]
	s, ok := beginTriangle(inv, t)
	if !ok {
		return
	}
	base := 3 * t
	center := s.center(base)
	r := rand01(t, 1, s.seed)
	k := clampf(s.amplitude*2-r, 0, 1)
	drift := s.faceNormal(base).Mul(k * k * 0.25)
	for i := range uint32(3) {
		p := s.input[base+i]
		s.output[base+i] = element(mix(xyz(p), center, k).Add(drift), p[3])
	}
}

func inflateKernel(inv compute.Invocation) {
	t := inv.GlobalID[0]
	s, ok := beginTriangle(inv, t)
	if !ok {
		return
	}
	base := 3 * t
	normals := inv.Buffer(BindingNormalSource)
	push := s.amplitude * 0.25
	for i := range uint32(3) {
		p := s.input[base+i]
		s.output[base+i] = element(xyz(p).Add(xyz(normals[base+i]).Mul(push)), p[3])
	}
}

func voxelizeKernel(inv compute.Invocation) {
	t := inv.GlobalID[0]
	s, ok := beginTriangle(inv, t)
	if !ok {
		return
	}
	base := 3 * t
	center := s.center(base)
	cell := mixf(0.02, 0.5, s.amplitude)
	offset := snap(center, cell).Sub(center).Mul(s.amplitude)
	for i := range uint32(3) {
		p := s.input[base+i]
		s.output[base+i] = element(xyz(p).Add(offset), p[3])
	}
}

// jitterFrame is the jitter animation frame for a time value. Like the WGSL u32 conversion it
// saturates instead of wrapping.
func jitterFrame(time float32) uint32 {
	f := math.Floor(float64(max(time, 0) * 12))
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(f)
}

func jitterKernel(inv compute.Invocation) {
	t := inv.GlobalID[0]
	s, ok := beginTriangle(inv, t)
	if !ok {
		return
	}
	base := 3 * t
	frame := jitterFrame(inv.Float(BindingTime))
	r := mgl32.Vec3{
		rand01(t, frame*4, s.seed)*2 - 1,
		rand01(t, frame*4+1, s.seed)*2 - 1,
		rand01(t, frame*4+2, s.seed)*2 - 1,
	}

	n := s.faceNormal(base)
	tangent := inv.Buffer(BindingTangentSource)[base]
	tg := normalizeOr(xyz(tangent).Sub(n.Mul(n.Dot(xyz(tangent)))), orthogonal(n))
	bt := n.Cross(tg)
	if tangent[3] < 0 {
		bt = bt.Mul(-1)
	}
	offset := tg.Mul(r[0]).Add(bt.Mul(r[1])).Add(n.Mul(r[2])).Mul(s.amplitude * 0.05)
	for i := range uint32(3) {
		p := s.input[base+i]
		s.output[base+i] = element(xyz(p).Add(offset), p[3])
	}
}

func digitizeKernel(inv compute.Invocation) {
	for k := range uint32(2) {
		t := inv.GlobalID[0]*2 + k
		s, ok := beginTriangle(inv, t)
		if !ok {
			if int(t) >= inv.Int(BindingTriangleCount) {
				return
			}
			continue
		}
		base := 3 * t
		grid := mixf(0.01, 0.2, s.amplitude)
		for i := range uint32(3) {
			p := s.input[base+i]
			s.output[base+i] = element(mix(xyz(p), snap(xyz(p), grid), s.amplitude), p[3])
		}
	}
}

// rotate applies the shortest rotation taking unit vector n0 onto unit vector n1 to v.
func rotate(v, n0, n1 mgl32.Vec3) mgl32.Vec3 {
	c := n0.Dot(n1)
	if c < -0.999999 {
		axis := orthogonal(n0)
		return axis.Mul(2 * axis.Dot(v)).Sub(v)
	}
	k := n0.Cross(n1)
	return v.Mul(c).Add(k.Cross(v)).Add(k.Mul(k.Dot(v) / (1 + c)))
}

func reconstructKernel(inv compute.Invocation) {
	t := inv.GlobalID[0]
	if int(t) >= inv.Int(BindingTriangleCount) {
		return
	}
	base := 3 * t
	src := inv.Buffer(BindingPositionSource)
	mod := inv.Buffer(BindingPositionModified)
	normalsIn, normalsOut := inv.Buffer(BindingNormalInput), inv.Buffer(BindingNormalOutput)
	tangentsIn, tangentsOut := inv.Buffer(BindingTangentInput), inv.Buffer(BindingTangentOutput)

	s0, d0 := xyz(src[base]), xyz(mod[base])
	a := xyz(src[base+1]).Sub(s0).Cross(xyz(src[base+2]).Sub(s0))
	b := xyz(mod[base+1]).Sub(d0).Cross(xyz(mod[base+2]).Sub(d0))
	la, lb := a.Len(), b.Len()

	keep := la < 1e-12 || lb < 1e-12
	var n0, n1 mgl32.Vec3
	if !keep {
		n0, n1 = a.Mul(1/la), b.Mul(1/lb)
		keep = n0.Dot(n1) >= 0.999999
	}

	for i := range uint32(3) {
		n, tg := normalsIn[base+i], tangentsIn[base+i]
		if keep {
			normalsOut[base+i] = n
			tangentsOut[base+i] = tg
			continue
		}
		normalsOut[base+i] = element(rotate(xyz(n), n0, n1), n[3])
		tangentsOut[base+i] = element(rotate(xyz(tg), n0, n1), tg[3])
	}
}
