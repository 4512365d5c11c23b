package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func project(c Camera, p mgl32.Vec3) mgl32.Vec3 {
	clip := c.ViewProjectionMatrix().Mul4x1(p.Vec4(1))
	return clip.Vec3().Mul(1 / clip[3])
}

func TestNewCameraLooksAtTarget(t *testing.T) {
	target := mgl32.Vec3{1, 2, 3}
	c := NewCamera(WithTarget(target), WithRadius(4))

	assert.InDelta(t, 4, c.Position().Sub(target).Len(), 1e-5)
	center := project(c, target)
	assert.InDelta(t, 0, center[0], 1e-5)
	assert.InDelta(t, 0, center[1], 1e-5)
	assert.Greater(t, center[2], float32(0))
	assert.Less(t, center[2], float32(1))
}

func TestDepthRangeIsZeroToOne(t *testing.T) {
	c := NewCamera(WithClipPlanes(1, 10), WithRadius(5))
	eye := c.Position()
	forward := c.Target().Sub(eye).Normalize()

	assert.InDelta(t, 0, project(c, eye.Add(forward.Mul(1)))[2], 1e-4)
	assert.InDelta(t, 1, project(c, eye.Add(forward.Mul(10)))[2], 1e-4)
}

func TestOrbitClampsElevation(t *testing.T) {
	c := NewCamera()
	c.Orbit(0, 1e6)
	p := c.Position()
	assert.Less(t, p[1], c.Radius())
	assert.False(t, math.IsNaN(float64(c.ViewMatrix()[0])))

	c.Orbit(0, -2e6)
	assert.Greater(t, c.Position()[1], -c.Radius())
}

func TestZoomAndRadiusBounds(t *testing.T) {
	c := NewCamera(WithRadius(2), WithRadiusBounds(1, 3), WithZoomSpeed(0.5))
	c.Zoom(1)
	assert.InDelta(t, 1, c.Radius(), 1e-6)
	c.Zoom(-10)
	assert.InDelta(t, 3, c.Radius(), 1e-6)
	c.SetRadius(0)
	assert.InDelta(t, 1, c.Radius(), 1e-6)
}

func TestSetAspectIgnoresInvalid(t *testing.T) {
	c := NewCamera(WithAspect(2))
	c.SetAspect(0)
	c.SetAspect(-1)
	assert.Equal(t, float32(2), c.Aspect())
	c.SetAspect(1.5)
	assert.Equal(t, float32(1.5), c.Aspect())
}

func TestUniformMarshal(t *testing.T) {
	c := NewCamera()
	u := c.Uniform()
	data := u.Marshal()
	assert.Len(t, data, 80)
	assert.Equal(t, u.ViewProj[5], math.Float32frombits(binary.LittleEndian.Uint32(data[20:])))
	assert.Equal(t, u.CameraPosition[1], math.Float32frombits(binary.LittleEndian.Uint32(data[68:])))
	assert.Contains(t, GPUCameraUniformSource, "CameraUniform")
}
