package vacs

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// faultyBackend wraps a backend and fails buffer creation or kernel loading on demand.
type faultyBackend struct {
	compute.Backend

	// buffersLeft is the number of buffers that may still be created; negative means unlimited.
	buffersLeft int
	failKernel  string
	loaded      []compute.Kernel
}

func newFaultyBackend() *faultyBackend {
	return &faultyBackend{
		Backend:     compute.NewSoftwareBackend(compute.WithWorkers(1)),
		buffersLeft: -1,
	}
}

func (f *faultyBackend) CreateBuffer(label string, data []compute.Element) (compute.Buffer, error) {
	if f.buffersLeft == 0 {
		return nil, fmt.Errorf("buffer %s: %w", label, compute.ErrBufferAllocation)
	}
	if f.buffersLeft > 0 {
		f.buffersLeft--
	}
	return f.Backend.CreateBuffer(label, data)
}

func (f *faultyBackend) LoadKernel(src compute.KernelSource) (compute.Kernel, error) {
	if src.Key == f.failKernel {
		return nil, fmt.Errorf("%w: %s", compute.ErrKernelInvalid, src.Key)
	}
	k, err := f.Backend.LoadKernel(src)
	if err == nil {
		f.loaded = append(f.loaded, k)
	}
	return k, err
}

// recordingTarget is a DrawTarget that counts what the driver does to it.
type recordingTarget struct {
	mesh      geometry.Mesh
	meshSets  int
	overrides []BindingSet
}

func (r *recordingTarget) Mesh() geometry.Mesh {
	return r.mesh
}

func (r *recordingTarget) SetMesh(m geometry.Mesh) {
	r.mesh = m
	r.meshSets++
}

func (r *recordingTarget) SetOverrides(set BindingSet) {
	r.overrides = append(r.overrides, set)
}

// randomGeometry returns a geometry of n triangles with deterministic random corners.
func randomGeometry(t *testing.T, n int) geometry.Geometry {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(n) + 1))
	corners := make([]mgl32.Vec3, 3*n)
	for i := range corners {
		corners[i] = mgl32.Vec3{rng.Float32()*4 - 2, rng.Float32()*4 - 2, rng.Float32()*4 - 2}
	}
	g, err := geometry.NewGeometry(geometry.WithLabel(fmt.Sprintf("random%d", n)), geometry.WithTriangles(corners))
	require.NoError(t, err)
	return g
}

func read(t *testing.T, b compute.Backend, buf compute.Buffer) []compute.Element {
	t.Helper()
	require.NotNil(t, buf)
	data, err := b.ReadBuffer(buf)
	require.NoError(t, err)
	return data
}

func fixedSeed(v float32) DriverBuilderOption {
	return WithSeedSource(func() float32 { return v })
}
