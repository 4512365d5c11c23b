package vacs

import (
	"testing"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/effect"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runChain encodes the chain and reconstruction in one frame and returns the buffers.
func runChain(t *testing.T, b compute.Backend, g geometry.Geometry, in FrameInputs) BufferManager {
	t.Helper()
	chain, err := NewStageChain(b)
	require.NoError(t, err)
	t.Cleanup(chain.Release)
	rec, err := NewReconstruction(b)
	require.NoError(t, err)
	t.Cleanup(rec.Release)

	m := NewBufferManager("chain", b, g)
	require.NoError(t, m.EnsureBuffers())
	require.NoError(t, b.BeginComputeFrame())
	require.NoError(t, chain.Encode(b, m, in))
	require.NoError(t, rec.Encode(b, m, chain.Output(m)))
	require.NoError(t, b.EndComputeFrame())
	return m
}

// runIsolated dispatches a single stage reading the source positions.
func runIsolated(t *testing.T, b compute.Backend, g geometry.Geometry, s effect.Stage, in FrameInputs) []compute.Element {
	t.Helper()
	k, err := b.LoadKernel(s.Source())
	require.NoError(t, err)
	defer k.Release()

	m := NewBufferManager("isolated", b, g)
	require.NoError(t, m.EnsureBuffers())
	defer m.ReleaseBuffers()

	require.NoError(t, k.SetBuffer(effect.BindingPositionSource, m.PositionSource()))
	require.NoError(t, k.SetBuffer(effect.BindingNormalSource, m.NormalSource()))
	require.NoError(t, k.SetBuffer(effect.BindingTangentSource, m.TangentSource()))
	require.NoError(t, k.SetBuffer(effect.BindingPositionInput, m.PositionSource()))
	require.NoError(t, k.SetBuffer(effect.BindingPositionOutput, m.PositionWorkB()))
	require.NoError(t, k.SetInt(effect.BindingTriangleCount, g.TriangleCount()))
	require.NoError(t, k.SetFloat(effect.BindingAmplitude, in.Parameters.Amplitude(s)))
	require.NoError(t, k.SetFloat(effect.BindingRandomSeed, in.Seed))
	require.NoError(t, k.SetFloat(effect.BindingTime, in.Time))

	groups := compute.WorkgroupCount(g.TriangleCount(), k.WorkgroupSize()[0], s.TrianglesPerThread())
	require.NoError(t, b.BeginComputeFrame())
	require.NoError(t, b.DispatchCompute(k, [3]uint32{groups, 1, 1}))
	require.NoError(t, b.EndComputeFrame())
	return read(t, b, m.PositionWorkB())
}

func TestStageRoles(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	m := NewBufferManager("roles", b, randomGeometry(t, 1))
	require.NoError(t, m.EnsureBuffers())

	src, a, bb := m.PositionSource(), m.PositionWorkA(), m.PositionWorkB()
	want := [][2]compute.Buffer{{src, a}, {a, bb}, {bb, a}, {a, bb}, {bb, a}}
	for i := range effect.Stages {
		in, out := roles(m, i)
		assert.Same(t, want[i][0], in, "stage %d input", i)
		assert.Same(t, want[i][1], out, "stage %d output", i)
		assert.NotSame(t, in, out)
	}

	chain := &stageChain{}
	assert.Same(t, a, chain.Output(m))
}

func TestChainIsIdentityAtZeroAmplitude(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(3))
	defer b.Release()
	g := randomGeometry(t, 100)

	m := runChain(t, b, g, FrameInputs{Seed: 0.42, Time: 3})
	assert.Equal(t, g.Positions(), read(t, b, m.PositionWorkA()))
	assert.Equal(t, g.Normals(), read(t, b, m.NormalOutput()))
	assert.Equal(t, g.Tangents(), read(t, b, m.TangentOutput()))
	assert.Equal(t, g.Positions(), read(t, b, m.PositionSource()))
}

func TestSingleStageMatchesIsolatedOutput(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(2))
	defer b.Release()
	g := randomGeometry(t, 77)

	for _, s := range effect.Stages {
		in := FrameInputs{
			Parameters: Parameters{}.WithAmplitude(s, 0.8),
			Seed:       0.13,
			Time:       4.5,
		}
		want := runIsolated(t, b, g, s, in)
		m := runChain(t, b, g, in)
		got := read(t, b, m.PositionWorkA())
		assert.Equal(t, want, got, s.String())
		assert.NotEqual(t, g.Positions(), got, "%s had no effect", s)
	}
}

func TestChainDispatchesInOneFrame(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	runChain(t, b, randomGeometry(t, 200), FrameInputs{Parameters: Parameters{Jitter: 1}})
	stats := b.Stats()
	assert.Equal(t, 1, stats.Frames)
	assert.Equal(t, 6, stats.Dispatches)
}

func TestChainWithNoTriangles(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	m := runChain(t, b, randomGeometry(t, 0), FrameInputs{Parameters: Parameters{Inflate: 1}})
	assert.Equal(t, 0, b.Stats().Dispatches)
	assert.Empty(t, read(t, b, m.PositionWorkA()))
}

func TestNewStageChainReleasesOnFailure(t *testing.T) {
	b := newFaultyBackend()
	defer b.Release()
	b.failKernel = effect.StageJitter.KernelKey()

	_, err := NewStageChain(b)
	require.ErrorIs(t, err, compute.ErrKernelInvalid)
	require.Len(t, b.loaded, 3)
	for _, k := range b.loaded {
		assert.ErrorIs(t, k.SetFloat(effect.BindingAmplitude, 1), compute.ErrReleased)
	}
}

func TestStageChainKernel(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	chain, err := NewStageChain(b)
	require.NoError(t, err)
	defer chain.Release()

	for _, s := range effect.Stages {
		require.NotNil(t, chain.Kernel(s))
		assert.Equal(t, s.KernelKey(), chain.Kernel(s).Key())
	}
	assert.Nil(t, chain.Kernel(effect.Stage(99)))
}
