package vacs

import (
	"testing"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allBuffers(m BufferManager) []compute.Buffer {
	return []compute.Buffer{
		m.PositionSource(), m.PositionWorkA(), m.PositionWorkB(),
		m.NormalSource(), m.NormalOutput(),
		m.TangentSource(), m.TangentOutput(),
	}
}

func TestBufferSlot(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	var s bufferSlot
	calls := 0
	create := func() (compute.Buffer, error) {
		calls++
		return b.CreateBuffer("slot", make([]compute.Element, 3))
	}

	assert.Nil(t, s.get())
	assert.False(t, s.release())

	ok, err := s.allocate(create)
	require.NoError(t, err)
	assert.True(t, ok)
	buf := s.get()
	require.NotNil(t, buf)

	ok, err = s.allocate(create)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
	assert.Same(t, buf, s.get())

	assert.True(t, s.release())
	assert.True(t, buf.Released())
	assert.False(t, s.release())
	assert.Nil(t, s.get())
}

func TestBufferSizesMatchTriangleCount(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100} {
		b := compute.NewSoftwareBackend(compute.WithWorkers(1))
		m := NewBufferManager("test", b, randomGeometry(t, n))

		require.NoError(t, m.EnsureBuffers())
		assert.True(t, m.Allocated())
		for _, buf := range allBuffers(m) {
			require.NotNil(t, buf)
			assert.Equal(t, 3*n, buf.Len(), "%s with %d triangles", buf.Label(), n)
		}
		m.ReleaseBuffers()
		b.Release()
	}
}

func TestBufferContents(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	g := randomGeometry(t, 12)
	m := NewBufferManager("test", b, g)
	require.NoError(t, m.EnsureBuffers())

	assert.Equal(t, g.Positions(), read(t, b, m.PositionSource()))
	assert.Equal(t, g.Normals(), read(t, b, m.NormalSource()))
	assert.Equal(t, g.Tangents(), read(t, b, m.TangentSource()))
	assert.Equal(t, "test.position.source", m.PositionSource().Label())

	seen := make(map[compute.Buffer]bool)
	for _, buf := range allBuffers(m) {
		assert.False(t, seen[buf], "buffer %s shared between slots", buf.Label())
		seen[buf] = true
	}
}

func TestEnsureAndReleaseAreIdempotent(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	m := NewBufferManager("test", b, randomGeometry(t, 5))

	require.NoError(t, m.EnsureBuffers())
	first := allBuffers(m)
	assert.Equal(t, 7, b.Stats().BuffersCreated)

	require.NoError(t, m.EnsureBuffers())
	assert.Equal(t, 7, b.Stats().BuffersCreated)
	assert.Equal(t, first, allBuffers(m))

	m.ReleaseBuffers()
	assert.Equal(t, 0, m.AllocatedCount())
	assert.Equal(t, 0, b.Stats().BuffersAlive())
	for _, buf := range first {
		assert.True(t, buf.Released())
	}

	m.ReleaseBuffers()
	assert.Equal(t, 7, b.Stats().BuffersReleased)
	for _, buf := range allBuffers(m) {
		assert.Nil(t, buf)
	}
}

func TestReleaseWithNothingAllocated(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	m := NewBufferManager("test", b, nil)

	m.ReleaseBuffers()
	assert.Equal(t, 0, b.Stats().BuffersReleased)
	assert.ErrorIs(t, m.EnsureBuffers(), ErrNoGeometry)
	assert.Equal(t, 0, b.Stats().BuffersCreated)
}

func TestEnsureBuffersAllocationFailure(t *testing.T) {
	b := newFaultyBackend()
	defer b.Release()
	b.buffersLeft = 3
	m := NewBufferManager("test", b, randomGeometry(t, 4))

	err := m.EnsureBuffers()
	require.ErrorIs(t, err, compute.ErrBufferAllocation)
	assert.Equal(t, 3, m.AllocatedCount())
	assert.False(t, m.Allocated())

	m.ReleaseBuffers()
	assert.Equal(t, 0, b.Stats().BuffersAlive())

	b.buffersLeft = -1
	require.NoError(t, m.EnsureBuffers())
	assert.True(t, m.Allocated())
}

func TestSetGeometryReleasesBuffers(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	small, large := randomGeometry(t, 2), randomGeometry(t, 9)
	m := NewBufferManager("test", b, small)
	require.NoError(t, m.EnsureBuffers())

	m.SetGeometry(small)
	assert.True(t, m.Allocated())

	m.SetGeometry(large)
	assert.Equal(t, 0, m.AllocatedCount())
	require.NoError(t, m.EnsureBuffers())
	assert.Equal(t, 27, m.PositionWorkB().Len())
	assert.Equal(t, 7, b.Stats().BuffersAlive())
}
