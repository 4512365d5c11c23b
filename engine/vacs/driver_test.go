package vacs

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/effect"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T, b compute.Backend, options ...DriverBuilderOption) Driver {
	t.Helper()
	d, err := NewDriver(b, options...)
	require.NoError(t, err)
	t.Cleanup(d.Destroy)
	return d
}

func TestNewDriverRequiresBackend(t *testing.T) {
	_, err := NewDriver(nil)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestNewDriverFailsOnBadKernel(t *testing.T) {
	b := newFaultyBackend()
	defer b.Release()
	b.failKernel = effect.ReconstructionSource().Key

	_, err := NewDriver(b, WithLabel("broken"))
	require.ErrorIs(t, err, compute.ErrKernelInvalid)
	assert.Contains(t, err.Error(), "broken")
	require.Len(t, b.loaded, len(effect.Stages))
	for _, k := range b.loaded {
		assert.ErrorIs(t, k.SetInt(effect.BindingTriangleCount, 1), compute.ErrReleased)
	}
}

func TestDriverIdentityScenario(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(4))
	defer b.Release()
	g := randomGeometry(t, 100)
	target := &recordingTarget{}
	d := newTestDriver(t, b, WithGeometry(g), WithTarget(target), WithTimeSource(LiveClock()))

	require.NoError(t, d.Activate())
	require.NoError(t, d.Update())

	m := d.Buffers()
	assert.Equal(t, g.Positions(), read(t, b, d.Output()))
	assert.Equal(t, g.Normals(), read(t, b, m.NormalOutput()))
	assert.Equal(t, g.Tangents(), read(t, b, m.TangentOutput()))
}

func TestUpdateWithoutGeometryIsIdle(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	target := &recordingTarget{}
	d := newTestDriver(t, b, WithTarget(target), WithParameters(Parameters{Inflate: 1}))

	require.NoError(t, d.Activate())
	for range 3 {
		require.NoError(t, d.Update())
	}
	stats := b.Stats()
	assert.Equal(t, 0, stats.BuffersCreated)
	assert.Equal(t, 0, stats.Dispatches)
	assert.Equal(t, 0, stats.Frames)
	assert.Equal(t, 0, d.Buffers().AllocatedCount())
	assert.Empty(t, target.overrides)
	assert.Nil(t, d.Output())
}

func TestUpdateWhileInactiveIsIdle(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	d := newTestDriver(t, b, WithGeometry(randomGeometry(t, 4)))

	require.NoError(t, d.Update())
	assert.Equal(t, StateInactive, d.State())
	assert.Equal(t, 0, b.Stats().BuffersCreated)
}

func TestDeactivateReleasesAndReactivateReallocates(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	g := randomGeometry(t, 10)
	d := newTestDriver(t, b, WithGeometry(g), fixedSeed(0.25))

	require.NoError(t, d.Activate())
	require.NoError(t, d.Update())
	first := d.Output()
	assert.Equal(t, 7, b.Stats().BuffersAlive())

	require.NoError(t, d.Update())
	assert.Equal(t, 7, b.Stats().BuffersCreated)
	assert.Same(t, first, d.Output())

	d.Deactivate()
	assert.Equal(t, StateInactive, d.State())
	assert.Equal(t, 0, b.Stats().BuffersAlive())
	assert.Equal(t, 0, d.Buffers().AllocatedCount())
	assert.True(t, first.Released())
	d.Deactivate()
	assert.Equal(t, 7, b.Stats().BuffersReleased)

	require.NoError(t, d.Activate())
	require.NoError(t, d.Update())
	assert.Equal(t, 14, b.Stats().BuffersCreated)
	assert.NotSame(t, first, d.Output())
	assert.Equal(t, 30, d.Output().Len())
	assert.Equal(t, float32(0.25), d.Seed())
}

func TestSeedAssignedOnce(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	calls := 0
	d := newTestDriver(t, b, WithSeedSource(func() float32 {
		calls++
		return 0.5 + float32(calls)/10
	}))

	assert.Equal(t, float32(0), d.Seed())
	require.NoError(t, d.Activate())
	seed := d.Seed()
	require.NoError(t, d.Activate())
	d.Deactivate()
	require.NoError(t, d.Activate())

	assert.Equal(t, 1, calls)
	assert.Equal(t, seed, d.Seed())
}

func TestDefaultSeedRange(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	d := newTestDriver(t, b)

	require.NoError(t, d.Activate())
	assert.GreaterOrEqual(t, d.Seed(), float32(0))
	assert.Less(t, d.Seed(), float32(1))
}

func TestDestroy(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	d, err := NewDriver(b, WithGeometry(randomGeometry(t, 3)))
	require.NoError(t, err)

	require.NoError(t, d.Activate())
	require.NoError(t, d.Update())
	d.Destroy()
	d.Destroy()

	assert.Equal(t, StateDestroyed, d.State())
	assert.Equal(t, 0, b.Stats().BuffersAlive())
	assert.ErrorIs(t, d.Activate(), ErrDestroyed)
	assert.ErrorIs(t, d.Update(), ErrDestroyed)
	assert.ErrorIs(t, d.SetGeometry(nil), ErrDestroyed)
	d.Deactivate()
	assert.Equal(t, StateDestroyed, d.State())
}

func TestTwoDriversShareGeometry(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(2))
	defer b.Release()
	g := randomGeometry(t, 50)
	first := newTestDriver(t, b, WithLabel("first"), WithGeometry(g), fixedSeed(0.3))
	second := newTestDriver(t, b, WithLabel("second"), WithGeometry(g), fixedSeed(0.3))

	require.NoError(t, first.Activate())
	require.NoError(t, second.Activate())
	first.SetInflate(1)
	first.SetJitter(0.5)

	require.NoError(t, first.Update())
	require.NoError(t, second.Update())

	seen := make(map[compute.Buffer]bool)
	for _, buf := range append(allBuffers(first.Buffers()), allBuffers(second.Buffers())...) {
		assert.False(t, seen[buf], "buffer %s shared between drivers", buf.Label())
		seen[buf] = true
	}
	assert.NotEqual(t, g.Positions(), read(t, b, first.Output()))
	assert.Equal(t, g.Positions(), read(t, b, second.Output()))
	assert.Equal(t, Parameters{}, second.Parameters())
}

func TestTargetMeshAndOverrides(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	g := randomGeometry(t, 6)
	target := &recordingTarget{}
	d := newTestDriver(t, b, WithGeometry(g), WithTarget(target))

	require.NoError(t, d.Activate())
	require.NoError(t, d.Update())
	require.NoError(t, d.Update())

	assert.Equal(t, g.TemplateMesh(), target.mesh)
	assert.Equal(t, 1, target.meshSets)
	require.Len(t, target.overrides, 2)
	assert.Same(t, target.overrides[0], target.overrides[1])

	set := d.BindingSet()
	require.NotNil(t, set)
	m := d.Buffers()
	assert.Same(t, m.PositionSource(), set.Buffer(OverrideOriginalPositionBuffer))
	assert.Same(t, m.NormalSource(), set.Buffer(OverrideOriginalNormalBuffer))
	assert.Same(t, d.Output(), set.Buffer(OverridePositionBuffer))
	assert.Same(t, m.NormalOutput(), set.Buffer(OverrideNormalBuffer))
	assert.Same(t, m.TangentOutput(), set.Buffer(OverrideTangentBuffer))
	count, ok := set.Float(OverrideTriangleCount)
	require.True(t, ok)
	assert.Equal(t, float32(6), count)

	other := randomGeometry(t, 8)
	require.NoError(t, d.SetGeometry(other))
	require.NoError(t, d.Update())
	assert.Equal(t, other.TemplateMesh(), target.mesh)
	assert.Equal(t, 2, target.meshSets)
	assert.Equal(t, 24, set.Buffer(OverridePositionBuffer).Len())
	assert.Same(t, set, d.BindingSet())
}

func TestSetGeometryWhileActive(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	d := newTestDriver(t, b, WithGeometry(randomGeometry(t, 2)))

	require.NoError(t, d.Activate())
	require.NoError(t, d.Update())
	require.NoError(t, d.SetGeometry(nil))
	assert.Equal(t, 0, b.Stats().BuffersAlive())

	dispatches := b.Stats().Dispatches
	require.NoError(t, d.Update())
	assert.Equal(t, dispatches, b.Stats().Dispatches)
	assert.Nil(t, d.Geometry())
}

func TestUpdateAllocationFailure(t *testing.T) {
	b := newFaultyBackend()
	defer b.Release()
	b.buffersLeft = 5
	d := newTestDriver(t, b, WithGeometry(randomGeometry(t, 3)))

	require.NoError(t, d.Activate())
	err := d.Update()
	require.ErrorIs(t, err, compute.ErrBufferAllocation)
	assert.Equal(t, 0, b.Stats().Frames)

	// The failed frame deactivated the driver and released what it had allocated.
	assert.Equal(t, StateInactive, d.State())
	assert.ErrorIs(t, d.Err(), compute.ErrBufferAllocation)
	assert.Equal(t, 0, b.Stats().BuffersAlive())

	// No retry until the driver is activated again.
	require.NoError(t, d.Update())
	assert.Equal(t, 0, b.Stats().BuffersAlive())

	require.NoError(t, d.Activate())
	assert.NoError(t, d.Err())
	assert.ErrorIs(t, d.Update(), compute.ErrBufferAllocation)
	assert.Equal(t, StateInactive, d.State())
}

func TestParameters(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	d := newTestDriver(t, b, WithParameters(Parameters{Dissolve: 2, Inflate: -1, Voxelize: 0.5}))

	assert.Equal(t, Parameters{Dissolve: 1, Inflate: 0, Voxelize: 0.5}, d.Parameters())

	d.SetDissolve(0.1)
	d.SetInflate(0.2)
	d.SetVoxelize(0.3)
	d.SetJitter(1.5)
	d.SetDigitize(-3)
	assert.Equal(t, Parameters{Dissolve: 0.1, Inflate: 0.2, Voxelize: 0.3, Jitter: 1, Digitize: 0}, d.Parameters())

	d.SetParameters(Parameters{Digitize: 0.9})
	assert.Equal(t, Parameters{Digitize: 0.9}, d.Parameters())
	for _, s := range effect.Stages {
		want := float32(0)
		if s == effect.StageDigitize {
			want = 0.9
		}
		assert.Equal(t, want, d.Parameters().Amplitude(s), s.String())
	}
}

func TestTimeSourceDrivesJitter(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	g := randomGeometry(t, 20)
	clock := float32(10)
	d := newTestDriver(t, b,
		WithGeometry(g),
		WithParameters(Parameters{Jitter: 1}),
		WithTimeSource(TimeSourceFunc(func() float32 { return clock })),
		fixedSeed(0.6),
	)
	require.NoError(t, d.Activate())

	require.NoError(t, d.Update())
	first := read(t, b, d.Output())
	require.NoError(t, d.Update())
	assert.Equal(t, first, read(t, b, d.Output()))

	clock = 20
	require.NoError(t, d.Update())
	assert.NotEqual(t, first, read(t, b, d.Output()))

	d.SetTimeSource(nil)
	require.NoError(t, d.Update())
	assert.Equal(t, first, read(t, b, d.Output()))
}

func TestConcurrentParameterUpdates(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(2))
	defer b.Release()
	d := newTestDriver(t, b, WithGeometry(randomGeometry(t, 30)))
	require.NoError(t, d.Activate())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 50 {
			d.SetAmplitude(effect.Stages[i%len(effect.Stages)], float32(i%10)/10)
		}
	}()
	for range 20 {
		require.NoError(t, d.Update())
	}
	wg.Wait()
	assert.Equal(t, 7, b.Stats().BuffersAlive())
}

func TestTimeSources(t *testing.T) {
	assert.Equal(t, PreviewTime, FixedTime(PreviewTime).Now())
	assert.Equal(t, float32(10), PreviewTime)

	live := LiveClock()
	a := live.Now()
	bb := live.Now()
	assert.GreaterOrEqual(t, a, float32(0))
	assert.GreaterOrEqual(t, bb, a)

	assert.Equal(t, float32(7), TimeSourceFunc(func() float32 { return 7 }).Now())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "inactive", StateInactive.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "destroyed", StateDestroyed.String())
	assert.Equal(t, "unknown", State(9).String())
}

var _ DrawTarget = &recordingTarget{}

func TestBindingSetRevision(t *testing.T) {
	s := NewBindingSet()
	assert.Equal(t, uint64(0), s.Revision())

	s.SetFloat("a", 1)
	s.SetFloat("a", 1)
	assert.Equal(t, uint64(1), s.Revision())

	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	buf, err := b.CreateBuffer("x", nil)
	require.NoError(t, err)
	s.SetBuffer("z", buf)
	s.SetBuffer("y", buf)
	s.SetBuffer("y", buf)
	assert.Equal(t, uint64(3), s.Revision())
	assert.Equal(t, []string{"y", "z"}, s.BufferNames())

	s.Clear()
	assert.Equal(t, uint64(4), s.Revision())
	assert.Nil(t, s.Buffer("y"))
	_, ok := s.Float("a")
	assert.False(t, ok)
	s.Clear()
	assert.Equal(t, uint64(4), s.Revision())
}

func TestRenderBinderCreatesSetOnce(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	m := NewBufferManager("binder", b, randomGeometry(t, 2))
	require.NoError(t, m.EnsureBuffers())

	binder := NewRenderBinder()
	assert.Nil(t, binder.BindingSet())
	target := &recordingTarget{}
	binder.Bind(target, m, m.PositionWorkA())
	set := binder.BindingSet()
	binder.Bind(target, m, m.PositionWorkA())

	assert.Same(t, set, binder.BindingSet())
	assert.Len(t, set.BufferNames(), 5)
	revision := set.Revision()
	binder.Bind(target, m, m.PositionWorkA())
	assert.Equal(t, revision, set.Revision())

	binder.Release()
	assert.Empty(t, set.BufferNames())
	assert.Equal(t, geometry.Mesh{}, target.mesh)
}
