package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func TestTickLogsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second))

	for range 9 {
		clock.t = clock.t.Add(100 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	clock.t = clock.t.Add(100 * time.Millisecond)
	require.True(t, p.Tick())
	assert.InDelta(t, 10, p.Last().FPS, 1e-9)
	assert.Positive(t, p.Last().SysMB)

	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.False(t, p.Tick())
}

func TestTickReportsBackendActivity(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()
	_, err := b.CreateBuffer("a", make([]compute.Element, 4))
	require.NoError(t, err)

	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second), WithBackend(b))

	for range 4 {
		require.NoError(t, b.BeginComputeFrame())
		require.NoError(t, b.EndComputeFrame())
	}
	clock.t = clock.t.Add(2 * time.Second)
	require.True(t, p.Tick())

	r := p.Last()
	assert.InDelta(t, 2, r.ComputeFramesPerSecond, 1e-9)
	assert.Zero(t, r.DispatchesPerSecond)
	assert.Equal(t, 1, r.BuffersAlive)
}
