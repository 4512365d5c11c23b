package compute

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stagingCounter struct {
	created   []uint64
	destroyed []*wgpu.Buffer
	err       error
}

func (c *stagingCounter) create(size uint64) (*wgpu.Buffer, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, size)
	return new(wgpu.Buffer), nil
}

func (c *stagingCounter) destroy(buf *wgpu.Buffer) {
	c.destroyed = append(c.destroyed, buf)
}

func TestUniformStagingGivesEachDispatchItsOwnBuffer(t *testing.T) {
	c := &stagingCounter{}
	s := newUniformStaging(c.create, c.destroy)

	// Two dispatches of the same kernel in one frame.
	first, err := s.acquire(32)
	require.NoError(t, err)
	second, err := s.acquire(32)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, s.inUse())

	s.recycle()
	assert.Zero(t, s.inUse())

	again, err := s.acquire(32)
	require.NoError(t, err)
	assert.True(t, again == first || again == second)
	other, err := s.acquire(64)
	require.NoError(t, err)
	assert.NotSame(t, again, other)
	assert.Equal(t, []uint64{32, 32, 64}, c.created)

	s.release()
	assert.Len(t, c.destroyed, 3)
	assert.Zero(t, s.inUse())
}

func TestUniformStagingCreateError(t *testing.T) {
	c := &stagingCounter{err: errors.New("out of memory")}
	s := newUniformStaging(c.create, c.destroy)

	_, err := s.acquire(16)
	assert.ErrorIs(t, err, c.err)
	assert.Zero(t, s.inUse())
}

func TestSoftwareBackendRepeatedDispatchKeepsOwnParams(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(1))
	defer b.Release()
	k := loadScale(t, b)

	in, _ := b.CreateBuffer("in", ramp(4))
	mid, _ := b.CreateBuffer("mid", make([]Element, 4))
	out, _ := b.CreateBuffer("out", make([]Element, 4))

	require.NoError(t, b.BeginComputeFrame())
	dispatchScale(t, b, k, in, mid, 2)
	dispatchScale(t, b, k, mid, out, 10)
	require.NoError(t, b.EndComputeFrame())

	got, _ := b.ReadBuffer(out)
	assert.Equal(t, float32(60), got[3][0])
	first, _ := b.ReadBuffer(mid)
	assert.Equal(t, float32(6), first[3][0])
}
