package bind_group_provider

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderStartsStale(t *testing.T) {
	p := NewBindGroupProvider("kernel")

	assert.Equal(t, "kernel", p.Label())
	assert.True(t, p.Stale())
	assert.Nil(t, p.BindGroup())
	assert.Empty(t, p.Entries())
}

func TestEntriesSortedAcrossOwnedAndBound(t *testing.T) {
	var params, input, output *wgpu.Buffer
	p := NewBindGroupProvider("kernel",
		WithBuffer(0, params),
		WithBoundBuffer(2, output),
		WithBoundBuffer(1, input),
	)

	entries := p.Entries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, uint64(wgpu.WholeSize), e.Size)
	}
	assert.Len(t, p.Buffers(), 1)
}

func TestBindBufferSameBufferIsNoOp(t *testing.T) {
	var buf *wgpu.Buffer
	p := NewBindGroupProvider("kernel")
	p.BindBuffer(1, buf)
	p.SetBindGroup(nil)
	assert.True(t, p.Stale(), "a nil bind group is always stale")

	bp := p.(*bindGroupProvider)
	bp.stale = false
	p.BindBuffer(1, buf)
	assert.False(t, bp.stale)

	p.BindBuffer(2, buf)
	assert.True(t, bp.stale)
}

func TestReleaseClearsEntries(t *testing.T) {
	p := NewBindGroupProvider("kernel", WithBuffer(0, nil), WithBoundBuffer(1, nil))
	p.Release()

	assert.Empty(t, p.Entries())
	assert.True(t, p.Stale())
	assert.Nil(t, p.BindGroupLayout())
}
