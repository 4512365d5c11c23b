package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, float32(0), Clamp01(-0.5))
	assert.Equal(t, float32(0.25), Clamp01(0.25))
	assert.Equal(t, float32(1), Clamp01(3))
	assert.Equal(t, float32(0), Clamp01(float32(math.NaN())))
}

func TestDivCeil(t *testing.T) {
	assert.Equal(t, 0, DivCeil(0, 64))
	assert.Equal(t, 1, DivCeil(1, 64))
	assert.Equal(t, 1, DivCeil(64, 64))
	assert.Equal(t, 2, DivCeil(65, 64))
	assert.Equal(t, uint32(0), DivCeil[uint32](10, 0))
}

func TestBytesRoundTrip(t *testing.T) {
	in := [][4]float32{{1, 2, 3, 0}, {4, 5, 6, 1}}
	raw := SliceToBytes(in)
	assert.Len(t, raw, 32)

	out := BytesToSlice[[4]float32](raw)
	assert.Equal(t, in, out)

	assert.Empty(t, BytesToSlice[[4]float32](raw[:7]))
	assert.Nil(t, SliceToBytes([]float32{}))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}
