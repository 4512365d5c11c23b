package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/loader"
	"github.com/Carmen-Shannon/vacs-go/engine/vacs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[effects]
dissolve = 0.25
inflate = 3.0
jitter = -1.0

[time]
mode = "Fixed"
fixed = 4.5

[backend]
type = "software"
workers = 2

[log]
level = "DEBUG"
`

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, vacs.Parameters{}, c.Effects)
	assert.Equal(t, TimeModeLive, c.Time.Mode)
	assert.Equal(t, vacs.PreviewTime, c.Time.Fixed)
	assert.Equal(t, compute.BackendTypeWGPU, c.Backend.Type)

	v, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, c, v)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, vacs.Parameters{Dissolve: 0.25, Inflate: 1}, c.Effects)
	assert.Equal(t, TimeConfig{Mode: TimeModeFixed, Fixed: 4.5}, c.Time)
	assert.Equal(t, BackendConfig{Type: compute.BackendTypeSoftware, Workers: 2}, c.Backend)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestParseKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("[effects]\nvoxelize = 0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), c.Effects.Voxelize)
	assert.Equal(t, Default().Time, c.Time)
	assert.Equal(t, Default().Backend, c.Backend)
	assert.Equal(t, Default().Render, c.Render)
}

func TestParseRender(t *testing.T) {
	c, err := Parse([]byte("[render]\npresent_mode = \"Uncapped\"\nstyle = \"XRay\"\nclear_color = [0.2, 1.5, -1.0]\nmsaa = false\nclockwise = true\n"))
	require.NoError(t, err)
	assert.Equal(t, RenderConfig{
		PresentMode: "uncapped",
		Style:       "xray",
		ClearColor:  [3]float32{0.2, 1, 0},
		MSAA:        false,
		Clockwise:   true,
	}, c.Render)

	_, err = Parse([]byte("[render]\npresent_mode = \"mailbox\"\n"))
	assert.ErrorIs(t, err, ErrUnknownRenderOption)
	_, err = Parse([]byte("[render]\nstyle = \"wireframe\"\n"))
	assert.ErrorIs(t, err, ErrUnknownRenderOption)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("[time]\nmode = \"sometimes\"\n"))
	assert.ErrorIs(t, err, ErrUnknownTimeMode)

	_, err = Parse([]byte("[backend]\ntype = \"vulkan\"\n"))
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Parse([]byte("[effects\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewGeometry(t *testing.T) {
	c, err := Parse([]byte("[mesh]\nradius = 2.0\nsubdivisions = 1\n"))
	require.NoError(t, err)
	g, err := c.NewGeometry()
	require.NoError(t, err)
	assert.Equal(t, 80, g.TriangleCount())
	assert.InDelta(t, 2, g.BoundingRadius(), 1e-4)

	c.Mesh.Path = filepath.Join(t.TempDir(), "statue.obj")
	_, err = c.NewGeometry()
	assert.ErrorIs(t, err, loader.ErrUnsupportedFormat)

	c.Mesh.Path = filepath.Join(t.TempDir(), "missing.glb")
	_, err = c.NewGeometry()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTimeSource(t *testing.T) {
	fixed := Config{Time: TimeConfig{Mode: TimeModeFixed, Fixed: 3}}
	assert.Equal(t, float32(3), fixed.TimeSource(nil).Now())

	live := Default()
	clock := vacs.TimeSourceFunc(func() float32 { return 42 })
	assert.Equal(t, float32(42), live.TimeSource(clock).Now())
	assert.NotNil(t, live.TimeSource(nil))
}

func TestNewSoftwareBackendAndApply(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	b, err := c.NewBackend()
	require.NoError(t, err)
	defer b.Release()
	assert.Equal(t, compute.BackendTypeSoftware, b.Type())

	d, err := vacs.NewDriver(b)
	require.NoError(t, err)
	defer d.Destroy()

	c.Log.Level = ""
	c.Apply(d)
	assert.Equal(t, c.Effects, d.Parameters())
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vacs.toml")
	require.NoError(t, os.WriteFile(path, []byte("[effects]\njitter = 0.1\n"), 0o644))

	changes := make(chan Config, 64)
	w, err := Watch(path, func(c Config) {
		select {
		case changes <- c:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	assert.True(t, filepath.IsAbs(w.Path()))

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.toml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("[effects]\njitter = 0.75\n"), 0o644))

	// A write may be observed while the file is still truncated, so wait for the final contents.
	deadline := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case c := <-changes:
			reloaded = c.Effects.Jitter == 0.75
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
