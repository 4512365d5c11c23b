package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
	"github.com/Carmen-Shannon/vacs-go/engine/loader"
	"github.com/Carmen-Shannon/vacs-go/engine/vacs"
	"github.com/pelletier/go-toml/v2"
)

// TimeMode selects the time source handed to the driver.
type TimeMode string

const (
	// TimeModeLive advances time with a running clock.
	TimeModeLive TimeMode = "live"

	// TimeModeFixed holds time at TimeConfig.Fixed.
	TimeModeFixed TimeMode = "fixed"
)

var (
	// ErrUnknownTimeMode is returned by Validate for a [time] mode other than live or fixed.
	ErrUnknownTimeMode = errors.New("unknown time mode")

	// ErrUnknownBackend is returned by Validate for a [backend] type other than wgpu or software.
	ErrUnknownBackend = errors.New("unknown backend type")

	// ErrUnknownRenderOption is returned by Validate for a [render] present mode or style the
	// preview does not know.
	ErrUnknownRenderOption = errors.New("unknown render option")
)

var (
	presentModes  = []string{"vsync", "uncapped"}
	previewStyles = []string{"shaded", "points", "xray"}
)

// defaultSubdivisions is the icosphere detail used when [mesh] names no file.
const defaultSubdivisions = 3

// Config is the TOML configuration of a vacs program.
//
// Example:
//
//	[effects]
//	dissolve = 0.2
//	jitter = 0.5
//
//	[time]
//	mode = "fixed"
//	fixed = 10.0
//
//	[backend]
//	type = "software"
//	workers = 4
//
//	[mesh]
//	path = "statue.glb"
//	radius = 1.0
//
//	[render]
//	present_mode = "uncapped"
//	style = "points"
//	clear_color = [0.05, 0.05, 0.08]
//
//	[log]
//	level = "debug"
type Config struct {
	Effects vacs.Parameters `toml:"effects"`
	Time    TimeConfig      `toml:"time"`
	Backend BackendConfig   `toml:"backend"`
	Mesh    MeshConfig      `toml:"mesh"`
	Render  RenderConfig    `toml:"render"`
	Log     LogConfig       `toml:"log"`
}

// TimeConfig is the [time] section.
type TimeConfig struct {
	Mode  TimeMode `toml:"mode"`
	Fixed float32  `toml:"fixed"`
}

// BackendConfig is the [backend] section.
type BackendConfig struct {
	Type                 compute.BackendType `toml:"type"`
	Workers              int                 `toml:"workers"`
	Validate             bool                `toml:"validate"`
	ForceFallbackAdapter bool                `toml:"force_fallback_adapter"`
}

// MeshConfig is the [mesh] section. An empty path selects a built-in icosphere.
type MeshConfig struct {
	Path         string  `toml:"path"`
	Radius       float32 `toml:"radius"`
	Subdivisions int     `toml:"subdivisions"`
}

// RenderConfig is the [render] section of the preview window. PresentMode is vsync or uncapped,
// Style is shaded, points or xray, MSAA turns 4x multisampling on and Clockwise marks meshes
// whose front faces wind clockwise.
type RenderConfig struct {
	PresentMode string     `toml:"present_mode"`
	Style       string     `toml:"style"`
	ClearColor  [3]float32 `toml:"clear_color"`
	MSAA        bool       `toml:"msaa"`
	Clockwise   bool       `toml:"clockwise"`
}

// LogConfig is the [log] section.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given: every effect off, live time,
// the wgpu backend, a unit icosphere, a vsync shaded preview and info logging.
func Default() Config {
	return Config{
		Time:    TimeConfig{Mode: TimeModeLive, Fixed: vacs.PreviewTime},
		Backend: BackendConfig{Type: compute.BackendTypeWGPU},
		Mesh:    MeshConfig{Radius: 1, Subdivisions: defaultSubdivisions},
		Render:  RenderConfig{PresentMode: "vsync", Style: "shaded", ClearColor: [3]float32{0.1, 0.1, 0.1}, MSAA: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Parse decodes TOML on top of Default and validates the result. Keys missing from data keep
// their default values.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the validated configuration
//   - error: a decode error or a validation error
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c.Validate()
}

// Load reads and parses a TOML file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the validated configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate clamps every effect amplitude to [0, 1], normalizes names to lower case and rejects
// unknown modes, backend types and render options. Negative mesh sizes become zero and clear
// color channels are clamped to [0, 1].
//
// Returns:
//   - Config: the normalized configuration
//   - error: ErrUnknownTimeMode, ErrUnknownBackend or ErrUnknownRenderOption
func (c Config) Validate() (Config, error) {
	c.Effects = c.Effects.Clamped()
	c.Time.Mode = TimeMode(strings.ToLower(string(c.Time.Mode)))
	c.Backend.Type = compute.BackendType(strings.ToLower(string(c.Backend.Type)))
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Render.PresentMode = strings.ToLower(c.Render.PresentMode)
	c.Render.Style = strings.ToLower(c.Render.Style)

	switch c.Time.Mode {
	case TimeModeLive, TimeModeFixed:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownTimeMode, c.Time.Mode)
	}
	switch c.Backend.Type {
	case compute.BackendTypeWGPU, compute.BackendTypeSoftware:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend.Type)
	}
	if !slices.Contains(presentModes, c.Render.PresentMode) {
		return Config{}, fmt.Errorf("%w: present mode %q", ErrUnknownRenderOption, c.Render.PresentMode)
	}
	if !slices.Contains(previewStyles, c.Render.Style) {
		return Config{}, fmt.Errorf("%w: style %q", ErrUnknownRenderOption, c.Render.Style)
	}
	for i, v := range c.Render.ClearColor {
		c.Render.ClearColor[i] = common.Clamp01(v)
	}
	c.Backend.Workers = max(c.Backend.Workers, 0)
	c.Mesh.Radius = max(c.Mesh.Radius, 0)
	c.Mesh.Subdivisions = max(c.Mesh.Subdivisions, 0)
	return c, nil
}

// Apply pushes the effect amplitudes and the log level to a running program.
//
// Parameters:
//   - d: the driver to update
func (c Config) Apply(d vacs.Driver) {
	d.SetParameters(c.Effects)
	if c.Log.Level != "" {
		common.SetLogLevel(c.Log.Level)
	}
}

// TimeSource returns the time source selected by the [time] section.
//
// Parameters:
//   - live: the running clock used in live mode, e.g. a window clock; nil selects vacs.LiveClock
//
// Returns:
//   - vacs.TimeSource: the time source
func (c Config) TimeSource(live vacs.TimeSource) vacs.TimeSource {
	if c.Time.Mode == TimeModeFixed {
		return vacs.FixedTime(c.Time.Fixed)
	}
	if live == nil {
		return vacs.LiveClock()
	}
	return live
}

// NewBackend creates the compute backend selected by the [backend] section.
//
// Returns:
//   - compute.Backend: the backend
//   - error: a device error from the wgpu backend
func (c Config) NewBackend() (compute.Backend, error) {
	if c.Backend.Type == compute.BackendTypeSoftware {
		opts := []compute.SoftwareBackendBuilderOption{compute.WithSoftwareValidation(c.Backend.Validate)}
		if c.Backend.Workers > 0 {
			opts = append(opts, compute.WithWorkers(c.Backend.Workers))
		}
		return compute.NewSoftwareBackend(opts...), nil
	}
	return compute.NewWGPUBackend(
		compute.WithKernelValidation(c.Backend.Validate),
		compute.WithForceFallbackAdapter(c.Backend.ForceFallbackAdapter),
	)
}

// NewGeometry builds the mesh selected by the [mesh] section: the glTF or GLB file at Path scaled
// to Radius (zero keeps the file's units), or an icosphere of that radius when Path is empty.
//
// Returns:
//   - geometry.Geometry: the mesh
//   - error: an error reading or converting the file
func (c Config) NewGeometry() (geometry.Geometry, error) {
	if c.Mesh.Path == "" {
		radius := c.Mesh.Radius
		if radius == 0 {
			radius = 1
		}
		return geometry.NewIcosphere(c.Mesh.Subdivisions, radius)
	}
	return loader.NewLoader(loader.BackendTypeGLTF, loader.WithNormalizedRadius(c.Mesh.Radius)).Load(c.Mesh.Path)
}
