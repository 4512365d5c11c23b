package renderer

import (
	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/vacs-go/engine/vacs"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

type drawItem struct {
	label     string
	mesh      geometry.Mesh
	overrides vacs.BindingSet
	transform mgl32.Mat4
	color     mgl32.Vec4

	provider bind_group_provider.BindGroupProvider

	// revision is the overrides revision last mapped onto provider.
	revision  uint64
	mapped    bool
	drawable  bool
	triangles uint32
}

// DrawItem is one mesh drawn by the preview renderer. It draws whatever deformed buffers its
// overrides point at, so a vacs.Driver can target it directly. A DrawItem is not safe for
// concurrent use; update the driver and render from the same goroutine.
type DrawItem interface {
	vacs.DrawTarget

	// Label returns the debug label of the item.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Overrides returns the binding set last handed over by SetOverrides.
	//
	// Returns:
	//   - vacs.BindingSet: the set, or nil
	Overrides() vacs.BindingSet

	// Transform returns the model matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the model matrix
	Transform() mgl32.Mat4

	// SetTransform sets the model matrix.
	//
	// Parameters:
	//   - m: the model matrix
	SetTransform(m mgl32.Mat4)

	// Color returns the base color.
	//
	// Returns:
	//   - mgl32.Vec4: linear RGBA
	Color() mgl32.Vec4

	// SetColor sets the base color.
	//
	// Parameters:
	//   - c: linear RGBA
	SetColor(c mgl32.Vec4)

	// Release releases the item's uniform buffer and bind group. Bound storage buffers belong
	// to the driver and are left alone.
	Release()
}

var _ DrawItem = &drawItem{}

// NewDrawItem creates a DrawItem with an identity transform and a light grey color. The renderer
// attaches GPU resources on the first Render.
//
// Parameters:
//   - label: a debug label
//
// Returns:
//   - DrawItem: the item
func NewDrawItem(label string) DrawItem {
	return &drawItem{
		label:     label,
		transform: mgl32.Ident4(),
		color:     mgl32.Vec4{0.8, 0.8, 0.8, 1},
		provider:  bind_group_provider.NewBindGroupProvider(label + " item"),
	}
}

func (d *drawItem) Label() string {
	return d.label
}

func (d *drawItem) Mesh() geometry.Mesh {
	return d.mesh
}

func (d *drawItem) SetMesh(m geometry.Mesh) {
	d.mesh = m
}

func (d *drawItem) SetOverrides(set vacs.BindingSet) {
	if d.overrides != set {
		d.mapped = false
	}
	d.overrides = set
}

func (d *drawItem) Overrides() vacs.BindingSet {
	return d.overrides
}

func (d *drawItem) Transform() mgl32.Mat4 {
	return d.transform
}

func (d *drawItem) SetTransform(m mgl32.Mat4) {
	d.transform = m
}

func (d *drawItem) Color() mgl32.Vec4 {
	return d.color
}

func (d *drawItem) SetColor(c mgl32.Vec4) {
	d.color = c
}

// params returns the uniform block of the item for the current frame.
func (d *drawItem) params() GPUItemParams {
	return GPUItemParams{
		Model:         d.transform,
		Color:         d.color,
		TriangleCount: d.triangles,
	}
}

// resolve maps the overrides onto the item's storage bindings when their revision changed and
// reports how many vertices to draw. Zero means the item has nothing drawable this frame.
//
// Returns:
//   - uint32: the vertex count
func (d *drawItem) resolve() uint32 {
	if d.overrides == nil {
		return 0
	}
	if !d.mapped || d.overrides.Revision() != d.revision {
		d.revision = d.overrides.Revision()
		d.mapped = true
		d.drawable = false

		positions := deviceBuffer(d.overrides.Buffer(vacs.OverridePositionBuffer))
		normals := deviceBuffer(d.overrides.Buffer(vacs.OverrideNormalBuffer))
		triangles, ok := d.overrides.Float(vacs.OverrideTriangleCount)
		if positions != nil && normals != nil && ok && triangles > 0 {
			d.provider.BindBuffer(bindingPositions, positions)
			d.provider.BindBuffer(bindingNormals, normals)
			d.triangles = uint32(triangles)
			d.drawable = true
		}
	}
	if !d.drawable {
		return 0
	}
	// Released buffers stay in the set until the driver binds their replacements.
	for _, name := range []string{vacs.OverridePositionBuffer, vacs.OverrideNormalBuffer} {
		if b := d.overrides.Buffer(name); b == nil || b.Released() {
			return 0
		}
	}
	return d.triangles * 3
}

func (d *drawItem) Release() {
	d.provider.Release()
	d.mapped = false
	d.drawable = false
}

// deviceBuffer returns the WebGPU buffer behind b, or nil if b does not live on a device.
func deviceBuffer(b compute.Buffer) *wgpu.Buffer {
	gb, ok := b.(compute.GPUBuffer)
	if !ok || gb.Released() {
		return nil
	}
	return gb.GPUBuffer()
}
