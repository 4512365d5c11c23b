package vacs

import (
	"sort"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
)

// Names of the per-draw overrides published by the RenderBinder.
const (
	OverrideOriginalPositionBuffer = "_OriginalPositionBuffer"
	OverrideOriginalNormalBuffer   = "_OriginalNormalBuffer"
	OverridePositionBuffer         = "_PositionBuffer"
	OverrideNormalBuffer           = "_NormalBuffer"
	OverrideTangentBuffer          = "_TangentBuffer"
	OverrideTriangleCount          = "_TriangleCount"
)

// DrawTarget is whatever is about to be drawn with the deformed buffers, such as a renderer's
// draw item. Overrides apply to this target only and never to shared material state.
type DrawTarget interface {
	// Mesh returns the template mesh the target currently draws.
	//
	// Returns:
	//   - geometry.Mesh: the mesh handle, the zero value if none is assigned
	Mesh() geometry.Mesh

	// SetMesh assigns the template mesh to draw.
	//
	// Parameters:
	//   - m: the mesh handle
	SetMesh(m geometry.Mesh)

	// SetOverrides hands the target the binding set to draw with. The same set is passed every
	// frame and is mutated in place between calls.
	//
	// Parameters:
	//   - set: the binding set
	SetOverrides(set BindingSet)
}

// bindingSet is the implementation of the BindingSet interface.
type bindingSet struct {
	buffers  map[string]compute.Buffer
	floats   map[string]float32
	revision uint64
}

// BindingSet is a per-instance set of named buffer and float overrides. Setting a value that
// differs from the current one bumps Revision so consumers can rebuild dependent GPU state only
// when something changed.
type BindingSet interface {
	// Buffer returns the buffer bound to name.
	//
	// Parameters:
	//   - name: the override name
	//
	// Returns:
	//   - compute.Buffer: the buffer or nil
	Buffer(name string) compute.Buffer

	// Float returns the float bound to name.
	//
	// Parameters:
	//   - name: the override name
	//
	// Returns:
	//   - float32: the value
	//   - bool: false if nothing is bound to name
	Float(name string) (float32, bool)

	// BufferNames returns the names of all bound buffers in sorted order.
	//
	// Returns:
	//   - []string: the names
	BufferNames() []string

	// SetBuffer binds a buffer to name.
	//
	// Parameters:
	//   - name: the override name
	//   - b: the buffer
	SetBuffer(name string, b compute.Buffer)

	// SetFloat binds a float to name.
	//
	// Parameters:
	//   - name: the override name
	//   - v: the value
	SetFloat(name string, v float32)

	// Revision returns a counter that changes whenever a binding changes.
	//
	// Returns:
	//   - uint64: the revision
	Revision() uint64

	// Clear drops every binding.
	Clear()
}

var _ BindingSet = &bindingSet{}

// NewBindingSet creates an empty BindingSet.
func NewBindingSet() BindingSet {
	return &bindingSet{
		buffers: make(map[string]compute.Buffer),
		floats:  make(map[string]float32),
	}
}

func (s *bindingSet) Buffer(name string) compute.Buffer {
	return s.buffers[name]
}

func (s *bindingSet) Float(name string) (float32, bool) {
	v, ok := s.floats[name]
	return v, ok
}

func (s *bindingSet) BufferNames() []string {
	names := make([]string, 0, len(s.buffers))
	for name := range s.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *bindingSet) SetBuffer(name string, b compute.Buffer) {
	if cur, ok := s.buffers[name]; ok && cur == b {
		return
	}
	s.buffers[name] = b
	s.revision++
}

func (s *bindingSet) SetFloat(name string, v float32) {
	if cur, ok := s.floats[name]; ok && cur == v {
		return
	}
	s.floats[name] = v
	s.revision++
}

func (s *bindingSet) Revision() uint64 {
	return s.revision
}

func (s *bindingSet) Clear() {
	if len(s.buffers) == 0 && len(s.floats) == 0 {
		return
	}
	clear(s.buffers)
	clear(s.floats)
	s.revision++
}

// renderBinder is the implementation of the RenderBinder interface.
type renderBinder struct {
	set BindingSet
}

// RenderBinder publishes the original and deformed buffers to a DrawTarget through a binding set
// it creates on first use and reuses afterwards.
type RenderBinder interface {
	// Bind writes the five buffer overrides and the triangle count into the binding set and hands
	// the set to the target.
	//
	// Parameters:
	//   - target: the draw target
	//   - buffers: allocated buffers
	//   - deformed: the final position buffer
	Bind(target DrawTarget, buffers BufferManager, deformed compute.Buffer)

	// BindingSet returns the binding set, or nil before the first Bind.
	//
	// Returns:
	//   - BindingSet: the set or nil
	BindingSet() BindingSet

	// Release drops every binding so no released buffer stays referenced.
	Release()
}

var _ RenderBinder = &renderBinder{}

// NewRenderBinder creates a RenderBinder. The binding set is created on the first Bind.
func NewRenderBinder() RenderBinder {
	return &renderBinder{}
}

func (r *renderBinder) Bind(target DrawTarget, buffers BufferManager, deformed compute.Buffer) {
	if r.set == nil {
		r.set = NewBindingSet()
	}
	r.set.SetBuffer(OverrideOriginalPositionBuffer, buffers.PositionSource())
	r.set.SetBuffer(OverrideOriginalNormalBuffer, buffers.NormalSource())
	r.set.SetBuffer(OverridePositionBuffer, deformed)
	r.set.SetBuffer(OverrideNormalBuffer, buffers.NormalOutput())
	r.set.SetBuffer(OverrideTangentBuffer, buffers.TangentOutput())
	r.set.SetFloat(OverrideTriangleCount, float32(buffers.Geometry().TriangleCount()))
	target.SetOverrides(r.set)
}

func (r *renderBinder) BindingSet() BindingSet {
	return r.set
}

func (r *renderBinder) Release() {
	if r.set != nil {
		r.set.Clear()
	}
}
