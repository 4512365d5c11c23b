package bind_group_provider

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the GPU bind group built from the current entries, or nil if not built yet or stale.
	bindGroup *wgpu.BindGroup
	// bindGroupLayout is the layout the bind group is created against. It is owned by the pipeline, not the provider.
	bindGroupLayout *wgpu.BindGroupLayout

	// buffers are created for this provider, keyed by binding index, and released with it.
	buffers map[int]*wgpu.Buffer
	// bound are buffers owned elsewhere, keyed by binding index. They are never released by the provider.
	bound map[int]*wgpu.Buffer

	// stale is set whenever an entry changes after the bind group was built.
	stale bool
}

// BindGroupProvider holds the buffers behind one bind group and the bind group built from them.
// A provider mixes buffers it owns, such as a kernel's uniform block, with buffers it only
// borrows, such as storage buffers owned by a buffer manager. Changing any entry marks the
// bind group stale so the backend rebuilds it before the next use.
//
// Usage pattern:
//  1. A kernel or draw item creates a provider and stores its uniform buffers with SetBuffer
//  2. Storage buffers are attached with BindBuffer whenever the caller rebinds them
//  3. Before a dispatch or draw the backend checks Stale and calls SetBindGroup with a fresh group
//  4. Release frees the owned buffers and the bind group, leaving borrowed buffers alone
type BindGroupProvider interface {
	// Release releases the owned buffers and the bind group.
	// Borrowed buffers attached with BindBuffer are left untouched.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the built bind group, or nil if it has not been built or is stale.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the layout the bind group is built against.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer at a binding, owned or borrowed.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// Buffers returns the buffers owned by this provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]*wgpu.Buffer: the owned buffers
	Buffers() map[int]*wgpu.Buffer

	// Entries returns one whole-buffer bind group entry per binding, sorted by binding index.
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: the entries for wgpu.BindGroupDescriptor
	Entries() []wgpu.BindGroupEntry

	// Stale reports whether the bind group must be rebuilt before use.
	//
	// Returns:
	//   - bool: true if there is no bind group or an entry changed since it was built
	Stale() bool

	// SetBindGroup stores a freshly built bind group, releasing the previous one.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout sets the layout new bind groups are built against.
	//
	// Parameters:
	//   - bgl: the bind group layout
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer stores a buffer owned by this provider.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the created buffer
	SetBuffer(binding int, buf *wgpu.Buffer)

	// BindBuffer attaches a buffer owned elsewhere. Rebinding the same buffer is a no-op.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the borrowed buffer
	BindBuffer(binding int, buf *wgpu.Buffer)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: a debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[int]*wgpu.Buffer),
		bound:   make(map[int]*wgpu.Buffer),
		stale:   true,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	if p.stale {
		return nil
	}
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	if buf, ok := p.buffers[binding]; ok {
		return buf
	}
	return p.bound[binding]
}

func (p *bindGroupProvider) Buffers() map[int]*wgpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) Entries() []wgpu.BindGroupEntry {
	entries := make([]wgpu.BindGroupEntry, 0, len(p.buffers)+len(p.bound))
	add := func(m map[int]*wgpu.Buffer) {
		for binding, buf := range m {
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: uint32(binding),
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			})
		}
	}
	add(p.buffers)
	add(p.bound)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Binding < entries[j].Binding
	})
	return entries
}

func (p *bindGroupProvider) Stale() bool {
	return p.stale || p.bindGroup == nil
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	p.stale = bg == nil
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	if p.bindGroupLayout != bgl {
		p.stale = true
	}
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	if p.buffers == nil {
		p.buffers = make(map[int]*wgpu.Buffer)
	}
	if old, ok := p.buffers[binding]; ok && old != buf && old != nil {
		old.Release()
	}
	p.buffers[binding] = buf
	p.stale = true
}

func (p *bindGroupProvider) BindBuffer(binding int, buf *wgpu.Buffer) {
	if p.bound == nil {
		p.bound = make(map[int]*wgpu.Buffer)
	}
	if old, ok := p.bound[binding]; ok && old == buf {
		return
	}
	p.bound[binding] = buf
	p.stale = true
}

func (p *bindGroupProvider) Release() {
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, i)
	}
	for i := range p.bound {
		delete(p.bound, i)
	}
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	p.bindGroupLayout = nil
	p.stale = true
}
