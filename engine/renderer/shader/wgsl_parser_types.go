package shader

import "github.com/cogentcore/webgpu/wgpu"

// wgslTypeLayout holds the byte size and alignment for a WGSL type.
// Used to compute MinBindingSize for buffer bindings and field offsets inside uniform structs.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// BindingKind classifies a buffer resource declared in a shader.
type BindingKind int

const (
	// BindingKindUniform is a var<uniform> buffer.
	BindingKindUniform BindingKind = iota

	// BindingKindStorageRead is a var<storage, read> buffer.
	BindingKindStorageRead

	// BindingKindStorageReadWrite is a var<storage, read_write> buffer.
	BindingKindStorageReadWrite
)

// Binding describes one @group/@binding buffer declaration.
type Binding struct {
	Name    string
	Group   int
	Binding int
	Kind    BindingKind
	// Type is the WGSL type text as written, e.g. "array<vec4<f32>>" or "StageParams".
	Type string
	// MinSize is the resolved byte size of Type, or the element stride for runtime-sized arrays.
	MinSize uint64
}

// UniformField describes a scalar or vector member of a uniform struct, addressable by name.
type UniformField struct {
	Name string
	// Group and Binding locate the uniform buffer holding the field.
	Group   int
	Binding int
	Offset  uint64
	Size    uint64
	Type    string
}

// bufferKind maps a BindingKind to the layout entry buffer type.
func (k BindingKind) bufferKind() wgpu.BufferBindingType {
	switch k {
	case BindingKindUniform:
		return wgpu.BufferBindingTypeUniform
	case BindingKindStorageRead:
		return wgpu.BufferBindingTypeReadOnlyStorage
	default:
		return wgpu.BufferBindingTypeStorage
	}
}
