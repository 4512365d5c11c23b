package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

var (
	// ErrEmptySource is returned when a shader is created without WGSL source.
	ErrEmptySource = errors.New("shader source is empty")

	// ErrMissingEntryPoint is returned when the source has no entry point for the shader type.
	ErrMissingEntryPoint = errors.New("shader has no entry point for its type")

	// ErrValidation is returned when the WGSL compiler rejects the source.
	ErrValidation = errors.New("shader failed validation")
)

// shader is the implementation of the Shader interface.
// It holds all of the persistent shader data required for pipeline creation and named binding lookups.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	bindings                   map[string]Binding
	uniformFields              map[string]UniformField
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor

	includes map[AnnotationArg]Include
	validate bool
	pp       PreProcessor
}

// Shader defines the interface for a parsed WGSL shader. It exposes the shader's unique key,
// processed source, entry point, workgroup size, bind group layout descriptors and the
// name-addressable view of its buffer bindings and uniform struct members.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors.
	// These can be used by a backend to create the actual wgpu.BindGroupLayout GPU objects.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name associated with the group and binding, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupVarNames retrieves all variable names for all bind groups.
	//
	// Returns:
	//   - map[int]map[int]string: variable names keyed by group and binding index
	BindGroupVarNames() map[int]map[int]string

	// Binding looks up a buffer binding by its WGSL variable name.
	//
	// Parameters:
	//   - name: the variable name, e.g. "PositionInput"
	//
	// Returns:
	//   - Binding: the binding description
	//   - bool: true if the shader declares a buffer with that name
	Binding(name string) (Binding, bool)

	// Bindings returns every buffer binding keyed by variable name.
	//
	// Returns:
	//   - map[string]Binding: the declared buffer bindings
	Bindings() map[string]Binding

	// UniformField looks up a member of a uniform struct by its field name.
	//
	// Parameters:
	//   - name: the field name, e.g. "Amplitude"
	//
	// Returns:
	//   - UniformField: the field's location and layout
	//   - bool: true if a bound uniform struct has a field with that name
	UniformField(name string) (UniformField, bool)

	// UniformFields returns all uniform struct members keyed by field name.
	//
	// Returns:
	//   - map[string]UniformField: the addressable uniform fields
	UniformFields() map[string]UniformField

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "Main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] when @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Module returns the wgpu.ShaderModuleDescriptor built from the processed source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// ShaderType returns the type of the shader (vertex, fragment, or compute).
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// Declarations returns the @vacs:group annotations parsed from the shader source.
	//
	// Returns:
	//   - []Annotation: group declarations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and parses WGSL source into a Shader.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the type of shader (vertex, fragment or compute)
//   - source: the raw WGSL source, which may contain @vacs: annotations
//   - options: builder options such as WithIncludes and WithValidation
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if pre-processing fails, the entry point is missing, or validation fails
func NewShader(key string, shaderType ShaderType, source string, options ...ShaderBuilderOption) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %s: %w", key, ErrEmptySource)
	}
	s := &shader{
		key:        key,
		shaderType: shaderType,
	}
	for _, opt := range options {
		opt(s)
	}
	s.pp = NewPreProcessor(s.includes)

	if err := s.parseSource(source); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	return s.bindingVarNames
}

func (s *shader) Binding(name string) (Binding, bool) {
	b, ok := s.bindings[name]
	return b, ok
}

func (s *shader) Bindings() map[string]Binding {
	return s.bindings
}

func (s *shader) UniformField(name string) (UniformField, bool) {
	f, ok := s.uniformFields[name]
	return f, ok
}

func (s *shader) UniformFields() map[string]UniformField {
	return s.uniformFields
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

// parseSource runs the pre-processor, builds the module descriptor, and extracts the entry point,
// workgroup size (compute only) and buffer bindings from the processed source.
func (s *shader) parseSource(raw string) error {
	var err error
	s.source, err = s.pp.Process(raw)
	if err != nil {
		return fmt.Errorf("failed to pre-process shader source: %w", err)
	}
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}

	s.entryPoint = parseEntryPoint(s.source, s.shaderType)
	if s.entryPoint == "" {
		return ErrMissingEntryPoint
	}
	if s.shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(s.source)
	}

	var visibility wgpu.ShaderStage
	switch s.shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
	default:
		visibility = wgpu.ShaderStageNone
	}
	parsed := parseBindGroupLayouts(s.source, visibility)
	s.bindGroupLayoutDescriptors = parsed.descriptors
	s.bindingVarNames = parsed.varNames
	s.bindings = parsed.bindings
	s.uniformFields = parsed.uniforms

	if s.validate {
		if err := Validate(s.source); err != nil {
			return err
		}
	}
	return nil
}
