package shader

// ShaderBuilderOption is a functional option used to configure a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithIncludes registers the snippets that @vacs:include and @vacs:group annotations may reference.
//
// Parameters:
//   - includes: snippets keyed by the name used in annotations
//
// Returns:
//   - ShaderBuilderOption: a function that sets the snippet registry for the shader
func WithIncludes(includes map[AnnotationArg]Include) ShaderBuilderOption {
	return func(s *shader) {
		s.includes = includes
	}
}

// WithValidation compiles the processed source with the naga WGSL front end while parsing,
// so malformed kernels fail at load time instead of at pipeline creation.
//
// Parameters:
//   - validate: true to compile the source during NewShader
//
// Returns:
//   - ShaderBuilderOption: a function that toggles validation for the shader
func WithValidation(validate bool) ShaderBuilderOption {
	return func(s *shader) {
		s.validate = validate
	}
}
