package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testParams = `struct TestParams {
    TriangleCount: u32,
    Amplitude: f32,
    Offset: vec4<f32>,
    Time: f32,
}`

const testKernel = `// scale kernel
//@vacs:include test_params
//@vacs:group 0 0 storage_uniform params test_params
@group(0) @binding(1) var<storage, read> PositionInput: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read_write> PositionOutput: array<vec4<f32>>;

/* helper functions /* nested */ live here */
fn scale(v: vec4<f32>) -> vec4<f32> {
    return v * params.Amplitude;
}

@compute @workgroup_size(64)
fn Main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.TriangleCount) {
        return;
    }
    PositionOutput[id.x] = scale(PositionInput[id.x]);
}
`

func testIncludes() map[AnnotationArg]Include {
	return map[AnnotationArg]Include{
		"test_params": {Source: testParams, Type: "TestParams"},
	}
}

func TestNewShaderParsesComputeKernel(t *testing.T) {
	s, err := NewShader("scale", ShaderTypeCompute, testKernel, WithIncludes(testIncludes()))
	require.NoError(t, err)

	assert.Equal(t, "Main", s.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, s.WorkgroupSize())
	assert.Contains(t, s.Source(), "@group(0) @binding(0) var<uniform> params: TestParams;")
	assert.Contains(t, s.Source(), "struct TestParams")
	require.Len(t, s.Declarations(), 1)
	assert.Equal(t, AnnotationArg("params"), s.Declarations()[0].Args[1])

	desc := s.BindGroupLayoutDescriptors()[0]
	require.Len(t, desc.Entries, 3)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, desc.Entries[1].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, desc.Entries[2].Buffer.Type)
	assert.Equal(t, uint64(48), desc.Entries[0].Buffer.MinBindingSize)
	assert.Equal(t, uint64(16), desc.Entries[1].Buffer.MinBindingSize)

	assert.Equal(t, "PositionOutput", s.BindGroupVarName(0, 2))
	assert.Equal(t, "", s.BindGroupVarName(3, 0))

	in, ok := s.Binding("PositionInput")
	require.True(t, ok)
	assert.Equal(t, BindingKindStorageRead, in.Kind)
	assert.Equal(t, 1, in.Binding)
}

func TestUniformFieldOffsets(t *testing.T) {
	s, err := NewShader("scale", ShaderTypeCompute, testKernel, WithIncludes(testIncludes()))
	require.NoError(t, err)

	cases := map[string]uint64{
		"TriangleCount": 0,
		"Amplitude":     4,
		"Offset":        16,
		"Time":          32,
	}
	for name, offset := range cases {
		f, ok := s.UniformField(name)
		require.True(t, ok, name)
		assert.Equal(t, offset, f.Offset, name)
		assert.Equal(t, 0, f.Binding, name)
	}
	_, ok := s.UniformField("Missing")
	assert.False(t, ok)
}

func TestNewShaderErrors(t *testing.T) {
	_, err := NewShader("empty", ShaderTypeCompute, "")
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = NewShader("noentry", ShaderTypeCompute, "fn helper() {}")
	assert.ErrorIs(t, err, ErrMissingEntryPoint)

	_, err = NewShader("unknown", ShaderTypeCompute, "//@vacs:include nothing\n@compute @workgroup_size(1) fn Main() {}")
	assert.Error(t, err)

	_, err = NewShader("badspace", ShaderTypeCompute, "//@vacs:group 0 0 private p test_params\n@compute @workgroup_size(1) fn Main() {}",
		WithIncludes(testIncludes()))
	assert.Error(t, err)
}

func TestIncludeInjectedOnce(t *testing.T) {
	src := "//@vacs:include test_params\n//@vacs:include test_params\n@compute @workgroup_size(8, 2) fn Main() {}"
	s, err := NewShader("twice", ShaderTypeCompute, src, WithIncludes(testIncludes()))
	require.NoError(t, err)

	assert.Equal(t, 1, countOccurrences(s.Source(), "struct TestParams"))
	assert.Equal(t, [3]uint32{8, 2, 1}, s.WorkgroupSize())
}

func TestResolveTypeLayout(t *testing.T) {
	known := map[string]wgslTypeLayout{"Plane": {16, 16}}

	l, ok := resolveTypeLayout("array<Plane, 6>", known)
	require.True(t, ok)
	assert.Equal(t, uint64(96), l.size)

	l, ok = resolveTypeLayout("array<vec3<f32>>", known)
	require.True(t, ok)
	assert.Equal(t, uint64(16), l.size)

	_, ok = resolveTypeLayout("texture_2d<f32>", known)
	assert.False(t, ok)
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
