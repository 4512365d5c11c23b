package compute

import (
	"testing"

	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scaleParams = `struct ScaleParams {
    Count: u32,
    Factor: f32,
    Bias: i32,
}`

const scaleWGSL = `//@vacs:include scale_params
//@vacs:group 0 0 storage_uniform params scale_params
@group(0) @binding(1) var<storage, read> Input: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read_write> Output: array<vec4<f32>>;

@compute @workgroup_size(4)
fn Main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.Count) {
        return;
    }
    Output[id.x] = Input[id.x] * params.Factor + vec4<f32>(f32(params.Bias));
}
`

func scaleSoftware(inv Invocation) {
	i := int(inv.GlobalID[0])
	if i >= inv.Int("Count") {
		return
	}
	in, out := inv.Buffer("Input"), inv.Buffer("Output")
	f, bias := inv.Float("Factor"), float32(inv.Int("Bias"))
	for c := range 4 {
		out[i][c] = in[i][c]*f + bias
	}
}

func scaleSource() KernelSource {
	return KernelSource{
		Key:  "test.scale",
		WGSL: scaleWGSL,
		Includes: map[shader.AnnotationArg]shader.Include{
			"scale_params": {Source: scaleParams, Type: "ScaleParams"},
		},
		Bindings: []string{"Input", "Output", "Count", "Factor", "Bias"},
		Software: scaleSoftware,
	}
}

func ramp(n int) []Element {
	out := make([]Element, n)
	for i := range out {
		v := float32(i)
		out[i] = Element{v, v, v, 1}
	}
	return out
}

func loadScale(t *testing.T, b Backend) Kernel {
	t.Helper()
	k, err := b.LoadKernel(scaleSource())
	require.NoError(t, err)
	return k
}

func dispatchScale(t *testing.T, b Backend, k Kernel, in, out Buffer, factor float32) {
	t.Helper()
	require.NoError(t, k.SetBuffer("Input", in))
	require.NoError(t, k.SetBuffer("Output", out))
	require.NoError(t, k.SetInt("Count", in.Len()))
	require.NoError(t, k.SetFloat("Factor", factor))
	require.NoError(t, b.DispatchCompute(k, [3]uint32{WorkgroupCount(in.Len(), k.WorkgroupSize()[0], 1), 1, 1}))
}

func TestSoftwareBackendDispatch(t *testing.T) {
	for _, workers := range []int{1, 4} {
		b := NewSoftwareBackend(WithWorkers(workers))
		k := loadScale(t, b)
		assert.Equal(t, "Main", k.EntryPoint())
		assert.Equal(t, [3]uint32{4, 1, 1}, k.WorkgroupSize())

		in, err := b.CreateBuffer("in", ramp(10))
		require.NoError(t, err)
		out, err := b.CreateBuffer("out", make([]Element, 10))
		require.NoError(t, err)

		require.NoError(t, b.BeginComputeFrame())
		require.NoError(t, k.SetInt("Bias", -1))
		dispatchScale(t, b, k, in, out, 2)
		require.NoError(t, b.EndComputeFrame())

		got, err := b.ReadBuffer(out)
		require.NoError(t, err)
		for i, e := range got {
			v := float32(i)*2 - 1
			assert.Equal(t, Element{v, v, v, 1}, e, "workers=%d element %d", workers, i)
		}
		b.Release()
	}
}

func TestSoftwareBackendDispatchesRunInOrder(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(3))
	defer b.Release()
	k := loadScale(t, b)

	src, _ := b.CreateBuffer("src", ramp(9))
	a, _ := b.CreateBuffer("a", make([]Element, 9))
	c, _ := b.CreateBuffer("b", make([]Element, 9))

	require.NoError(t, b.BeginComputeFrame())
	dispatchScale(t, b, k, src, a, 2)
	dispatchScale(t, b, k, a, c, 3)
	dispatchScale(t, b, k, c, a, 0.5)
	require.NoError(t, b.EndComputeFrame())

	got, err := b.ReadBuffer(a)
	require.NoError(t, err)
	for i, e := range got {
		assert.InDelta(t, float64(i)*3, float64(e[0]), 1e-5)
		assert.InDelta(t, 3.0, float64(e[3]), 1e-5)
	}
}

func TestSoftwareBackendCapturesParamsAtDispatch(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(1))
	defer b.Release()
	k := loadScale(t, b)

	in, _ := b.CreateBuffer("in", ramp(4))
	out, _ := b.CreateBuffer("out", make([]Element, 4))

	require.NoError(t, b.BeginComputeFrame())
	dispatchScale(t, b, k, in, out, 5)
	require.NoError(t, k.SetFloat("Factor", 100))
	require.NoError(t, b.EndComputeFrame())

	got, _ := b.ReadBuffer(out)
	assert.Equal(t, float32(15), got[3][0])
}

func TestSoftwareBackendZeroWorkgroupsRecordsNothing(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(1))
	defer b.Release()
	k := loadScale(t, b)
	in, _ := b.CreateBuffer("in", nil)
	out, _ := b.CreateBuffer("out", nil)

	require.NoError(t, b.BeginComputeFrame())
	dispatchScale(t, b, k, in, out, 1)
	require.NoError(t, b.EndComputeFrame())

	stats := b.Stats()
	assert.Equal(t, 0, stats.Dispatches)
	assert.Equal(t, 1, stats.Frames)
	assert.Equal(t, 2, stats.BuffersAlive())
}

func TestSoftwareBackendFrameErrors(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(1))
	defer b.Release()
	k := loadScale(t, b)

	assert.ErrorIs(t, b.DispatchCompute(k, [3]uint32{1, 1, 1}), ErrNoFrame)
	assert.ErrorIs(t, b.EndComputeFrame(), ErrNoFrame)

	require.NoError(t, b.BeginComputeFrame())
	assert.ErrorIs(t, b.BeginComputeFrame(), ErrFrameInProgress)
	err := b.DispatchCompute(k, [3]uint32{1, 1, 1})
	assert.ErrorIs(t, err, ErrUnboundBinding)
	assert.Contains(t, err.Error(), "Input")
	require.NoError(t, b.EndComputeFrame())
}

func TestKernelBindingErrors(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(1))
	defer b.Release()
	k := loadScale(t, b)
	buf, _ := b.CreateBuffer("buf", ramp(2))

	assert.ErrorIs(t, k.SetBuffer("Missing", buf), ErrUnknownBinding)
	assert.ErrorIs(t, k.SetBuffer("params", buf), ErrUnknownBinding)
	assert.ErrorIs(t, k.SetInt("Missing", 1), ErrUnknownBinding)
	assert.ErrorIs(t, k.SetInt("Count", -1), ErrBindingType)
	assert.ErrorIs(t, k.SetInt("Factor", 1), ErrBindingType)
	assert.ErrorIs(t, k.SetFloat("Count", 1), ErrBindingType)
	assert.NoError(t, k.SetInt("Bias", -7))

	other := NewSoftwareBackend(WithWorkers(1))
	defer other.Release()
	foreign, _ := other.CreateBuffer("foreign", ramp(2))
	assert.ErrorIs(t, k.SetBuffer("Input", foreign), ErrForeignResource)

	buf.Release()
	buf.Release()
	assert.True(t, buf.Released())
	assert.ErrorIs(t, k.SetBuffer("Input", buf), ErrReleased)
	_, err := b.ReadBuffer(buf)
	assert.ErrorIs(t, err, ErrReleased)
	assert.Equal(t, 1, b.Stats().BuffersReleased)

	k.Release()
	assert.ErrorIs(t, k.SetFloat("Factor", 1), ErrReleased)
}

func TestLoadKernelErrors(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(1))
	defer b.Release()

	src := scaleSource()
	src.EntryPoint = "CSMain"
	_, err := b.LoadKernel(src)
	assert.ErrorIs(t, err, ErrKernelInvalid)
	assert.ErrorIs(t, err, ErrEntryPointMismatch)

	src = scaleSource()
	src.Bindings = append(src.Bindings, "Time")
	_, err = b.LoadKernel(src)
	assert.ErrorIs(t, err, ErrUnknownBinding)

	src = scaleSource()
	src.Software = nil
	_, err = b.LoadKernel(src)
	assert.ErrorIs(t, err, ErrKernelInvalid)

	src = scaleSource()
	src.Key = ""
	_, err = b.LoadKernel(src)
	assert.ErrorIs(t, err, ErrKernelInvalid)
}

func TestCreateBufferCopiesInput(t *testing.T) {
	b := NewSoftwareBackend(WithWorkers(1))
	defer b.Release()

	data := ramp(3)
	buf, err := b.CreateBuffer("copy", data)
	require.NoError(t, err)
	data[1] = Element{9, 9, 9, 9}

	got, _ := b.ReadBuffer(buf)
	assert.Equal(t, Element{1, 1, 1, 1}, got[1])
	assert.Equal(t, "copy", buf.Label())
	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, BackendTypeSoftware, b.Type())
}

func TestWorkgroupCount(t *testing.T) {
	cases := []struct {
		items, per int
		width      uint32
		want       uint32
	}{
		{0, 1, 64, 0},
		{-3, 1, 64, 0},
		{1, 1, 64, 1},
		{64, 1, 64, 1},
		{65, 1, 64, 2},
		{129, 2, 64, 2},
		{128, 2, 64, 1},
		{10, 1, 0, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WorkgroupCount(c.items, c.width, c.per), "%+v", c)
	}
}
