package effect

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry(t *testing.T, triangles int) geometry.Geometry {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	corners := make([]mgl32.Vec3, 3*triangles)
	for i := range corners {
		corners[i] = mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
	}
	g, err := geometry.NewGeometry(geometry.WithLabel("random"), geometry.WithTriangles(corners))
	require.NoError(t, err)
	return g
}

type stageRun struct {
	amplitude float32
	seed      float32
	time      float32
}

// runStage dispatches one stage reading the source positions and returns its output.
func runStage(t *testing.T, b compute.Backend, g geometry.Geometry, stage Stage, r stageRun) []compute.Element {
	t.Helper()
	k, err := b.LoadKernel(stage.Source())
	require.NoError(t, err)
	defer k.Release()

	pos, err := g.CreatePositionBuffer(b, "pos")
	require.NoError(t, err)
	nrm, _ := g.CreateNormalBuffer(b, "nrm")
	tan, _ := g.CreateTangentBuffer(b, "tan")
	out, _ := b.CreateBuffer("out", make([]compute.Element, 3*g.TriangleCount()))

	require.NoError(t, k.SetBuffer(BindingPositionSource, pos))
	require.NoError(t, k.SetBuffer(BindingNormalSource, nrm))
	require.NoError(t, k.SetBuffer(BindingTangentSource, tan))
	require.NoError(t, k.SetBuffer(BindingPositionInput, pos))
	require.NoError(t, k.SetBuffer(BindingPositionOutput, out))
	require.NoError(t, k.SetInt(BindingTriangleCount, g.TriangleCount()))
	require.NoError(t, k.SetFloat(BindingAmplitude, r.amplitude))
	require.NoError(t, k.SetFloat(BindingRandomSeed, r.seed))
	require.NoError(t, k.SetFloat(BindingTime, r.time))

	groups := compute.WorkgroupCount(g.TriangleCount(), k.WorkgroupSize()[0], stage.TrianglesPerThread())
	require.NoError(t, b.BeginComputeFrame())
	require.NoError(t, b.DispatchCompute(k, [3]uint32{groups, 1, 1}))
	require.NoError(t, b.EndComputeFrame())

	got, err := b.ReadBuffer(out)
	require.NoError(t, err)
	src, _ := b.ReadBuffer(pos)
	assert.Equal(t, g.Positions(), src, "%s wrote to its source buffer", stage)
	return got
}

func TestStageTable(t *testing.T) {
	names := []string{"dissolve", "inflate", "voxelize", "jitter", "digitize"}
	perThread := []int{1, 1, 1, 1, 2}
	require.Len(t, Stages, 5)
	for i, s := range Stages {
		assert.Equal(t, names[i], s.String())
		assert.Equal(t, "vacs."+names[i], s.KernelKey())
		assert.Equal(t, perThread[i], s.TrianglesPerThread())
		assert.Equal(t, EntryPoint, s.Source().EntryPoint)
	}
	assert.Equal(t, "unknown", Stage(42).String())
}

func TestKernelsLoad(t *testing.T) {
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	sources := []compute.KernelSource{ReconstructionSource()}
	for _, s := range Stages {
		sources = append(sources, s.Source())
	}
	for _, src := range sources {
		k, err := b.LoadKernel(src)
		require.NoError(t, err, src.Key)
		assert.Equal(t, [3]uint32{64, 1, 1}, k.WorkgroupSize(), src.Key)
		k.Release()
	}
}

func TestKernelsValidateWithNaga(t *testing.T) {
	sources := []compute.KernelSource{ReconstructionSource()}
	for _, s := range Stages {
		sources = append(sources, s.Source())
	}
	for _, src := range sources {
		s, err := shader.NewShader(src.Key, shader.ShaderTypeCompute, src.WGSL, shader.WithIncludes(src.Includes))
		require.NoError(t, err)
		if err := shader.Validate(s.Source()); err != nil {
			t.Skipf("naga front end rejected %s: %v", src.Key, err)
		}
	}
}

func TestStageParamsLayoutMatchesWGSL(t *testing.T) {
	s, err := shader.NewShader("layout", shader.ShaderTypeCompute, StageDissolve.Source().WGSL, shader.WithIncludes(Includes()))
	require.NoError(t, err)

	params := GPUStageParams{TriangleCount: 1, Amplitude: 2, RandomSeed: 3, Time: 4}
	assert.Equal(t, 16, params.Size())
	assert.Len(t, params.Marshal(), 16)
	offsets := map[string]uint64{BindingTriangleCount: 0, BindingAmplitude: 4, BindingRandomSeed: 8, BindingTime: 12}
	for name, offset := range offsets {
		f, ok := s.UniformField(name)
		require.True(t, ok, name)
		assert.Equal(t, offset, f.Offset, name)
	}
	assert.Equal(t, 4, (&GPUReconstructParams{}).Size())
}

func TestStagesAreIdentityAtZeroAmplitude(t *testing.T) {
	g := testGeometry(t, 131)
	b := compute.NewSoftwareBackend(compute.WithWorkers(2))
	defer b.Release()

	for _, s := range Stages {
		got := runStage(t, b, g, s, stageRun{amplitude: 0, seed: 0.37, time: 3.3})
		assert.Equal(t, g.Positions(), got, s.String())
	}
}

func TestStagesDeformAtFullAmplitude(t *testing.T) {
	g := testGeometry(t, 131)
	b := compute.NewSoftwareBackend(compute.WithWorkers(2))
	defer b.Release()

	for _, s := range Stages {
		got := runStage(t, b, g, s, stageRun{amplitude: 1, seed: 0.37, time: 3.3})
		require.Len(t, got, len(g.Positions()))
		assert.NotEqual(t, g.Positions(), got, s.String())
		for i, e := range got {
			assert.Equal(t, float32(0), e[3], "%s element %d", s, i)
		}
	}
}

func TestInflatePushesAlongNormals(t *testing.T) {
	g, err := geometry.NewCube(2)
	require.NoError(t, err)
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	got := runStage(t, b, g, StageInflate, stageRun{amplitude: 0.5})
	src, nrm := g.Positions(), g.Normals()
	for i := range got {
		want := xyz(src[i]).Add(xyz(nrm[i]).Mul(0.125))
		assert.True(t, xyz(got[i]).ApproxEqual(want), "corner %d: %v != %v", i, got[i], want)
	}
}

func TestDigitizeCoversOddTriangleCounts(t *testing.T) {
	g := testGeometry(t, 129)
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	got := runStage(t, b, g, StageDigitize, stageRun{amplitude: 1})
	src := g.Positions()
	for i, e := range got {
		want := snap(xyz(src[i]), 0.2)
		assert.True(t, xyz(e).ApproxEqualThreshold(want, 1e-5), "corner %d: %v != %v", i, e, want)
	}
}

func TestJitterDependsOnTimeAndSeed(t *testing.T) {
	g := testGeometry(t, 16)
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	base := runStage(t, b, g, StageJitter, stageRun{amplitude: 1, seed: 0.25, time: 10})
	sameFrame := runStage(t, b, g, StageJitter, stageRun{amplitude: 1, seed: 0.25, time: 10.01})
	nextFrame := runStage(t, b, g, StageJitter, stageRun{amplitude: 1, seed: 0.25, time: 11})
	otherSeed := runStage(t, b, g, StageJitter, stageRun{amplitude: 1, seed: 0.75, time: 10})

	assert.Equal(t, base, sameFrame)
	assert.NotEqual(t, base, nextFrame)
	assert.NotEqual(t, base, otherSeed)
}

func TestJitterFrameSaturates(t *testing.T) {
	assert.Equal(t, uint32(0), jitterFrame(-3))
	assert.Equal(t, uint32(12), jitterFrame(1.05))
	assert.Equal(t, uint32(math.MaxUint32), jitterFrame(1e12))
	assert.Equal(t, uint32(math.MaxUint32), jitterFrame(float32(math.Inf(1))))
	assert.Equal(t, uint32(0), jitterFrame(float32(math.NaN())))
}

func TestRand01Range(t *testing.T) {
	seen := make(map[float32]bool)
	for tri := range uint32(1000) {
		v := rand01(tri, 3, 0.5)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
		seen[v] = true
	}
	assert.Greater(t, len(seen), 990)
	assert.Equal(t, rand01(5, 1, 0.1), rand01(5, 1, 0.1))
}

func runReconstruction(t *testing.T, b compute.Backend, g geometry.Geometry, modified []compute.Element) (normals, tangents []compute.Element) {
	t.Helper()
	k, err := b.LoadKernel(ReconstructionSource())
	require.NoError(t, err)
	defer k.Release()

	n := 3 * g.TriangleCount()
	pos, _ := g.CreatePositionBuffer(b, "pos")
	mod, _ := b.CreateBuffer("mod", modified)
	nrm, _ := g.CreateNormalBuffer(b, "nrm")
	tan, _ := g.CreateTangentBuffer(b, "tan")
	nOut, _ := b.CreateBuffer("nout", make([]compute.Element, n))
	tOut, _ := b.CreateBuffer("tout", make([]compute.Element, n))

	require.NoError(t, k.SetBuffer(BindingPositionSource, pos))
	require.NoError(t, k.SetBuffer(BindingPositionModified, mod))
	require.NoError(t, k.SetBuffer(BindingNormalInput, nrm))
	require.NoError(t, k.SetBuffer(BindingNormalOutput, nOut))
	require.NoError(t, k.SetBuffer(BindingTangentInput, tan))
	require.NoError(t, k.SetBuffer(BindingTangentOutput, tOut))
	require.NoError(t, k.SetInt(BindingTriangleCount, g.TriangleCount()))

	require.NoError(t, b.BeginComputeFrame())
	require.NoError(t, b.DispatchCompute(k, [3]uint32{compute.WorkgroupCount(g.TriangleCount(), 64, 1), 1, 1}))
	require.NoError(t, b.EndComputeFrame())

	normals, err = b.ReadBuffer(nOut)
	require.NoError(t, err)
	tangents, err = b.ReadBuffer(tOut)
	require.NoError(t, err)
	return normals, tangents
}

func TestReconstructionCopiesUndeformedTriangles(t *testing.T) {
	g := testGeometry(t, 70)
	b := compute.NewSoftwareBackend(compute.WithWorkers(2))
	defer b.Release()

	normals, tangents := runReconstruction(t, b, g, g.Positions())
	assert.Equal(t, g.Normals(), normals)
	assert.Equal(t, g.Tangents(), tangents)
}

func TestReconstructionRotatesWithFace(t *testing.T) {
	g, err := geometry.NewGeometry(geometry.WithTriangles([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, err)
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	// Rotate the triangle a quarter turn about +X, taking the +Z face normal to -Y.
	rot := mgl32.HomogRotate3DX(mgl32.DegToRad(90)).Mat3()
	modified := g.Positions()
	for i, p := range modified {
		modified[i] = element(rot.Mul3x1(xyz(p)), p[3])
	}

	normals, tangents := runReconstruction(t, b, g, modified)
	src := g.Tangents()
	for i := range normals {
		assert.Less(t, xyz(normals[i]).Sub(mgl32.Vec3{0, -1, 0}).Len(), float32(1e-5), "normal %d: %v", i, normals[i])
		want := rot.Mul3x1(xyz(src[i]))
		assert.Less(t, xyz(tangents[i]).Sub(want).Len(), float32(1e-5), "tangent %d: %v != %v", i, tangents[i], want)
		assert.Equal(t, src[i][3], tangents[i][3])
	}
}

func TestReconstructionKeepsDegenerateTriangles(t *testing.T) {
	g, err := geometry.NewGeometry(geometry.WithTriangles([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, err)
	b := compute.NewSoftwareBackend(compute.WithWorkers(1))
	defer b.Release()

	collapsed := []compute.Element{{0.3, 0.3, 0, 0}, {0.3, 0.3, 0, 0}, {0.3, 0.3, 0, 0}}
	normals, tangents := runReconstruction(t, b, g, collapsed)
	assert.Equal(t, g.Normals(), normals)
	assert.Equal(t, g.Tangents(), tangents)
}

func TestRotateOppositeNormals(t *testing.T) {
	n0 := mgl32.Vec3{0, 0, 1}
	got := rotate(mgl32.Vec3{0, 0, 1}, n0, n0.Mul(-1))
	assert.True(t, got.ApproxEqual(mgl32.Vec3{0, 0, -1}))

	got = rotate(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	assert.True(t, got.ApproxEqual(mgl32.Vec3{0, 1, 0}))
}
