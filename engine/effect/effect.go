package effect

import (
	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
)

// EntryPoint is the compute entry point every kernel in this package declares.
const EntryPoint = "Main"

// Binding names shared by the effect stages.
const (
	BindingPositionSource = "PositionSource"
	BindingNormalSource   = "NormalSource"
	BindingTangentSource  = "TangentSource"
	BindingPositionInput  = "PositionInput"
	BindingPositionOutput = "PositionOutput"
	BindingTriangleCount  = "TriangleCount"
	BindingAmplitude      = "Amplitude"
	BindingRandomSeed     = "RandomSeed"
	BindingTime           = "Time"
)

// Binding names used by the reconstruction kernel in addition to BindingPositionSource and BindingTriangleCount.
const (
	BindingPositionModified = "PositionModified"
	BindingNormalInput      = "NormalInput"
	BindingNormalOutput     = "NormalOutput"
	BindingTangentInput     = "TangentInput"
	BindingTangentOutput    = "TangentOutput"
)

// StageBindings lists every name an effect stage is bound by.
var StageBindings = []string{
	BindingPositionSource, BindingNormalSource, BindingTangentSource,
	BindingPositionInput, BindingPositionOutput,
	BindingTriangleCount, BindingAmplitude, BindingRandomSeed, BindingTime,
}

// ReconstructionBindings lists every name the reconstruction kernel is bound by.
var ReconstructionBindings = []string{
	BindingPositionSource, BindingPositionModified,
	BindingNormalInput, BindingNormalOutput,
	BindingTangentInput, BindingTangentOutput,
	BindingTriangleCount,
}

// Stage identifies one pass of the deformation chain.
type Stage int

const (
	StageDissolve Stage = iota
	StageInflate
	StageVoxelize
	StageJitter
	StageDigitize
)

// Stages is the fixed execution order of the chain.
var Stages = [...]Stage{StageDissolve, StageInflate, StageVoxelize, StageJitter, StageDigitize}

type stageInfo struct {
	name               string
	source             string
	trianglesPerThread int
	software           compute.SoftwareKernel
}

var stageTable = map[Stage]stageInfo{
	StageDissolve: {"dissolve", dissolveSource, 1, dissolveKernel},
	StageInflate:  {"inflate", inflateSource, 1, inflateKernel},
	StageVoxelize: {"voxelize", voxelizeSource, 1, voxelizeKernel},
	StageJitter:   {"jitter", jitterSource, 1, jitterKernel},
	StageDigitize: {"digitize", digitizeSource, 2, digitizeKernel},
}

func (s Stage) String() string {
	if info, ok := stageTable[s]; ok {
		return info.name
	}
	return "unknown"
}

// KernelKey returns the unique key of the stage's kernel, e.g. "vacs.dissolve".
func (s Stage) KernelKey() string {
	return "vacs." + s.String()
}

// TrianglesPerThread returns how many triangles one invocation of the stage processes.
func (s Stage) TrianglesPerThread() int {
	if info, ok := stageTable[s]; ok {
		return info.trianglesPerThread
	}
	return 1
}

// Source returns the kernel source of the stage, with both its WGSL and its Go implementation.
//
// Returns:
//   - compute.KernelSource: the loadable kernel source
func (s Stage) Source() compute.KernelSource {
	info := stageTable[s]
	return compute.KernelSource{
		Key:        s.KernelKey(),
		EntryPoint: EntryPoint,
		WGSL:       stageHeaderSource + "\n" + info.source,
		Includes:   Includes(),
		Bindings:   StageBindings,
		Software:   info.software,
	}
}

// ReconstructionSource returns the kernel source of the normal and tangent reconstruction pass.
//
// Returns:
//   - compute.KernelSource: the loadable kernel source
func ReconstructionSource() compute.KernelSource {
	return compute.KernelSource{
		Key:        "vacs.reconstruct",
		EntryPoint: EntryPoint,
		WGSL:       reconstructSource,
		Includes:   Includes(),
		Bindings:   ReconstructionBindings,
		Software:   reconstructKernel,
	}
}

// Includes returns the snippets the kernels of this package pull in with //@vacs:include and
// reference in //@vacs:group declarations.
//
// Returns:
//   - map[shader.AnnotationArg]shader.Include: snippets keyed by annotation argument
func Includes() map[shader.AnnotationArg]shader.Include {
	return map[shader.AnnotationArg]shader.Include{
		"stage_params":       {Source: GPUStageParamsSource, Type: "StageParams"},
		"reconstruct_params": {Source: GPUReconstructParamsSource, Type: "ReconstructParams"},
		"corner_buffer":      {Source: "", Type: "array<vec4<f32>>"},
		"hash":               {Source: hashSource},
		"vector":             {Source: vectorSource},
	}
}
