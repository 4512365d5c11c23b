package effect

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUStageParamsSource is the canonical WGSL definition of the StageParams struct.
// Matches GPUStageParams layout exactly (16 bytes).
//
//go:embed assets/stage_params.wgsl
var GPUStageParamsSource string

// GPUStageParams is the host mirror of the uniform block every effect stage reads.
// Size: 16 bytes.
type GPUStageParams struct {
	TriangleCount uint32  // offset 0
	Amplitude     float32 // offset 4
	RandomSeed    float32 // offset 8
	Time          float32 // offset 12
}

// Size returns the size of the GPUStageParams struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUStageParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUStageParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUStageParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.TriangleCount)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Amplitude))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.RandomSeed))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Time))
	return buf
}

// GPUReconstructParamsSource is the canonical WGSL definition of the ReconstructParams struct.
//
//go:embed assets/reconstruct_params.wgsl
var GPUReconstructParamsSource string

// GPUReconstructParams is the host mirror of the reconstruction uniform block.
// Size: 4 bytes, padded to 16 in the uniform buffer.
type GPUReconstructParams struct {
	TriangleCount uint32 // offset 0
}

// Size returns the size of the GPUReconstructParams struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUReconstructParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

//go:embed assets/hash.wgsl
var hashSource string

//go:embed assets/vector.wgsl
var vectorSource string

//go:embed assets/stage_header.wgsl
var stageHeaderSource string

//go:embed assets/dissolve.wgsl
var dissolveSource string

//go:embed assets/inflate.wgsl
var inflateSource string

//go:embed assets/voxelize.wgsl
var voxelizeSource string

//go:embed assets/jitter.wgsl
var jitterSource string

//go:embed assets/digitize.wgsl
var digitizeSource string

//go:embed assets/reconstruct.wgsl
var reconstructSource string
