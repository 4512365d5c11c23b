package renderer

import (
	_ "embed"
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/vacs-go/engine/camera"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// PreviewShaderSource draws deformed corner buffers without a vertex buffer.
//
//go:embed assets/preview.wgsl
var PreviewShaderSource string

// GPUItemParamsSource is the WGSL definition of the ItemParams struct.
//
//go:embed assets/item_params.wgsl
var GPUItemParamsSource string

// Bind groups of the preview pipeline.
const (
	groupCamera = 0
	groupItem   = 1
)

// Bindings within groupItem.
const (
	bindingItemParams = 0
	bindingPositions  = 1
	bindingNormals    = 2
)

// GPUItemParams matches the WGSL ItemParams struct (96 bytes).
type GPUItemParams struct {
	Model         mgl32.Mat4 // offset  0
	Color         mgl32.Vec4 // offset 64
	TriangleCount uint32     // offset 80, padded to 96
}

// gpuItemParamsSize is the uniform size of GPUItemParams including trailing padding.
const gpuItemParamsSize = 96

// Marshal serializes the params into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUItemParams) Marshal() []byte {
	buf := make([]byte, gpuItemParamsSize)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Model[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.Color[i]))
	}
	binary.LittleEndian.PutUint32(buf[80:], g.TriangleCount)
	return buf
}

// previewIncludes are the snippets the preview shader pulls in.
func previewIncludes() map[shader.AnnotationArg]shader.Include {
	return map[shader.AnnotationArg]shader.Include{
		"camera_uniform": {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
		"item_params":    {Source: GPUItemParamsSource, Type: "ItemParams"},
		"corner_buffer":  {Source: "", Type: "array<vec4<f32>>"},
	}
}
