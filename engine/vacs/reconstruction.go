package vacs

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/effect"
)

// reconstruction is the implementation of the Reconstruction interface.
type reconstruction struct {
	kernel compute.Kernel
}

// Reconstruction recomputes the output normals and tangents from the source attributes and the
// difference between the source and the deformed triangles. Each corner's source normal and
// tangent is rotated by the rotation taking the source face normal onto the deformed one, so an
// undeformed triangle keeps its source attributes exactly.
type Reconstruction interface {
	// Encode records the reconstruction dispatch into the backend's open compute frame.
	//
	// Parameters:
	//   - b: the backend the kernel was loaded on, with a frame in progress
	//   - buffers: allocated buffers
	//   - deformed: the final position buffer of the stage chain
	//
	// Returns:
	//   - error: a binding or dispatch error from the backend
	Encode(b compute.Backend, buffers BufferManager, deformed compute.Buffer) error

	// Kernel returns the loaded reconstruction kernel.
	Kernel() compute.Kernel

	// Release releases the kernel.
	Release()
}

var _ Reconstruction = &reconstruction{}

// NewReconstruction loads the reconstruction kernel.
//
// Parameters:
//   - b: the backend to load the kernel on
//
// Returns:
//   - Reconstruction: the stage
//   - error: a load error wrapping compute.ErrKernelInvalid
func NewReconstruction(b compute.Backend) (Reconstruction, error) {
	k, err := b.LoadKernel(effect.ReconstructionSource())
	if err != nil {
		return nil, fmt.Errorf("load reconstruction: %w", err)
	}
	return &reconstruction{kernel: k}, nil
}

func (r *reconstruction) Encode(b compute.Backend, buffers BufferManager, deformed compute.Buffer) error {
	triangles := buffers.Geometry().TriangleCount()
	if err := errors.Join(
		r.kernel.SetBuffer(effect.BindingPositionSource, buffers.PositionSource()),
		r.kernel.SetBuffer(effect.BindingPositionModified, deformed),
		r.kernel.SetBuffer(effect.BindingNormalInput, buffers.NormalSource()),
		r.kernel.SetBuffer(effect.BindingNormalOutput, buffers.NormalOutput()),
		r.kernel.SetBuffer(effect.BindingTangentInput, buffers.TangentSource()),
		r.kernel.SetBuffer(effect.BindingTangentOutput, buffers.TangentOutput()),
		r.kernel.SetInt(effect.BindingTriangleCount, triangles),
	); err != nil {
		return fmt.Errorf("bind reconstruction: %w", err)
	}

	groups := compute.WorkgroupCount(triangles, r.kernel.WorkgroupSize()[0], 1)
	if err := b.DispatchCompute(r.kernel, [3]uint32{groups, 1, 1}); err != nil {
		return fmt.Errorf("dispatch reconstruction: %w", err)
	}
	return nil
}

func (r *reconstruction) Kernel() compute.Kernel {
	return r.kernel
}

func (r *reconstruction) Release() {
	if r.kernel != nil {
		r.kernel.Release()
		r.kernel = nil
	}
}
