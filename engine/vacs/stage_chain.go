package vacs

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/effect"
)

// FrameInputs are the per-frame values every effect stage reads besides its buffers.
type FrameInputs struct {
	Parameters Parameters
	Seed       float32
	Time       float32
}

// stageChain is the implementation of the StageChain interface.
type stageChain struct {
	kernels [len(effect.Stages)]compute.Kernel
}

// StageChain runs the five effect stages in their fixed order, ping-ponging the positions
// between the WorkA and WorkB buffers:
//
//	Dissolve: Source -> WorkA
//	Inflate:  WorkA  -> WorkB
//	Voxelize: WorkB  -> WorkA
//	Jitter:   WorkA  -> WorkB
//	Digitize: WorkB  -> WorkA
//
// The deformed positions therefore always end up in WorkA.
type StageChain interface {
	// Encode records one dispatch per stage into the backend's open compute frame.
	//
	// Parameters:
	//   - b: the backend the kernels were loaded on, with a frame in progress
	//   - buffers: allocated buffers
	//   - in: amplitudes, seed and time for this frame
	//
	// Returns:
	//   - error: a binding or dispatch error from the backend
	Encode(b compute.Backend, buffers BufferManager, in FrameInputs) error

	// Output returns the buffer holding the deformed positions after Encode.
	//
	// Parameters:
	//   - buffers: the buffers passed to Encode
	//
	// Returns:
	//   - compute.Buffer: the final position buffer
	Output(buffers BufferManager) compute.Buffer

	// Kernel returns the loaded kernel of one stage.
	//
	// Parameters:
	//   - s: the stage
	//
	// Returns:
	//   - compute.Kernel: the kernel, or nil for an unknown stage
	Kernel(s effect.Stage) compute.Kernel

	// Release releases every stage kernel.
	Release()
}

var _ StageChain = &stageChain{}

// NewStageChain loads the kernel of every stage. A kernel that fails to load is a configuration
// error; kernels loaded before it are released.
//
// Parameters:
//   - b: the backend to load the kernels on
//
// Returns:
//   - StageChain: the chain
//   - error: a load error wrapping compute.ErrKernelInvalid
func NewStageChain(b compute.Backend) (StageChain, error) {
	c := &stageChain{}
	for i, s := range effect.Stages {
		k, err := b.LoadKernel(s.Source())
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("load %s stage: %w", s, err)
		}
		c.kernels[i] = k
	}
	return c, nil
}

// roles returns the input and output position buffers of the stage at position i of the chain.
func roles(buffers BufferManager, i int) (in, out compute.Buffer) {
	switch {
	case i == 0:
		return buffers.PositionSource(), buffers.PositionWorkA()
	case i%2 == 1:
		return buffers.PositionWorkA(), buffers.PositionWorkB()
	default:
		return buffers.PositionWorkB(), buffers.PositionWorkA()
	}
}

func (c *stageChain) Encode(b compute.Backend, buffers BufferManager, in FrameInputs) error {
	triangles := buffers.Geometry().TriangleCount()
	for i, s := range effect.Stages {
		k := c.kernels[i]
		input, output := roles(buffers, i)
		if err := errors.Join(
			k.SetBuffer(effect.BindingPositionSource, buffers.PositionSource()),
			k.SetBuffer(effect.BindingNormalSource, buffers.NormalSource()),
			k.SetBuffer(effect.BindingTangentSource, buffers.TangentSource()),
			k.SetBuffer(effect.BindingPositionInput, input),
			k.SetBuffer(effect.BindingPositionOutput, output),
			k.SetInt(effect.BindingTriangleCount, triangles),
			k.SetFloat(effect.BindingAmplitude, in.Parameters.Amplitude(s)),
			k.SetFloat(effect.BindingRandomSeed, in.Seed),
			k.SetFloat(effect.BindingTime, in.Time),
		); err != nil {
			return fmt.Errorf("bind %s stage: %w", s, err)
		}

		groups := compute.WorkgroupCount(triangles, k.WorkgroupSize()[0], s.TrianglesPerThread())
		if err := b.DispatchCompute(k, [3]uint32{groups, 1, 1}); err != nil {
			return fmt.Errorf("dispatch %s stage: %w", s, err)
		}
	}
	return nil
}

func (c *stageChain) Output(buffers BufferManager) compute.Buffer {
	_, out := roles(buffers, len(effect.Stages)-1)
	return out
}

func (c *stageChain) Kernel(s effect.Stage) compute.Kernel {
	for i, stage := range effect.Stages {
		if stage == s {
			return c.kernels[i]
		}
	}
	return nil
}

func (c *stageChain) Release() {
	for i, k := range c.kernels {
		if k != nil {
			k.Release()
			c.kernels[i] = nil
		}
	}
}
