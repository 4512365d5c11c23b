package vacs

import (
	"fmt"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/compute"
	"github.com/Carmen-Shannon/vacs-go/engine/geometry"
)

// bufferManager is the implementation of the BufferManager interface.
type bufferManager struct {
	label    string
	backend  compute.Backend
	geometry geometry.Geometry

	positionSource bufferSlot
	positionWorkA  bufferSlot
	positionWorkB  bufferSlot
	normalSource   bufferSlot
	normalOutput   bufferSlot
	tangentSource  bufferSlot
	tangentOutput  bufferSlot
}

// BufferManager owns every buffer the pipeline dispatches over: the source, WorkA and WorkB
// position buffers and a source and output buffer each for normals and tangents. Buffers are
// allocated lazily from the assigned geometry and released together. While allocated their
// identities and sizes never change; only the roles of WorkA and WorkB alternate between stages.
type BufferManager interface {
	// EnsureBuffers allocates every buffer that is not allocated yet. It is a no-op when all
	// buffers exist. On failure the buffers created so far stay allocated until ReleaseBuffers.
	//
	// Returns:
	//   - error: ErrNoGeometry, or an allocation error wrapping compute.ErrBufferAllocation
	EnsureBuffers() error

	// ReleaseBuffers releases every allocated buffer. Safe to call when nothing is allocated.
	ReleaseBuffers()

	// Geometry returns the geometry buffers are allocated from.
	//
	// Returns:
	//   - geometry.Geometry: the geometry or nil
	Geometry() geometry.Geometry

	// SetGeometry assigns the geometry. Assigning a different geometry releases the current buffers.
	//
	// Parameters:
	//   - g: the geometry or nil
	SetGeometry(g geometry.Geometry)

	// Allocated reports whether every buffer is allocated.
	//
	// Returns:
	//   - bool: true if all buffers exist
	Allocated() bool

	// AllocatedCount returns how many buffers are currently allocated.
	//
	// Returns:
	//   - int: between 0 and 7
	AllocatedCount() int

	// PositionSource returns the source position buffer, or nil when unallocated.
	PositionSource() compute.Buffer
	// PositionWorkA returns the first working position buffer, or nil when unallocated.
	PositionWorkA() compute.Buffer
	// PositionWorkB returns the second working position buffer, or nil when unallocated.
	PositionWorkB() compute.Buffer
	// NormalSource returns the source normal buffer, or nil when unallocated.
	NormalSource() compute.Buffer
	// NormalOutput returns the reconstructed normal buffer, or nil when unallocated.
	NormalOutput() compute.Buffer
	// TangentSource returns the source tangent buffer, or nil when unallocated.
	TangentSource() compute.Buffer
	// TangentOutput returns the reconstructed tangent buffer, or nil when unallocated.
	TangentOutput() compute.Buffer
}

var _ BufferManager = &bufferManager{}

// NewBufferManager creates a BufferManager with nothing allocated.
//
// Parameters:
//   - label: prefix for buffer debug labels
//   - b: the backend buffers are created on
//   - g: the geometry, may be nil and assigned later
//
// Returns:
//   - BufferManager: the manager
func NewBufferManager(label string, b compute.Backend, g geometry.Geometry) BufferManager {
	m := &bufferManager{
		label:    label,
		backend:  b,
		geometry: g,
	}
	m.positionSource.name = "position.source"
	m.positionWorkA.name = "position.a"
	m.positionWorkB.name = "position.b"
	m.normalSource.name = "normal.source"
	m.normalOutput.name = "normal.output"
	m.tangentSource.name = "tangent.source"
	m.tangentOutput.name = "tangent.output"
	return m
}

func (m *bufferManager) slots() []*bufferSlot {
	return []*bufferSlot{
		&m.positionSource, &m.positionWorkA, &m.positionWorkB,
		&m.normalSource, &m.normalOutput,
		&m.tangentSource, &m.tangentOutput,
	}
}

func (m *bufferManager) EnsureBuffers() error {
	g := m.geometry
	if g == nil {
		return ErrNoGeometry
	}

	create := map[*bufferSlot]func(compute.Backend, string) (compute.Buffer, error){
		&m.positionSource: g.CreatePositionBuffer,
		&m.positionWorkA:  g.CreatePositionBuffer,
		&m.positionWorkB:  g.CreatePositionBuffer,
		&m.normalSource:   g.CreateNormalBuffer,
		&m.normalOutput:   g.CreateNormalBuffer,
		&m.tangentSource:  g.CreateTangentBuffer,
		&m.tangentOutput:  g.CreateTangentBuffer,
	}

	created := 0
	for _, slot := range m.slots() {
		label := m.label + "." + slot.name
		ok, err := slot.allocate(func() (compute.Buffer, error) {
			return create[slot](m.backend, label)
		})
		if err != nil {
			return fmt.Errorf("allocate %s: %w", label, err)
		}
		if ok {
			created++
		}
	}
	if created > 0 {
		common.Logger().Debug("allocated buffers", "owner", m.label, "count", created, "triangles", g.TriangleCount())
	}
	return nil
}

func (m *bufferManager) ReleaseBuffers() {
	released := 0
	for _, slot := range m.slots() {
		if slot.release() {
			released++
		}
	}
	if released > 0 {
		common.Logger().Debug("released buffers", "owner", m.label, "count", released)
	}
}

func (m *bufferManager) Geometry() geometry.Geometry {
	return m.geometry
}

func (m *bufferManager) SetGeometry(g geometry.Geometry) {
	if g == m.geometry {
		return
	}
	m.ReleaseBuffers()
	m.geometry = g
}

func (m *bufferManager) Allocated() bool {
	return m.AllocatedCount() == len(m.slots())
}

func (m *bufferManager) AllocatedCount() int {
	n := 0
	for _, slot := range m.slots() {
		if slot.state == slotAllocated {
			n++
		}
	}
	return n
}

func (m *bufferManager) PositionSource() compute.Buffer {
	return m.positionSource.get()
}

func (m *bufferManager) PositionWorkA() compute.Buffer {
	return m.positionWorkA.get()
}

func (m *bufferManager) PositionWorkB() compute.Buffer {
	return m.positionWorkB.get()
}

func (m *bufferManager) NormalSource() compute.Buffer {
	return m.normalSource.get()
}

func (m *bufferManager) NormalOutput() compute.Buffer {
	return m.normalOutput.get()
}

func (m *bufferManager) TangentSource() compute.Buffer {
	return m.tangentSource.get()
}

func (m *bufferManager) TangentOutput() compute.Buffer {
	return m.tangentOutput.get()
}
