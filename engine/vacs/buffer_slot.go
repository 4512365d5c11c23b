package vacs

import "github.com/Carmen-Shannon/vacs-go/engine/compute"

// slotState is the allocation state of a bufferSlot.
type slotState int

const (
	slotUnallocated slotState = iota
	slotAllocated
)

// bufferSlot owns at most one buffer. The only transitions are allocate (Unallocated to
// Allocated) and release (Allocated to Unallocated); each is a no-op from the other state.
type bufferSlot struct {
	name   string
	state  slotState
	buffer compute.Buffer
}

// allocate creates the slot's buffer if it has none.
//
// Parameters:
//   - create: the allocation, called only when the slot is unallocated
//
// Returns:
//   - bool: true if a buffer was created
//   - error: the allocation error; the slot stays unallocated
func (s *bufferSlot) allocate(create func() (compute.Buffer, error)) (bool, error) {
	if s.state == slotAllocated {
		return false, nil
	}
	buf, err := create()
	if err != nil {
		return false, err
	}
	s.buffer, s.state = buf, slotAllocated
	return true, nil
}

// release frees the slot's buffer if it has one and reports whether it did.
func (s *bufferSlot) release() bool {
	if s.state == slotUnallocated {
		return false
	}
	s.buffer.Release()
	s.buffer, s.state = nil, slotUnallocated
	return true
}

// get returns the buffer, or nil when unallocated.
func (s *bufferSlot) get() compute.Buffer {
	if s.state == slotUnallocated {
		return nil
	}
	return s.buffer
}
