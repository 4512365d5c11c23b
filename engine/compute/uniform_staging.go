package compute

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// uniformStaging hands out copy-source buffers holding the uniform bytes of a single dispatch.
// Queue writes all land before the frame's submission, so writing a kernel's params buffer
// directly would let a later dispatch of the same kernel overwrite an earlier one. Each dispatch
// instead writes its own staging buffer and records a copy into the params buffer right before
// its pass. Buffers are reused once the frame that used them has been submitted.
type uniformStaging struct {
	free map[uint64][]*wgpu.Buffer
	used map[uint64][]*wgpu.Buffer

	create  func(size uint64) (*wgpu.Buffer, error)
	destroy func(buf *wgpu.Buffer)
}

func newUniformStaging(create func(size uint64) (*wgpu.Buffer, error), destroy func(buf *wgpu.Buffer)) *uniformStaging {
	return &uniformStaging{
		free:    make(map[uint64][]*wgpu.Buffer),
		used:    make(map[uint64][]*wgpu.Buffer),
		create:  create,
		destroy: destroy,
	}
}

// acquire returns a staging buffer of size bytes that no other dispatch of the current frame holds.
func (s *uniformStaging) acquire(size uint64) (*wgpu.Buffer, error) {
	var buf *wgpu.Buffer
	if free := s.free[size]; len(free) > 0 {
		buf = free[len(free)-1]
		s.free[size] = free[:len(free)-1]
	} else {
		created, err := s.create(size)
		if err != nil {
			return nil, err
		}
		buf = created
	}
	s.used[size] = append(s.used[size], buf)
	return buf, nil
}

// recycle makes every buffer handed out since the last recycle available again. Call it after
// the frame's submission.
func (s *uniformStaging) recycle() {
	for size, bufs := range s.used {
		s.free[size] = append(s.free[size], bufs...)
		delete(s.used, size)
	}
}

// inUse reports how many buffers the current frame holds.
func (s *uniformStaging) inUse() int {
	n := 0
	for _, bufs := range s.used {
		n += len(bufs)
	}
	return n
}

// release destroys every pooled buffer.
func (s *uniformStaging) release() {
	s.recycle()
	for size, bufs := range s.free {
		for _, buf := range bufs {
			s.destroy(buf)
		}
		delete(s.free, size)
	}
}
