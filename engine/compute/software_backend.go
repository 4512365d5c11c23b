package compute

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/vacs-go/common"
)

// softwareBackend runs kernels on the CPU. Dispatches are recorded during a frame and executed in
// order at EndComputeFrame; the workgroups of one dispatch run in parallel on a worker pool and
// the next dispatch starts only after all of them have finished.
type softwareBackend struct {
	mu *sync.Mutex

	workers  int
	pool     worker.DynamicWorkerPool
	validate bool

	inFrame  bool
	commands []softwareCommand
	stats    Stats
}

type softwareCommand struct {
	kernel     *softwareKernel
	workgroups [3]uint32
	snapshot   *bindingSnapshot
}

type softwareBuffer struct {
	owner    *softwareBackend
	label    string
	data     []Element
	released atomic.Bool
}

type softwareKernel struct {
	*kernelState
	owner *softwareBackend
}

var (
	_ Backend = &softwareBackend{}
	_ Buffer  = &softwareBuffer{}
	_ Kernel  = &softwareKernel{}
)

// NewSoftwareBackend creates a CPU backend. Workgroups are spread over a dynamic worker pool
// sized by WithWorkers, defaulting to the number of CPUs. With one worker, dispatches run inline.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Backend: the software backend
func NewSoftwareBackend(options ...SoftwareBackendBuilderOption) Backend {
	b := &softwareBackend{
		mu:      &sync.Mutex{},
		workers: runtime.NumCPU(),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.workers > 1 {
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
	}
	common.LogDebug("software compute backend ready with %d workers", b.workers)
	return b
}

func (b *softwareBackend) Type() BackendType {
	return BackendTypeSoftware
}

func (b *softwareBackend) CreateBuffer(label string, data []Element) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := &softwareBuffer{
		owner: b,
		label: label,
		data:  make([]Element, len(data)),
	}
	copy(buf.data, data)
	b.stats.BuffersCreated++
	return buf, nil
}

func (b *softwareBackend) LoadKernel(src KernelSource) (Kernel, error) {
	if src.Software == nil {
		return nil, fmt.Errorf("%w: %s has no software implementation", ErrKernelInvalid, src.Key)
	}
	state, err := newKernelState(src, b.validate)
	if err != nil {
		return nil, err
	}
	return &softwareKernel{kernelState: state, owner: b}, nil
}

func (b *softwareBackend) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inFrame {
		return ErrFrameInProgress
	}
	b.inFrame = true
	b.commands = b.commands[:0]
	return nil
}

func (b *softwareBackend) DispatchCompute(k Kernel, workgroups [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inFrame {
		return ErrNoFrame
	}
	sk, ok := k.(*softwareKernel)
	if !ok || sk.owner != b {
		return fmt.Errorf("kernel %s: %w", k.Key(), ErrForeignResource)
	}
	if err := sk.checkBound(); err != nil {
		return err
	}
	if workgroups[0] == 0 || workgroups[1] == 0 || workgroups[2] == 0 {
		return nil
	}

	snap := &bindingSnapshot{
		shader:  sk.shader,
		buffers: make(map[string][]Element, len(sk.buffers)),
		params:  make(map[bindingKey][]byte, len(sk.params)),
	}
	for name, buf := range sk.buffers {
		swBuf, ok := buf.(*softwareBuffer)
		if !ok || swBuf.owner != b {
			return fmt.Errorf("kernel %s: buffer %q: %w", sk.Key(), name, ErrForeignResource)
		}
		snap.buffers[name] = swBuf.data
	}
	for key, block := range sk.params {
		snap.params[key] = append([]byte(nil), block...)
	}

	b.commands = append(b.commands, softwareCommand{kernel: sk, workgroups: workgroups, snapshot: snap})
	b.stats.Dispatches++
	return nil
}

func (b *softwareBackend) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inFrame {
		return ErrNoFrame
	}
	for _, cmd := range b.commands {
		b.execute(cmd)
	}
	b.commands = b.commands[:0]
	b.inFrame = false
	b.stats.Frames++
	return nil
}

// execute runs every workgroup of cmd and returns once all have finished.
func (b *softwareBackend) execute(cmd softwareCommand) {
	size := cmd.kernel.shader.WorkgroupSize()
	run := func(gx, gy, gz uint32) {
		for lz := range size[2] {
			for ly := range size[1] {
				for lx := range size[0] {
					cmd.kernel.src.Software(Invocation{
						GlobalID: [3]uint32{gx*size[0] + lx, gy*size[1] + ly, gz*size[2] + lz},
						snapshot: cmd.snapshot,
					})
				}
			}
		}
	}

	if b.pool == nil {
		for gz := range cmd.workgroups[2] {
			for gy := range cmd.workgroups[1] {
				for gx := range cmd.workgroups[0] {
					run(gx, gy, gz)
				}
			}
		}
		return
	}

	// The pool's own Wait blocks until workers idle out, so a WaitGroup is the per-dispatch barrier.
	var wg sync.WaitGroup
	taskID := 0
	for gz := range cmd.workgroups[2] {
		for gy := range cmd.workgroups[1] {
			for gx := range cmd.workgroups[0] {
				wg.Add(1)
				x, y, z := gx, gy, gz
				b.pool.SubmitTask(worker.Task{
					ID: taskID,
					Do: func() (any, error) {
						defer wg.Done()
						run(x, y, z)
						return nil, nil
					},
				})
				taskID++
			}
		}
	}
	wg.Wait()
}

func (b *softwareBackend) ReadBuffer(buf Buffer) ([]Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	swBuf, ok := buf.(*softwareBuffer)
	if !ok || swBuf.owner != b {
		return nil, ErrForeignResource
	}
	if swBuf.released.Load() {
		return nil, fmt.Errorf("buffer %s: %w", swBuf.label, ErrReleased)
	}
	out := make([]Element, len(swBuf.data))
	copy(out, swBuf.data)
	return out, nil
}

func (b *softwareBackend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Release drops pending commands. Pool workers exit on their own once idle.
func (b *softwareBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = nil
	b.inFrame = false
}

func (s *softwareBuffer) Label() string {
	return s.label
}

func (s *softwareBuffer) Len() int {
	return len(s.data)
}

func (s *softwareBuffer) Released() bool {
	return s.released.Load()
}

func (s *softwareBuffer) Release() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	s.data = nil
	s.owner.stats.BuffersReleased++
}

func (k *softwareKernel) Key() string {
	return k.src.Key
}

func (k *softwareKernel) EntryPoint() string {
	return k.shader.EntryPoint()
}

func (k *softwareKernel) WorkgroupSize() [3]uint32 {
	return k.shader.WorkgroupSize()
}

func (k *softwareKernel) SetBuffer(name string, b Buffer) error {
	if swBuf, ok := b.(*softwareBuffer); !ok || swBuf.owner != k.owner {
		return fmt.Errorf("kernel %s: buffer %q: %w", k.src.Key, name, ErrForeignResource)
	}
	return k.setBuffer(name, b)
}

func (k *softwareKernel) SetInt(name string, v int) error {
	return k.setInt(name, v)
}

func (k *softwareKernel) SetFloat(name string, v float32) error {
	return k.setFloat(name, v)
}

func (k *softwareKernel) Release() {
	k.released = true
	k.buffers = map[string]Buffer{}
}
