package compute

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/renderer/shader"
)

// defaultEntryPoint is used when a KernelSource leaves EntryPoint empty.
const defaultEntryPoint = "Main"

type bindingKey struct {
	group, binding int
}

// kernelState is the backend independent half of a kernel: the parsed shader, the buffers bound
// by name and the staged bytes of every uniform struct.
type kernelState struct {
	src      KernelSource
	shader   shader.Shader
	buffers  map[string]Buffer
	params   map[bindingKey][]byte
	released bool
}

// newKernelState parses src and checks that its entry point and requested binding names exist.
func newKernelState(src KernelSource, validate bool) (*kernelState, error) {
	if src.Key == "" {
		return nil, fmt.Errorf("%w: kernel source has no key", ErrKernelInvalid)
	}
	want := common.Coalesce(src.EntryPoint, defaultEntryPoint)

	s, err := shader.NewShader(src.Key, shader.ShaderTypeCompute, src.WGSL,
		shader.WithIncludes(src.Includes),
		shader.WithValidation(validate),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKernelInvalid, err)
	}
	if s.EntryPoint() != want {
		return nil, fmt.Errorf("%w: %s declares entry point %q, want %q: %w", ErrKernelInvalid, src.Key, s.EntryPoint(), want, ErrEntryPointMismatch)
	}

	for _, name := range src.Bindings {
		_, isBuffer := s.Binding(name)
		_, isField := s.UniformField(name)
		if !isBuffer && !isField {
			return nil, fmt.Errorf("%w: %s: %q: %w", ErrKernelInvalid, src.Key, name, ErrUnknownBinding)
		}
	}

	k := &kernelState{
		src:     src,
		shader:  s,
		buffers: make(map[string]Buffer),
		params:  make(map[bindingKey][]byte),
	}
	for _, b := range s.Bindings() {
		if b.Kind == shader.BindingKindUniform {
			k.params[bindingKey{b.Group, b.Binding}] = make([]byte, max(16, alignTo16(b.MinSize)))
		}
	}
	return k, nil
}

func alignTo16(n uint64) uint64 {
	return (n + 15) &^ 15
}

func (k *kernelState) setBuffer(name string, b Buffer) error {
	if k.released {
		return fmt.Errorf("kernel %s: %w", k.src.Key, ErrReleased)
	}
	binding, ok := k.shader.Binding(name)
	if !ok || binding.Kind == shader.BindingKindUniform {
		return fmt.Errorf("kernel %s: buffer %q: %w", k.src.Key, name, ErrUnknownBinding)
	}
	if b == nil || b.Released() {
		return fmt.Errorf("kernel %s: buffer %q: %w", k.src.Key, name, ErrReleased)
	}
	k.buffers[name] = b
	return nil
}

func (k *kernelState) field(name string) (shader.UniformField, []byte, error) {
	if k.released {
		return shader.UniformField{}, nil, fmt.Errorf("kernel %s: %w", k.src.Key, ErrReleased)
	}
	f, ok := k.shader.UniformField(name)
	if !ok {
		return shader.UniformField{}, nil, fmt.Errorf("kernel %s: scalar %q: %w", k.src.Key, name, ErrUnknownBinding)
	}
	return f, k.params[bindingKey{f.Group, f.Binding}], nil
}

func (k *kernelState) setInt(name string, v int) error {
	f, block, err := k.field(name)
	if err != nil {
		return err
	}
	switch f.Type {
	case "u32":
		if v < 0 || uint64(v) > math.MaxUint32 {
			return fmt.Errorf("kernel %s: %q value %d out of range for u32: %w", k.src.Key, name, v, ErrBindingType)
		}
		binary.LittleEndian.PutUint32(block[f.Offset:], uint32(v))
	case "i32":
		if int64(v) < math.MinInt32 || int64(v) > math.MaxInt32 {
			return fmt.Errorf("kernel %s: %q value %d out of range for i32: %w", k.src.Key, name, v, ErrBindingType)
		}
		binary.LittleEndian.PutUint32(block[f.Offset:], uint32(int32(v)))
	default:
		return fmt.Errorf("kernel %s: %q is %s, not an integer: %w", k.src.Key, name, f.Type, ErrBindingType)
	}
	return nil
}

func (k *kernelState) setFloat(name string, v float32) error {
	f, block, err := k.field(name)
	if err != nil {
		return err
	}
	if f.Type != "f32" {
		return fmt.Errorf("kernel %s: %q is %s, not f32: %w", k.src.Key, name, f.Type, ErrBindingType)
	}
	binary.LittleEndian.PutUint32(block[f.Offset:], math.Float32bits(v))
	return nil
}

// checkBound returns an error naming every storage binding that has no live buffer.
func (k *kernelState) checkBound() error {
	if k.released {
		return fmt.Errorf("kernel %s: %w", k.src.Key, ErrReleased)
	}
	var missing []string
	for name, b := range k.shader.Bindings() {
		if b.Kind == shader.BindingKindUniform {
			continue
		}
		buf, ok := k.buffers[name]
		if !ok || buf.Released() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("kernel %s: %v: %w", k.src.Key, missing, ErrUnboundBinding)
	}
	return nil
}

// Invocation is the view a SoftwareKernel has of one kernel invocation.
type Invocation struct {
	// GlobalID matches @builtin(global_invocation_id).
	GlobalID [3]uint32

	snapshot *bindingSnapshot
}

// bindingSnapshot captures buffer contents by reference and uniform bytes by value at dispatch time.
type bindingSnapshot struct {
	shader  shader.Shader
	buffers map[string][]Element
	params  map[bindingKey][]byte
}

// Buffer returns the storage buffer bound under name. Writes go straight to the buffer.
func (i Invocation) Buffer(name string) []Element {
	return i.snapshot.buffers[name]
}

// Int returns an integer uniform member, or 0 if the name is unknown.
func (i Invocation) Int(name string) int {
	f, ok := i.snapshot.shader.UniformField(name)
	if !ok {
		return 0
	}
	raw := binary.LittleEndian.Uint32(i.snapshot.params[bindingKey{f.Group, f.Binding}][f.Offset:])
	if f.Type == "i32" {
		return int(int32(raw))
	}
	return int(raw)
}

// Float returns an f32 uniform member, or 0 if the name is unknown.
func (i Invocation) Float(name string) float32 {
	f, ok := i.snapshot.shader.UniformField(name)
	if !ok {
		return 0
	}
	raw := binary.LittleEndian.Uint32(i.snapshot.params[bindingKey{f.Group, f.Binding}][f.Offset:])
	return math.Float32frombits(raw)
}
