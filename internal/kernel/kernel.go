package kernel

import (
	"errors"
	"fmt"
	"strings"
)

// Kernel is an element-wise transformation over a work buffer.
//
// Apply must only touch elements of the slice it is given; devices are free to
// split a buffer into chunks and apply the kernel to each chunk concurrently.
type Kernel interface {
	Name() string
	Apply(buf []float32) error
}

// Source is implemented by kernels that can also be compiled for an OpenCL device.
// The generated kernel takes a single `__global float *` argument.
type Source interface {
	Kernel
	EntryPoint() string
	OpenCLSource() string
}

const (
	// DefaultBufferSize is the number of elements in a task's work buffer.
	DefaultBufferSize = 1000000
	// DefaultIterations is the number of affine updates applied per element.
	DefaultIterations = 1000

	defaultScale  = 1.23
	defaultOffset = 2.34
)

var (
	// ErrUnknownKernel is returned when a name does not match a known kernel.
	ErrUnknownKernel = errors.New("unknown kernel")
	// ErrInjected is the failure reported by Fault.
	ErrInjected = errors.New("injected kernel fault")
)

// NewBuffer allocates a work buffer of n elements filled with the initial pattern.
func NewBuffer(n int) []float32 {
	buf := make([]float32, n)
	Fill(buf)
	return buf
}

// Fill writes the deterministic initial pattern: element i = 1.5 * i.
func Fill(buf []float32) {
	for i := range buf {
		buf[i] = 1.5 * float32(i)
	}
}

// Splittable reports whether a device may apply k to sub-slices of a buffer
// concurrently instead of to the whole buffer in one call.
func Splittable(k Kernel) bool {
	switch k.(type) {
	case *Fault:
		return false
	default:
		return true
	}
}

// Names returns the kernels understood by ByName.
func Names() []string {
	return []string{"affine", "identity"}
}

// ByName constructs a kernel from user input.
func ByName(name string, iterations int) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "affine":
		return NewAffine(iterations), nil
	case "identity", "noop":
		return Identity{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKernel, name)
	}
}
