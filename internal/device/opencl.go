//go:build opencl

package device

import (
	"errors"
	"fmt"
	"sync/atomic"

	cl "github.com/CyberChainXyz/go-opencl"

	"github.com/cwbudde/queuebench/internal/kernel"
)

// ErrKernelUnsupported is returned when a kernel has no OpenCL source.
var ErrKernelUnsupported = errors.New("kernel has no OpenCL implementation")

type openCLPlatform struct {
	native  *NativePlatform
	devices []*cl.OpenCLDevice
	descs   []Descriptor
	seq     atomic.Int64
}

func newOpenCLPlatform() (Platform, error) {
	info, err := cl.Info()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	p := &openCLPlatform{native: NewNativePlatform()}
	for _, platform := range info.Platforms {
		for _, dev := range platform.Devices {
			p.devices = append(p.devices, dev)
			p.descs = append(p.descs, Descriptor{
				Platform: PlatformOpenCL,
				Name:     dev.Name,
				Vendor:   dev.Vendor,
				Version:  platform.Version,
				Class:    classFromCL(uint64(dev.Device_type)),
				Usable:   true,

				MaxComputeUnits: uint32(dev.Max_compute_units),
			})
		}
	}
	return p, nil
}

func (p *openCLPlatform) Name() string { return PlatformOpenCL }

func (p *openCLPlatform) Devices() ([]Descriptor, error) {
	out := make([]Descriptor, len(p.descs))
	copy(out, p.descs)
	return out, nil
}

func (p *openCLPlatform) Open(d Descriptor) (Queue, error) {
	dev := p.lookup(d)
	if dev == nil {
		return nil, fmt.Errorf("%w: %s not found on opencl platform", ErrDeviceUnavailable, d)
	}

	runner, err := dev.InitRunner()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, d, err)
	}

	q := &openCLQueue{runner: runner, compiled: make(map[string]bool)}
	return newInOrderQueue(queueID(d.Class, p.seq.Add(1)-1), d, q.exec, q.free), nil
}

// OpenHost falls back to the native host queue; OpenCL has no host device.
func (p *openCLPlatform) OpenHost() (Queue, error) {
	return p.native.OpenHost()
}

func (p *openCLPlatform) lookup(d Descriptor) *cl.OpenCLDevice {
	for i, desc := range p.descs {
		if desc.Name == d.Name && desc.Vendor == d.Vendor && desc.Class == d.Class {
			return p.devices[i]
		}
	}
	return nil
}

// openCLQueue is only touched from its inOrderQueue goroutine.
type openCLQueue struct {
	runner   *cl.OpenCLRunner
	compiled map[string]bool
	buffer   *cl.Buffer
	capacity int
}

func (q *openCLQueue) exec(k kernel.Kernel, buf []float32) error {
	src, ok := k.(kernel.Source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrKernelUnsupported, k.Name())
	}
	if len(buf) == 0 {
		return nil
	}

	// Entry points are unique per source, so the program is built once per queue.
	key := src.OpenCLSource()
	if !q.compiled[key] {
		if err := q.runner.CompileKernels([]string{key}, []string{src.EntryPoint()}, ""); err != nil {
			return fmt.Errorf("compile %s: %w", src.EntryPoint(), err)
		}
		q.compiled[key] = true
	}

	size := len(buf) * 4
	if size > q.capacity {
		mem, err := q.runner.CreateEmptyBuffer(cl.READ_WRITE, size)
		if err != nil {
			return fmt.Errorf("allocate device buffer: %w", err)
		}
		if err := q.releaseBuffer(); err != nil {
			return fmt.Errorf("release device buffer: %w", err)
		}
		q.buffer = mem
		q.capacity = size
	}

	if err := cl.WriteBuffer(q.runner, 0, q.buffer, buf, true); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}

	args := []cl.KernelParam{cl.BufferParam(q.buffer)}
	if err := q.runner.RunKernel(src.EntryPoint(), 1, nil, []uint64{uint64(len(buf))}, nil, args, true); err != nil {
		return fmt.Errorf("run %s: %w", src.EntryPoint(), err)
	}

	if err := cl.ReadBuffer(q.runner, 0, q.buffer, buf); err != nil {
		return fmt.Errorf("read buffer: %w", err)
	}
	return nil
}

// releaseBuffer frees the current device buffer and drops it from the
// runner's list, which Free would otherwise release a second time.
func (q *openCLQueue) releaseBuffer() error {
	if q.buffer == nil {
		return nil
	}
	old := q.buffer
	q.buffer, q.capacity = nil, 0

	kept := q.runner.Buffers[:0]
	for _, b := range q.runner.Buffers {
		if b != old {
			kept = append(kept, b)
		}
	}
	q.runner.Buffers = kept
	return q.runner.ReleaseBuffer(old)
}

func (q *openCLQueue) free() error {
	return q.runner.Free()
}
