package device

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/cwbudde/queuebench/internal/kernel"
)

const nativeVendor = "The Go Authors"

// cacheLineFloats is the number of float32 values in one cache line. CPU
// chunks start on multiples of it so workers never share a line.
var cacheLineFloats = max(int(unsafe.Sizeof(cpu.CacheLinePad{}))/4, 1)

// NativePlatform runs kernels on goroutines. It exposes one CPU device that
// spreads each submission across all cores, plus the host-fallback queue.
type NativePlatform struct {
	seq atomic.Int64
}

func NewNativePlatform() *NativePlatform {
	return &NativePlatform{}
}

func (p *NativePlatform) Name() string { return PlatformNative }

// Devices returns the CPU device of the current process.
func (p *NativePlatform) Devices() ([]Descriptor, error) {
	return []Descriptor{cpuDescriptor()}, nil
}

func (p *NativePlatform) Open(d Descriptor) (Queue, error) {
	if d.Platform != PlatformNative || d.Class != ClassCPU {
		return nil, fmt.Errorf("%w: %s is not a native CPU device", ErrDeviceUnavailable, d)
	}
	units := int(d.MaxComputeUnits)
	if units < 1 {
		units = 1
	}
	exec := func(k kernel.Kernel, buf []float32) error {
		return parallelApply(k, buf, units)
	}
	return newInOrderQueue(queueID(ClassCPU, p.seq.Add(1)-1), d, exec, nil), nil
}

func (p *NativePlatform) OpenHost() (Queue, error) {
	exec := func(k kernel.Kernel, buf []float32) error {
		return k.Apply(buf)
	}
	return newInOrderQueue(queueID(ClassHost, p.seq.Add(1)-1), HostDescriptor(), exec, nil), nil
}

// HostDescriptor describes the single-threaded host-fallback device.
func HostDescriptor() Descriptor {
	return Descriptor{
		Platform:        PlatformNative,
		Name:            "Host",
		Vendor:          nativeVendor,
		Version:         runtime.Version(),
		Class:           ClassHost,
		Usable:          true,
		MaxComputeUnits: 1,
	}
}

func cpuDescriptor() Descriptor {
	return Descriptor{
		Platform:        PlatformNative,
		Name:            fmt.Sprintf("%s/%s CPU", runtime.GOOS, runtime.GOARCH),
		Vendor:          nativeVendor,
		Version:         runtime.Version(),
		Class:           ClassCPU,
		Usable:          true,
		MaxComputeUnits: uint32(runtime.NumCPU()),
		Extensions:      cpuExtensions(),
	}
}

func cpuExtensions() []string {
	var ext []string
	add := func(ok bool, name string) {
		if ok {
			ext = append(ext, name)
		}
	}
	add(cpu.X86.HasSSE41, "sse4.1")
	add(cpu.X86.HasAVX, "avx")
	add(cpu.X86.HasAVX2, "avx2")
	add(cpu.X86.HasFMA, "fma")
	add(cpu.X86.HasAVX512F, "avx512f")
	add(cpu.ARM64.HasASIMD, "asimd")
	add(cpu.ARM64.HasFPHP, "fphp")
	add(cpu.ARM64.HasSVE, "sve")
	return ext
}

// parallelApply splits buf into at most units cache-line aligned chunks and
// applies k to each concurrently. Kernels that are not splittable run whole.
func parallelApply(k kernel.Kernel, buf []float32, units int) error {
	if units <= 1 || !kernel.Splittable(k) || len(buf) < 2*cacheLineFloats {
		return k.Apply(buf)
	}

	chunk := (len(buf) + units - 1) / units
	if rem := chunk % cacheLineFloats; rem != 0 {
		chunk += cacheLineFloats - rem
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for start := 0; start < len(buf); start += chunk {
		end := min(start+chunk, len(buf))
		wg.Add(1)
		go func(part []float32) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errOnce.Do(func() { firstErr = fmt.Errorf("kernel %s panicked: %v", k.Name(), r) })
				}
			}()
			if err := k.Apply(part); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(buf[start:end])
	}
	wg.Wait()
	return firstErr
}
