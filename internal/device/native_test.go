package device

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/queuebench/internal/kernel"
)

type panicKernel struct{}

func (panicKernel) Name() string { return "panic" }

func (panicKernel) Apply([]float32) error { panic("boom") }

func openNativeCPU(t *testing.T) Queue {
	t.Helper()
	p := NewNativePlatform()
	devices, err := p.Devices()
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	d, err := FirstOfClass(devices, ClassCPU)
	if err != nil {
		t.Fatalf("no native CPU device: %v", err)
	}
	q, err := p.Open(d)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestNativeCPUQueueMatchesHostApply(t *testing.T) {
	q := openNativeCPU(t)
	k := kernel.NewAffine(4)

	got := kernel.NewBuffer(10000)
	want := kernel.NewBuffer(10000)
	if err := k.Apply(want); err != nil {
		t.Fatal(err)
	}

	if err := q.Submit(k, got).Wait(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for i := range want {
		if math.Float32bits(got[i]) != math.Float32bits(want[i]) {
			t.Fatalf("element %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestNativeQueueReportsKernelErrors(t *testing.T) {
	q := openNativeCPU(t)

	err := q.Submit(kernel.NewFault(nil, 1), kernel.NewBuffer(4096)).Wait()
	if !errors.Is(err, kernel.ErrInjected) {
		t.Errorf("expected ErrInjected, got %v", err)
	}

	// A panicking kernel must not take the queue down.
	if err := q.Submit(panicKernel{}, kernel.NewBuffer(4096)).Wait(); err == nil {
		t.Error("expected error from panicking kernel")
	}
	if err := q.Submit(kernel.Identity{}, kernel.NewBuffer(16)).Wait(); err != nil {
		t.Errorf("queue unusable after panic: %v", err)
	}
}

func TestHostQueueAndClose(t *testing.T) {
	p := NewNativePlatform()
	q, err := p.OpenHost()
	if err != nil {
		t.Fatal(err)
	}
	if q.Device().Class != ClassHost {
		t.Errorf("class = %s, want Host", q.Device().Class)
	}

	buf := []float32{1}
	if err := q.Submit(kernel.Affine{Iterations: 1, A: 1, B: 0}, buf).Wait(); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 2 {
		t.Errorf("buf[0] = %f, want 2", buf[0])
	}

	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := q.Submit(kernel.Identity{}, buf).Wait(); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestNativeOpenRejectsForeignDevice(t *testing.T) {
	p := NewNativePlatform()
	_, err := p.Open(Descriptor{Platform: PlatformOpenCL, Class: ClassGPU, Name: "gpu"})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestQueueIDsAreUnique(t *testing.T) {
	p := NewNativePlatform()
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		q, err := p.OpenHost()
		if err != nil {
			t.Fatal(err)
		}
		defer q.Close()
		if seen[q.ID()] {
			t.Fatalf("duplicate queue id %s", q.ID())
		}
		seen[q.ID()] = true
	}
}

func TestParallelApplyChunksAligned(t *testing.T) {
	var lens []int
	rec := recordingKernel{lens: make(chan int, 64)}
	buf := make([]float32, 1000)

	if err := parallelApply(rec, buf, 4); err != nil {
		t.Fatal(err)
	}
	close(rec.lens)

	total := 0
	for n := range rec.lens {
		lens = append(lens, n)
		total += n
	}
	if total != len(buf) {
		t.Errorf("chunks cover %d elements, want %d", total, len(buf))
	}
	if len(lens) > 4 {
		t.Errorf("got %d chunks, want at most 4", len(lens))
	}
}

func TestNewPlatform(t *testing.T) {
	p, err := NewPlatform("")
	if err != nil {
		t.Fatalf("NewPlatform(native) failed: %v", err)
	}
	if p.Name() != PlatformNative {
		t.Errorf("Name = %s, want native", p.Name())
	}
	if _, err := NewPlatform("vulkan"); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("expected ErrUnknownPlatform, got %v", err)
	}
}

type recordingKernel struct {
	lens chan int
}

func (recordingKernel) Name() string { return "recording" }

func (k recordingKernel) Apply(buf []float32) error {
	k.lens <- len(buf)
	return nil
}
