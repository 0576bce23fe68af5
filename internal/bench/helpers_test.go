package bench

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/cwbudde/queuebench/internal/device"
	"github.com/cwbudde/queuebench/internal/kernel"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// checkedQueue runs kernels asynchronously and counts overlapping submissions.
type checkedQueue struct {
	id         string
	class      device.Class
	busy       atomic.Int32
	violations *atomic.Int64
	submits    atomic.Int64
	closed     atomic.Bool
}

func (q *checkedQueue) ID() string { return q.id }

func (q *checkedQueue) Device() device.Descriptor {
	return device.Descriptor{Platform: "fake", Name: q.id, Vendor: "Fake", Class: q.class, Usable: true}
}

func (q *checkedQueue) Submit(k kernel.Kernel, buf []float32) *device.Event {
	q.submits.Add(1)
	if q.busy.Add(1) != 1 {
		q.violations.Add(1)
	}
	ev := device.NewEvent()
	go func() {
		runtime.Gosched()
		err := k.Apply(buf)
		q.busy.Add(-1)
		ev.Complete(err)
	}()
	return ev
}

func (q *checkedQueue) Close() error {
	q.closed.Store(true)
	return nil
}

// fakePlatform exposes one GPU, one NVIDIA GPU and one CPU. Devices named in
// broken fail to open.
type fakePlatform struct {
	broken     map[device.Class]bool
	violations atomic.Int64
	opened     []*checkedQueue
}

func (p *fakePlatform) Name() string { return "fake" }

func (p *fakePlatform) Devices() ([]device.Descriptor, error) {
	return []device.Descriptor{
		{Platform: "fake", Name: "nv", Vendor: "NVIDIA Corporation", Class: device.ClassGPU, Usable: true},
		{Platform: "fake", Name: "gpu", Vendor: "AMD", Class: device.ClassGPU, Usable: true},
		{Platform: "fake", Name: "cpu", Vendor: "Intel", Class: device.ClassCPU, Usable: true},
	}, nil
}

func (p *fakePlatform) Open(d device.Descriptor) (device.Queue, error) {
	if p.broken[d.Class] {
		return nil, fmt.Errorf("%w: %s is broken", device.ErrDeviceUnavailable, d.Name)
	}
	return p.newQueue(d.Class), nil
}

func (p *fakePlatform) OpenHost() (device.Queue, error) {
	return p.newQueue(device.ClassHost), nil
}

func (p *fakePlatform) newQueue(class device.Class) *checkedQueue {
	q := &checkedQueue{
		id:         fmt.Sprintf("%s-%d", class, len(p.opened)),
		class:      class,
		violations: &p.violations,
	}
	p.opened = append(p.opened, q)
	return q
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Kernel = "identity"
	cfg.BufferSize = 64
	cfg.Iterations = 1
	cfg.ProgressInterval = 0
	return cfg
}
