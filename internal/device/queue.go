package device

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cwbudde/queuebench/internal/kernel"
)

// Queue is a live execution queue bound to one device. A queue accepts
// asynchronous work and reports its completion through an Event.
type Queue interface {
	// ID is a stable label such as "gpu-0", unique within a platform.
	ID() string
	Device() Descriptor
	Submit(k kernel.Kernel, buf []float32) *Event
	Close() error
}

// executor runs one submission on the device.
type executor func(k kernel.Kernel, buf []float32) error

type submission struct {
	kernel kernel.Kernel
	buf    []float32
	event  *Event
}

// inOrderQueue executes submissions one at a time on a dedicated goroutine,
// like an in-order device command queue.
type inOrderQueue struct {
	id     string
	device Descriptor
	exec   executor

	mu      sync.RWMutex
	closed  bool
	work    chan submission
	stopped chan struct{}
	release func() error
}

func newInOrderQueue(id string, d Descriptor, exec executor, release func() error) *inOrderQueue {
	q := &inOrderQueue{
		id:      id,
		device:  d,
		exec:    exec,
		work:    make(chan submission),
		stopped: make(chan struct{}),
		release: release,
	}
	go q.loop()
	return q
}

func (q *inOrderQueue) loop() {
	defer close(q.stopped)
	for s := range q.work {
		s.event.Complete(q.run(s))
	}
}

func (q *inOrderQueue) run(s submission) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kernel %s panicked on %s: %v", s.kernel.Name(), q.id, r)
		}
	}()
	return q.exec(s.kernel, s.buf)
}

func (q *inOrderQueue) ID() string { return q.id }

func (q *inOrderQueue) Device() Descriptor { return q.device }

func (q *inOrderQueue) Submit(k kernel.Kernel, buf []float32) *Event {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return CompletedEvent(fmt.Errorf("%w: %s", ErrQueueClosed, q.id))
	}

	ev := NewEvent()
	q.work <- submission{kernel: k, buf: buf, event: ev}
	return ev
}

// Close waits for pending work and releases device resources. It is safe to
// call more than once.
func (q *inOrderQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()

	<-q.stopped
	if q.release != nil {
		return q.release()
	}
	return nil
}

func queueID(class Class, seq int64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(string(class)), seq)
}
