package device

import "sync"

// Event signals completion of work submitted to a queue.
type Event struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewEvent returns an event that is pending until Complete is called.
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// CompletedEvent returns an event that has already finished with err.
func CompletedEvent(err error) *Event {
	e := NewEvent()
	e.Complete(err)
	return e
}

// Complete marks the event finished. Only the first call has an effect.
func (e *Event) Complete(err error) {
	e.once.Do(func() {
		e.err = err
		close(e.done)
	})
}

// Done is closed when the work finished.
func (e *Event) Done() <-chan struct{} { return e.done }

// Wait blocks until the work finished and returns the device-side error, if any.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}
