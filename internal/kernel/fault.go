package kernel

import (
	"fmt"
	"sync/atomic"
)

// Fault wraps a kernel and fails deterministically on every Every-th invocation.
// Every <= 1 fails every invocation.
type Fault struct {
	Inner Kernel
	Every int64

	calls atomic.Int64
}

// NewFault wraps inner; a nil inner defaults to Identity.
func NewFault(inner Kernel, every int64) *Fault {
	if inner == nil {
		inner = Identity{}
	}
	return &Fault{Inner: inner, Every: every}
}

func (f *Fault) Name() string { return "fault(" + f.Inner.Name() + ")" }

// Apply counts one invocation per call. Fault is never split across chunks
// (see Splittable), so one submission is one invocation.
func (f *Fault) Apply(buf []float32) error {
	n := f.calls.Add(1)
	if f.Every <= 1 || n%f.Every == 0 {
		return fmt.Errorf("%w: invocation %d", ErrInjected, n)
	}
	return f.Inner.Apply(buf)
}

// Calls reports how many times Apply ran.
func (f *Fault) Calls() int64 { return f.calls.Load() }
