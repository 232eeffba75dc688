package dispatch

import (
	"context"
	"sync"
)

// Recorder is a Func factory that records invocation order instead of running
// anything. Tests and the conformance harness use it to assert dispatch order
// and to inject per-handler failures.
type Recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// FailWith makes invocations of name return err.
func (r *Recorder) FailWith(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[CanonicalName(name)] = err
}

// Func returns the recording invoke function.
func (r *Recorder) Func() Func {
	return func(_ context.Context, name string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		return r.fail[CanonicalName(name)]
	}
}

// Calls returns the names invoked so far, in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
