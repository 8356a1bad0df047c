package errors

import (
	"sync"
)

// Report accumulates the non-fatal warnings and the fatal errors raised while
// processing one input, so that callers can log every problem before giving up.
type Report struct {
	mu       sync.Mutex
	warnings []error
	errs     []error
}

// NewReport returns an empty Report.
func NewReport() *Report {
	return &Report{}
}

// Warn records w and dispatches it through the package warning handler.
func (r *Report) Warn(w error) {
	if w == nil {
		return
	}
	r.mu.Lock()
	r.warnings = append(r.warnings, w)
	r.mu.Unlock()
	Warn(w)
}

// Fail records a fatal error.
func (r *Report) Fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// Warnings returns the recorded warnings in the order they were raised.
func (r *Report) Warnings() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Errors returns the recorded fatal errors in the order they were raised.
func (r *Report) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// HasErrors reports whether any fatal error was recorded.
func (r *Report) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs) > 0
}

// Err joins every recorded fatal error, or returns nil.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return Join(r.errs...)
}

// Merge appends the warnings and errors of other to r without re-dispatching them.
func (r *Report) Merge(other *Report) {
	if other == nil || other == r {
		return
	}
	w, e := other.Warnings(), other.Errors()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w...)
	r.errs = append(r.errs, e...)
}
