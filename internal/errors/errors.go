// Package errors defines the error types shared across the stencil core:
// graph construction failures, per-template render failures, and the
// per-event wrapping the change reactor reports to its caller.
package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// UnknownVertexError is returned by graph construction when an edge
// references a vertex the caller never seeded. The graph must abort rather
// than carry a dangling edge.
type UnknownVertexError struct {
	Vertex       string
	ReferencedBy string
}

// Error implements the error interface.
func (e *UnknownVertexError) Error() string {
	return fmt.Sprintf("unknown vertex %q referenced by %q", e.Vertex, e.ReferencedBy)
}

// RenderError records a failed render of a single template. The watch
// session keeps running; the failure is surfaced to the caller of the
// reactor for that event.
type RenderError struct {
	Template  string
	Err       error
	Timestamp time.Time
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Template, e.Err)
}

// Unwrap returns the underlying render failure.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// EventError wraps a failure local to a single change notification. Op names
// the stage that failed ("extract", "render", "copy").
type EventError struct {
	Path string
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *EventError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying stage failure.
func (e *EventError) Unwrap() error {
	return e.Err
}

// ErrorCollector accumulates render and general errors across a dispatch
// pass. It is safe for concurrent use by parallel render workers.
type ErrorCollector struct {
	renderErrors []*RenderError
	errors       []error
	mutex        sync.RWMutex
}

// NewErrorCollector creates a new error collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		renderErrors: make([]*RenderError, 0),
		errors:       make([]error, 0),
	}
}

// AddRender records a failed render for the given template.
func (ec *ErrorCollector) AddRender(template string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.renderErrors = append(ec.renderErrors, &RenderError{
		Template:  template,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// AddError records a general error.
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// RenderErrors returns a copy of all recorded render failures.
func (ec *ErrorCollector) RenderErrors() []*RenderError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]*RenderError, len(ec.renderErrors))
	copy(result, ec.renderErrors)
	return result
}

// HasErrors reports whether anything was recorded.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.renderErrors) > 0 || len(ec.errors) > 0
}

// Clear drops all recorded errors.
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.renderErrors = ec.renderErrors[:0]
	ec.errors = ec.errors[:0]
}

// Err joins everything recorded into a single error, or returns nil when
// the collector is empty.
func (ec *ErrorCollector) Err() error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	all := make([]error, 0, len(ec.renderErrors)+len(ec.errors))
	for _, re := range ec.renderErrors {
		all = append(all, re)
	}
	all = append(all, ec.errors...)
	return errors.Join(all...)
}
