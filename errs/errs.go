// Package errs provides structured error types and helpers for the riskcore engine.
package errs

import (
	"errors"
	"strings"
)

// Code identifies an engine error category.
type Code string

const (
	// CodeInvalidShape indicates a leg set that does not match the strategy type template.
	CodeInvalidShape Code = "invalid_shape"
	// CodeIllegalTransition indicates a lifecycle event that is not legal in the current state.
	CodeIllegalTransition Code = "illegal_transition"
	// CodeNotFound indicates a missing strategy, order, or record.
	CodeNotFound Code = "not_found"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeConflict indicates a concurrent mutation conflict.
	CodeConflict Code = "conflict"
	// CodeUnavailable indicates a component is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
	// CodeNetwork indicates a transport failure on an external boundary.
	CodeNetwork Code = "network"
	// CodeRejected indicates a request refused by the brokerage boundary.
	CodeRejected Code = "rejected"
)

// E captures structured error information produced across the engine.
type E struct {
	Component string
	Code      Code
	Message   string
	State     string
	Event     string
	Metadata  map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithTransition records the current state and requested event for
// illegal-transition errors.
func WithTransition(state, event string) Option {
	return func(e *E) {
		e.State = strings.TrimSpace(state)
		e.Event = strings.TrimSpace(event)
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithMetadata merges the provided metadata into the error envelope.
func WithMetadata(meta map[string]string) Option {
	return func(e *E) {
		if len(meta) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			e.Metadata[k] = v
		}
	}
}

// Error renders the envelope as component: code: message [state -> event]: cause.
func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 4)
	if e.Component != "" {
		parts = append(parts, e.Component)
	}
	if e.Code != "" {
		parts = append(parts, string(e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.State != "" || e.Event != "" {
		parts = append(parts, e.State+" -> "+e.Event)
	}
	if e.cause != nil {
		parts = append(parts, e.cause.Error())
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf extracts the engine error code from err, walking the unwrap chain.
func CodeOf(err error) (Code, bool) {
	var envelope *E
	if errors.As(err, &envelope) {
		return envelope.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
