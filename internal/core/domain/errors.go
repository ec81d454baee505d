package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Class buckets provider failures for routing decisions. Only unavailable
// and timeout are transient; everything else surfaces immediately without
// fallback.
type Class string

const (
	ClassConfiguration  Class = "configuration"
	ClassAuthentication Class = "authentication"
	ClassUnavailable    Class = "unavailable"
	ClassTimeout        Class = "timeout"
	ClassUnsupported    Class = "unsupported_operation"
)

// Error is the uniform failure shape shared by every adapter, the probe,
// and the router. Backend, Endpoint and Hint feed the user-visible message
// the external CLI/TUI renders.
type Error struct {
	Class    Class
	Backend  Kind
	Endpoint string
	Message  string
	Hint     string
	Log      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Backend != "" {
		fmt.Fprintf(&b, "%s: ", e.Backend)
	}
	b.WriteString(e.Message)
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " (%s)", e.Endpoint)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, ": %s", e.Hint)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Log }

// Transient reports whether the router may retry the next candidate.
func (e *Error) Transient() bool {
	return e.Class == ClassUnavailable || e.Class == ClassTimeout
}

// ConfigurationError marks a profile unusable as declared. Fatal to that
// profile only.
func ConfigurationError(backend Kind, message, hint string) *Error {
	return &Error{Class: ClassConfiguration, Backend: backend, Message: message, Hint: hint}
}

// AuthenticationError marks a rejected or missing credential. Never retried
// elsewhere automatically.
func AuthenticationError(backend Kind, endpoint, message, hint string) *Error {
	return &Error{Class: ClassAuthentication, Backend: backend, Endpoint: endpoint, Message: message, Hint: hint}
}

// UnavailableError marks an unreachable backend and triggers router fallback.
func UnavailableError(backend Kind, endpoint, message, hint string, err error) *Error {
	return &Error{Class: ClassUnavailable, Backend: backend, Endpoint: endpoint, Message: message, Hint: hint, Log: err}
}

// TimeoutError is the deadline-bounded subtype of unavailable; it falls
// back the same way.
func TimeoutError(backend Kind, endpoint string, after time.Duration, err error) *Error {
	return &Error{
		Class:    ClassTimeout,
		Backend:  backend,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("timed out after %s", after),
		Hint:     "increase the profile timeout or check that the backend is responsive",
		Log:      err,
	}
}

// UnsupportedOperationError marks an operation this backend kind does not
// implement. Surfaced immediately, no fallback.
func UnsupportedOperationError(backend Kind, op string) *Error {
	return &Error{
		Class:   ClassUnsupported,
		Backend: backend,
		Message: fmt.Sprintf("operation %q is not supported", op),
	}
}

// IsTransient reports whether err should advance the router to the next
// candidate rather than surface.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Transient()
}

// Attempt records one failed candidate during a routed call.
type Attempt struct {
	ProfileID string
	Err       error
}

// NoProviderAvailableError is terminal: no candidate, default, or active
// profile could be selected.
type NoProviderAvailableError struct {
	Tags []string
}

func (e *NoProviderAvailableError) Error() string {
	if len(e.Tags) > 0 {
		return fmt.Sprintf("no provider available for tags %v", e.Tags)
	}
	return "no provider available: no active profiles configured"
}

// AllProvidersFailedError is terminal: every candidate failed transiently.
// Attempts preserves the order candidates were tried in.
type AllProvidersFailedError struct {
	Op       string
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.ProfileID, a.Err))
	}
	return fmt.Sprintf("all %d providers failed for %s: %s", len(e.Attempts), e.Op, strings.Join(parts, "; "))
}
