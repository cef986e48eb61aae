package delivery

import (
	"errors"
	"fmt"
)

// Failure classifies why a delivery did not succeed
type Failure int

const (
	FailureNone Failure = iota
	FailureTimeout
	FailureTransport
	FailureHTTP
	FailureRetriesExhausted
)

// String returns a string representation of the failure kind
func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureTransport:
		return "transport_error"
	case FailureHTTP:
		return "http_error"
	case FailureRetriesExhausted:
		return "retries_exhausted"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is; every delivery error wraps one of them
var (
	ErrTimeout          = errors.New("timeout")
	ErrTransport        = errors.New("transport error")
	ErrHTTPStatus       = errors.New("http status")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// AttemptError is the failure of a single HTTP attempt
type AttemptError struct {
	Kind   Failure
	Status int
	Cause  error
}

func (e *AttemptError) Error() string {
	switch e.Kind {
	case FailureHTTP:
		return fmt.Sprintf("http status %d", e.Status)
	case FailureTimeout:
		if e.Cause != nil {
			return fmt.Sprintf("timeout: %v", e.Cause)
		}
		return "timeout"
	default:
		if e.Cause != nil {
			return fmt.Sprintf("transport error: %v", e.Cause)
		}
		return "transport error"
	}
}

func (e *AttemptError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *AttemptError) sentinel() error {
	switch e.Kind {
	case FailureTimeout:
		return ErrTimeout
	case FailureHTTP:
		return ErrHTTPStatus
	default:
		return ErrTransport
	}
}

// ExhaustedError is the terminal failure of a delivery sequence; it keeps only the last attempt
type ExhaustedError struct {
	Attempts int
	Last     *AttemptError
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrRetriesExhausted}
	}
	return []error{ErrRetriesExhausted, e.Last}
}

// Classify returns the Failure kind carried by err
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return FailureRetriesExhausted
	}
	var attempt *AttemptError
	if errors.As(err, &attempt) {
		return attempt.Kind
	}
	return FailureTransport
}
