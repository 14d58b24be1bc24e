package transport

import (
	"errors"
	"fmt"
)

// FailureKind classifies a failed request.
type FailureKind int

const (
	// FailureNetwork covers connection-level failures while nominally online.
	FailureNetwork FailureKind = iota
	// FailureTimeout covers requests that exceeded their deadline. Treated
	// exactly like a network failure by the retry path.
	FailureTimeout
	// FailureRejected covers definitive server verdicts (validation errors,
	// conflicts). Never retried automatically.
	FailureRejected
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureTimeout:
		return "timeout"
	case FailureRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RequestError is the typed failure returned across the transport boundary.
type RequestError struct {
	Kind    FailureKind
	Status  int // server status for rejected responses, 0 otherwise
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transport: %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Kind)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewNetwork wraps a connection-level failure.
func NewNetwork(err error) *RequestError {
	return &RequestError{Kind: FailureNetwork, Err: err}
}

// NewTimeout wraps a deadline failure.
func NewTimeout(err error) *RequestError {
	return &RequestError{Kind: FailureTimeout, Err: err}
}

// NewRejected wraps a definitive server rejection.
func NewRejected(status int, message string) *RequestError {
	return &RequestError{Kind: FailureRejected, Status: status, Message: message}
}

// Retryable reports whether err should go down the queue-and-retry path.
// Only an explicit server rejection is terminal; everything else, including
// errors of unknown provenance, is treated as transient because "online but
// the request failed" usually means the connection is flaky, not that the
// server said no.
func Retryable(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind != FailureRejected
	}
	return true
}
