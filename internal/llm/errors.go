package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTimeout means the backend did not answer in time.
	ErrTimeout = errors.New("llm request timed out")
	// ErrTransport means the request could not be delivered or was rejected.
	ErrTransport = errors.New("llm transport error")
	// ErrMalformedResponse means the backend answered with an unexpected payload.
	ErrMalformedResponse = errors.New("llm returned malformed response")
	// ErrNotConfigured means no backend credentials are available.
	ErrNotConfigured = errors.New("llm backend is not configured")
)

// FailureKind classifies generative backend errors.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureMalformed FailureKind = "malformed"
)

// Classify maps an error returned by a Client or Generator to its failure kind.
// Unknown errors count as transport failures.
func Classify(err error) FailureKind {
	switch {
	case isTimeout(err):
		return FailureTimeout
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	default:
		return FailureTransport
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// wrapRequestError tags a provider call error as a timeout or transport failure.
func wrapRequestError(provider string, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%s: %w: %w", provider, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrTransport, err)
}
