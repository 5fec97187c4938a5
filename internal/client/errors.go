package client

import (
	"errors"
	"fmt"
	"net/http"

	apierrors "chemvis/internal/errors"
	"chemvis/pkg/contracts/domain"
)

// ErrorKind classifies a TransportError
type ErrorKind string

const (
	// KindNetwork means no HTTP response was received
	KindNetwork ErrorKind = "network"
	// KindStatus means the server answered with a non-2xx status
	KindStatus ErrorKind = "status"
	// KindDecode means the response body could not be decoded
	KindDecode ErrorKind = "decode"
)

// TransportError is returned by every Client operation that fails
type TransportError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Problem    *apierrors.ProblemDetails // set when the server sent a problem document
	Err        error

	retryAfter string
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Problem != nil {
			return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Problem.Error())
		}
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets a 404 match domain.ErrNotFound
func (e *TransportError) Is(target error) bool {
	return target == domain.ErrNotFound && e.Kind == KindStatus && e.StatusCode == http.StatusNotFound
}

// Field returns the offending field of a validation problem, or ""
func (e *TransportError) Field() string {
	if e.Problem == nil {
		return ""
	}
	return e.Problem.Extension("field")
}

// Retryable reports whether a GET may be retried after this error
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

// IsNotFound reports whether err means the dataset does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
