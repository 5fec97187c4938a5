package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when an upload contains no data rows
	ErrEmptyDataset = errors.New("dataset contains no rows")

	// ErrNotFound is the sentinel matched by every NotFoundError
	ErrNotFound = errors.New("dataset not found")

	// ErrDuplicateID is returned when a pre-assigned id has already been used
	ErrDuplicateID = errors.New("dataset id already assigned")
)

// ValidationError reports a malformed or missing field in uploaded data
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid field %q", e.Field)
	}
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned for ids that were never assigned or were evicted
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset %d not found", e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold for every NotFoundError
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
