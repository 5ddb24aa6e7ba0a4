package types

import "errors"

// Error classes shared across packages. Callers wrap them with %w and
// inspect them with errors.Is.
var (
	// ErrNotFound marks a missing input document, checkpoint or artifact
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks unsupported formats, malformed dictionaries and
	// unreadable or incompatible checkpoint state
	ErrInvalidInput = errors.New("invalid input")

	// ErrConsistencyViolation marks a checkpoint whose recorded input or
	// settings no longer match the current conversion
	ErrConsistencyViolation = errors.New("consistency violation")
)
