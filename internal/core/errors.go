package core

import "errors"

// Sentinel errors returned (wrapped) by the services. Callers use errors.Is.
var (
	// ErrValidation marks bad input such as an empty title or an unknown status.
	// Validation failures are reported immediately and never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
)
