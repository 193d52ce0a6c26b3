package queue

import "errors"

var (
	// ErrNotFound is returned when a notification id does not exist.
	ErrNotFound = errors.New("notification not found")

	// ErrInvalidRequest is returned for enqueue inputs that fail
	// structural validation (missing recipient, unknown type). Distinct
	// from business-rule skips, which are not errors.
	ErrInvalidRequest = errors.New("invalid notification request")
)
