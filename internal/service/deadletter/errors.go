package deadletter

import "errors"

var (
	// ErrNotFound is returned when a dead-letter id does not exist.
	ErrNotFound = errors.New("dead letter item not found")

	// ErrAlreadyResolved is returned when acting on a closed item.
	ErrAlreadyResolved = errors.New("dead letter item already resolved")

	// ErrNotRetryEligible is returned when retrying an item whose
	// failure classification rules out another attempt.
	ErrNotRetryEligible = errors.New("dead letter item is not retry eligible")
)
