package consent

import "errors"

// Sentinel errors for the consent service layer.
var (
	ErrNotFound     = errors.New("suppression entry not found")
	ErrInvalidToken = errors.New("invalid reactivation token")
)
