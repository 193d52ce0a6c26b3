package domain

import "time"

// RetryScope is the level at which a retry policy applies. Resolution is
// most-specific-wins: provider beats channel beats global.
type RetryScope string

const (
	RetryScopeGlobal   RetryScope = "global"
	RetryScopeChannel  RetryScope = "channel"
	RetryScopeProvider RetryScope = "provider"
)

// RetryConfig holds the retry/backoff policy for one scope.
type RetryConfig struct {
	ID                string        `json:"id" db:"id"`
	Scope             RetryScope    `json:"scope" db:"scope"`
	ScopeValue        string        `json:"scope_value,omitempty" db:"scope_value"`
	MaxAttempts       int           `json:"max_attempts" db:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay" db:"initial_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier" db:"backoff_multiplier"`
	MaxDelay          time.Duration `json:"max_delay" db:"max_delay"`
	// RetryableFailures lists the failure types that consume a retry
	// instead of dead-lettering immediately. Empty means the default set
	// (every non-permanent type).
	RetryableFailures []FailureType `json:"retryable_failures,omitempty" db:"retryable_failures"`
	RatePerMinute     int           `json:"rate_per_minute,omitempty" db:"rate_per_minute"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// AllowsRetry reports whether this policy retries the given failure type.
// Permanent failures are never retryable regardless of configuration.
func (c *RetryConfig) AllowsRetry(f FailureType) bool {
	if f.Permanent() {
		return false
	}
	if len(c.RetryableFailures) == 0 {
		return true
	}
	for _, rf := range c.RetryableFailures {
		if rf == f {
			return true
		}
	}
	return false
}

// DefaultRetryConfig is the global fallback policy when no row matches.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Scope:             RetryScopeGlobal,
		MaxAttempts:       3,
		InitialDelay:      1 * time.Minute,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Hour,
	}
}
