package retrycfg

import (
	"context"

	"github.com/bellasuite/notify/internal/domain"
)

// Repository is the persistence boundary for scoped retry policies.
type Repository interface {
	// GetByScope returns the policy row for (scope, scopeValue), or nil
	// when none exists.
	GetByScope(ctx context.Context, scope domain.RetryScope, scopeValue string) (*domain.RetryConfig, error)

	// Upsert writes a policy row keyed on (scope, scopeValue).
	Upsert(ctx context.Context, cfg *domain.RetryConfig) error

	List(ctx context.Context) ([]*domain.RetryConfig, error)
}
