package retrycfg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/domain"
)

// Resolver picks the retry policy for a notification.
type Resolver struct {
	repo     Repository
	fallback domain.RetryConfig
}

// NewResolver builds a Resolver. fallback is the configured global
// policy used when no database row matches; it is normalized so the
// queue never sees a zero MaxAttempts or multiplier.
func NewResolver(repo Repository, fallback domain.RetryConfig) *Resolver {
	def := domain.DefaultRetryConfig()
	if fallback.MaxAttempts <= 0 {
		fallback.MaxAttempts = def.MaxAttempts
	}
	if fallback.InitialDelay <= 0 {
		fallback.InitialDelay = def.InitialDelay
	}
	if fallback.BackoffMultiplier < 1 {
		fallback.BackoffMultiplier = def.BackoffMultiplier
	}
	if fallback.MaxDelay <= 0 {
		fallback.MaxDelay = def.MaxDelay
	}
	return &Resolver{repo: repo, fallback: fallback}
}

// Resolve returns the policy for the given channel and provider,
// most-specific scope first. A repository failure on one scope falls
// through to the next rather than stalling the queue; the configured
// global policy is always available as the last resort.
func (r *Resolver) Resolve(ctx context.Context, channel domain.Channel, provider string) domain.RetryConfig {
	if provider != "" {
		if cfg, err := r.repo.GetByScope(ctx, domain.RetryScopeProvider, provider); err == nil && cfg != nil {
			return *cfg
		}
	}
	if channel != "" {
		if cfg, err := r.repo.GetByScope(ctx, domain.RetryScopeChannel, string(channel)); err == nil && cfg != nil {
			return *cfg
		}
	}
	if cfg, err := r.repo.GetByScope(ctx, domain.RetryScopeGlobal, ""); err == nil && cfg != nil {
		return *cfg
	}
	return r.fallback
}

// Update validates and stores a policy override for the admin API.
func (r *Resolver) Update(ctx context.Context, cfg *domain.RetryConfig) error {
	switch cfg.Scope {
	case domain.RetryScopeGlobal:
		cfg.ScopeValue = ""
	case domain.RetryScopeChannel, domain.RetryScopeProvider:
		if cfg.ScopeValue == "" {
			return fmt.Errorf("scope %s requires a scope value", cfg.Scope)
		}
	default:
		return fmt.Errorf("unknown retry scope %q", cfg.Scope)
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if cfg.InitialDelay <= 0 {
		return fmt.Errorf("initial delay must be positive")
	}
	if cfg.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1")
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		return fmt.Errorf("max delay must not be below the initial delay")
	}
	for _, f := range cfg.RetryableFailures {
		if f.Permanent() {
			return fmt.Errorf("failure type %s is permanent and cannot be retryable", f)
		}
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	return r.repo.Upsert(ctx, cfg)
}

// List returns all stored policy rows.
func (r *Resolver) List(ctx context.Context) ([]*domain.RetryConfig, error) {
	return r.repo.List(ctx)
}
