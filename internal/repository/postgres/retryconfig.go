package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/bellasuite/notify/internal/domain"
)

// RetryConfigRepo implements retrycfg.Repository against PostgreSQL.
type RetryConfigRepo struct{ db *sql.DB }

// NewRetryConfigRepo creates a Postgres-backed retry policy repository.
func NewRetryConfigRepo(db *sql.DB) *RetryConfigRepo { return &RetryConfigRepo{db: db} }

func (r *RetryConfigRepo) GetByScope(ctx context.Context, scope domain.RetryScope, scopeValue string) (*domain.RetryConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, scope, scope_value, max_attempts, initial_delay_seconds,
		       backoff_multiplier, max_delay_seconds, retryable_failures, rate_per_minute, updated_at
		FROM notify_retry_configs
		WHERE scope = $1 AND scope_value = $2
	`, scope, scopeValue)
	cfg, err := scanRetryConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get retry config: %w", err)
	}
	return cfg, nil
}

func (r *RetryConfigRepo) Upsert(ctx context.Context, cfg *domain.RetryConfig) error {
	failures := make([]string, len(cfg.RetryableFailures))
	for i, f := range cfg.RetryableFailures {
		failures[i] = string(f)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_retry_configs
			(id, scope, scope_value, max_attempts, initial_delay_seconds,
			 backoff_multiplier, max_delay_seconds, retryable_failures, rate_per_minute, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (scope, scope_value) DO UPDATE SET
			max_attempts = $4, initial_delay_seconds = $5, backoff_multiplier = $6,
			max_delay_seconds = $7, retryable_failures = $8, rate_per_minute = $9, updated_at = NOW()
	`, cfg.ID, cfg.Scope, cfg.ScopeValue, cfg.MaxAttempts,
		int(cfg.InitialDelay.Seconds()), cfg.BackoffMultiplier,
		int(cfg.MaxDelay.Seconds()), pq.Array(failures), cfg.RatePerMinute)
	if err != nil {
		return fmt.Errorf("upsert retry config: %w", err)
	}
	return nil
}

func (r *RetryConfigRepo) List(ctx context.Context) ([]*domain.RetryConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope, scope_value, max_attempts, initial_delay_seconds,
		       backoff_multiplier, max_delay_seconds, retryable_failures, rate_per_minute, updated_at
		FROM notify_retry_configs
		ORDER BY scope, scope_value
	`)
	if err != nil {
		return nil, fmt.Errorf("list retry configs: %w", err)
	}
	defer rows.Close()

	var out []*domain.RetryConfig
	for rows.Next() {
		cfg, err := scanRetryConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan retry config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func scanRetryConfig(row rowScanner) (*domain.RetryConfig, error) {
	var cfg domain.RetryConfig
	var initialSecs, maxSecs int
	var failures pq.StringArray
	err := row.Scan(&cfg.ID, &cfg.Scope, &cfg.ScopeValue, &cfg.MaxAttempts,
		&initialSecs, &cfg.BackoffMultiplier, &maxSecs, &failures,
		&cfg.RatePerMinute, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cfg.InitialDelay = time.Duration(initialSecs) * time.Second
	cfg.MaxDelay = time.Duration(maxSecs) * time.Second
	for _, f := range failures {
		cfg.RetryableFailures = append(cfg.RetryableFailures, domain.FailureType(f))
	}
	return &cfg, nil
}
