package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bellasuite/notify/internal/domain"
)

// BudgetRepo implements budget.Repository against PostgreSQL.
type BudgetRepo struct{ db *sql.DB }

// NewBudgetRepo creates a Postgres-backed budget repository.
func NewBudgetRepo(db *sql.DB) *BudgetRepo { return &BudgetRepo{db: db} }

func (r *BudgetRepo) GetPeriod(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int) (*domain.BudgetPeriod, error) {
	var p domain.BudgetPeriod
	var warnedAt, capReachedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, scope, scope_id, year, month, email_count, sms_count,
		       email_cost_cents, sms_cost_cents, warned_at, cap_reached_at, updated_at
		FROM notify_budget_periods
		WHERE scope = $1 AND scope_id = $2 AND year = $3 AND month = $4
	`, scope, scopeID, year, month).Scan(&p.ID, &p.Scope, &p.ScopeID, &p.Year, &p.Month,
		&p.EmailCount, &p.SMSCount, &p.EmailCostCents, &p.SMSCostCents,
		&warnedAt, &capReachedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget period: %w", err)
	}
	p.WarnedAt = nullTimePtr(warnedAt)
	p.CapReachedAt = nullTimePtr(capReachedAt)
	return &p, nil
}

// IncrementCount upserts the period row. Racing commits both land; the
// counters are additive so neither is lost.
func (r *BudgetRepo) IncrementCount(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int, typ domain.NotificationType) error {
	column := "email_count"
	if typ == domain.TypeSMS {
		column = "sms_count"
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO notify_budget_periods (id, scope, scope_id, year, month, %[1]s, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 1, NOW())
		ON CONFLICT (scope, scope_id, year, month)
		DO UPDATE SET %[1]s = notify_budget_periods.%[1]s + 1, updated_at = NOW()
	`, column), scope, scopeID, year, month)
	if err != nil {
		return fmt.Errorf("increment budget count: %w", err)
	}
	return nil
}

func (r *BudgetRepo) MarkWarned(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notify_budget_periods SET warned_at = NOW(), updated_at = NOW()
		WHERE scope = $1 AND scope_id = $2 AND year = $3 AND month = $4 AND warned_at IS NULL
	`, scope, scopeID, year, month)
	if err != nil {
		return fmt.Errorf("mark warned: %w", err)
	}
	return nil
}

func (r *BudgetRepo) MarkCapReached(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notify_budget_periods SET cap_reached_at = NOW(), updated_at = NOW()
		WHERE scope = $1 AND scope_id = $2 AND year = $3 AND month = $4 AND cap_reached_at IS NULL
	`, scope, scopeID, year, month)
	if err != nil {
		return fmt.Errorf("mark cap reached: %w", err)
	}
	return nil
}

func (r *BudgetRepo) InsertAlert(ctx context.Context, alert *domain.BudgetAlert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_budget_alerts (id, scope, scope_id, year, month, type, kind, usage_pct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, alert.ID, alert.Scope, alert.ScopeID, alert.Year, alert.Month, alert.Type,
		alert.Kind, alert.UsagePct, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert budget alert: %w", err)
	}
	return nil
}

func (r *BudgetRepo) ListAlerts(ctx context.Context, limit int) ([]*domain.BudgetAlert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope, scope_id, year, month, type, kind, usage_pct, created_at
		FROM notify_budget_alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list budget alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.BudgetAlert
	for rows.Next() {
		var a domain.BudgetAlert
		if err := rows.Scan(&a.ID, &a.Scope, &a.ScopeID, &a.Year, &a.Month,
			&a.Type, &a.Kind, &a.UsagePct, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan budget alert: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
