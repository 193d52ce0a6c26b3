package budget

import (
	"context"

	"github.com/bellasuite/notify/internal/domain"
)

// Repository is the persistence boundary for budget periods and alerts.
type Repository interface {
	// GetPeriod returns the counters for one scope-month, or nil when
	// no sends have been recorded yet.
	GetPeriod(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int) (*domain.BudgetPeriod, error)

	// IncrementCount upserts the period row and bumps the counter for
	// the given notification type by one.
	IncrementCount(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int, typ domain.NotificationType) error

	// MarkWarned stamps the period's warning timestamp if unset.
	MarkWarned(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int) error

	// MarkCapReached stamps the period's hard-cap timestamp if unset.
	MarkCapReached(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int) error

	InsertAlert(ctx context.Context, alert *domain.BudgetAlert) error
	ListAlerts(ctx context.Context, limit int) ([]*domain.BudgetAlert, error)
}
