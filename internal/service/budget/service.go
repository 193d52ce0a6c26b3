package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/domain"
)

// CheckResult is the outcome of a budget check. CanSend is false only
// when a hard cap has been reached; callers read Behavior to decide
// between skipping and rescheduling.
type CheckResult struct {
	CanSend      bool
	UsagePct     float64
	LimitReached bool
	Behavior     domain.CapBehavior
	Reason       string
}

// Ledger enforces monthly send budgets per scope.
type Ledger struct {
	repo   Repository
	limits []domain.BudgetLimits

	defaultWarning  float64
	defaultBehavior domain.CapBehavior
}

// NewLedger builds a Ledger from configuration. Scopes with no
// configured limits are unlimited.
func NewLedger(repo Repository, cfg config.BudgetConfig) *Ledger {
	warning := cfg.WarningThreshold
	if warning <= 0 || warning > 1 {
		warning = 0.80
	}
	behavior := domain.CapBehavior(cfg.CapBehavior)
	if behavior != domain.CapSkip && behavior != domain.CapDelay {
		behavior = domain.CapSkip
	}
	return &Ledger{
		repo:            repo,
		limits:          cfg.Limits,
		defaultWarning:  warning,
		defaultBehavior: behavior,
	}
}

// Check evaluates current usage for one scope-month before a send. It
// records warning and cap alerts as side effects, each at most once per
// period. A repository failure is returned as an error; business
// outcomes (over budget) are not errors.
func (l *Ledger) Check(ctx context.Context, typ domain.NotificationType, scope domain.BudgetScope, scopeID string, now time.Time) (CheckResult, error) {
	limits, found := l.limitsFor(scope, scopeID)
	if !found {
		return CheckResult{CanSend: true}, nil
	}
	limit := limits.Limit(typ)
	if limit <= 0 {
		return CheckResult{CanSend: true}, nil
	}

	year, month := now.Year(), int(now.Month())
	period, err := l.repo.GetPeriod(ctx, scope, scopeID, year, month)
	if err != nil {
		return CheckResult{}, fmt.Errorf("budget check %s/%s: %w", scope, scopeID, err)
	}

	count := 0
	if period != nil {
		count = period.Count(typ)
	}
	usage := float64(count) / float64(limit)

	if count >= limit && limits.HardCap {
		behavior := limits.CapBehavior
		if behavior != domain.CapSkip && behavior != domain.CapDelay {
			behavior = l.defaultBehavior
		}
		if period == nil || period.CapReachedAt == nil {
			if err := l.repo.MarkCapReached(ctx, scope, scopeID, year, month); err == nil {
				l.insertAlert(ctx, scope, scopeID, year, month, typ, "cap", usage)
			}
		}
		return CheckResult{
			CanSend:      false,
			UsagePct:     usage,
			LimitReached: true,
			Behavior:     behavior,
			Reason:       fmt.Sprintf("monthly %s budget reached (%d/%d)", typ, count, limit),
		}, nil
	}

	warning := limits.WarningThreshold
	if warning <= 0 || warning > 1 {
		warning = l.defaultWarning
	}
	if usage >= warning && (period == nil || period.WarnedAt == nil) {
		if err := l.repo.MarkWarned(ctx, scope, scopeID, year, month); err == nil {
			l.insertAlert(ctx, scope, scopeID, year, month, typ, "warning", usage)
		}
	}

	return CheckResult{CanSend: true, UsagePct: usage, LimitReached: count >= limit}, nil
}

// Commit records one confirmed successful send against the period.
func (l *Ledger) Commit(ctx context.Context, typ domain.NotificationType, scope domain.BudgetScope, scopeID string, now time.Time) error {
	return l.repo.IncrementCount(ctx, scope, scopeID, now.Year(), int(now.Month()), typ)
}

// Usage returns the current period counters for the admin API, along
// with the configured limits for the scope.
func (l *Ledger) Usage(ctx context.Context, scope domain.BudgetScope, scopeID string, now time.Time) (*domain.BudgetPeriod, domain.BudgetLimits, error) {
	limits, _ := l.limitsFor(scope, scopeID)
	period, err := l.repo.GetPeriod(ctx, scope, scopeID, now.Year(), int(now.Month()))
	if err != nil {
		return nil, limits, err
	}
	if period == nil {
		period = &domain.BudgetPeriod{
			Scope:   scope,
			ScopeID: scopeID,
			Year:    now.Year(),
			Month:   int(now.Month()),
		}
	}
	return period, limits, nil
}

// Alerts returns the most recent budget alerts.
func (l *Ledger) Alerts(ctx context.Context, limit int) ([]*domain.BudgetAlert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.repo.ListAlerts(ctx, limit)
}

// NextPeriodStart returns the first moment of the month after now in
// the given location. Used by the queue when cap behavior is delay.
func NextPeriodStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
}

func (l *Ledger) limitsFor(scope domain.BudgetScope, scopeID string) (domain.BudgetLimits, bool) {
	for _, lim := range l.limits {
		if lim.Scope == scope && lim.ScopeID == scopeID {
			return lim, true
		}
	}
	// Location scopes fall back to the global entry.
	if scope != domain.BudgetScopeGlobal {
		for _, lim := range l.limits {
			if lim.Scope == domain.BudgetScopeGlobal {
				return lim, true
			}
		}
	}
	return domain.BudgetLimits{}, false
}

func (l *Ledger) insertAlert(ctx context.Context, scope domain.BudgetScope, scopeID string, year, month int, typ domain.NotificationType, kind string, usage float64) {
	alert := &domain.BudgetAlert{
		ID:        uuid.NewString(),
		Scope:     scope,
		ScopeID:   scopeID,
		Year:      year,
		Month:     month,
		Type:      typ,
		Kind:      kind,
		UsagePct:  usage,
		CreatedAt: time.Now(),
	}
	// Alert persistence is best effort; the send decision stands either way.
	_ = l.repo.InsertAlert(ctx, alert)
}
