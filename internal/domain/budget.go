package domain

import "time"

// BudgetScope is the level at which a send budget applies.
type BudgetScope string

const (
	BudgetScopeGlobal   BudgetScope = "global"
	BudgetScopeLocation BudgetScope = "location"
)

// CapBehavior controls what happens to a send once a hard cap is reached.
type CapBehavior string

const (
	// CapSkip cancels the request silently with a skip reason.
	CapSkip CapBehavior = "skip"
	// CapDelay pushes the request to the first moment of the next month.
	CapDelay CapBehavior = "delay"
)

// BudgetPeriod is one month of send counters for a scope. Counters are
// incremented only on confirmed successful sends; the ledger is a soft
// quota, so slight overshoot under racing commits is accepted.
type BudgetPeriod struct {
	ID             string      `json:"id" db:"id"`
	Scope          BudgetScope `json:"scope" db:"scope"`
	ScopeID        string      `json:"scope_id" db:"scope_id"`
	Year           int         `json:"year" db:"year"`
	Month          int         `json:"month" db:"month"` // 1-12
	EmailCount     int         `json:"email_count" db:"email_count"`
	SMSCount       int         `json:"sms_count" db:"sms_count"`
	EmailCostCents int         `json:"email_cost_cents" db:"email_cost_cents"`
	SMSCostCents   int         `json:"sms_cost_cents" db:"sms_cost_cents"`
	WarnedAt       *time.Time  `json:"warned_at,omitempty" db:"warned_at"`
	CapReachedAt   *time.Time  `json:"cap_reached_at,omitempty" db:"cap_reached_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// Count returns the counter for the given notification type.
func (b *BudgetPeriod) Count(t NotificationType) int {
	if t == TypeSMS {
		return b.SMSCount
	}
	return b.EmailCount
}

// BudgetLimits is the configured monthly allowance for a scope. A zero
// limit means unlimited for that type.
type BudgetLimits struct {
	Scope             BudgetScope `json:"scope" yaml:"scope"`
	ScopeID           string      `json:"scope_id" yaml:"scope_id"`
	MonthlyEmailLimit int         `json:"monthly_email_limit" yaml:"monthly_email_limit"`
	MonthlySMSLimit   int         `json:"monthly_sms_limit" yaml:"monthly_sms_limit"`
	WarningThreshold  float64     `json:"warning_threshold" yaml:"warning_threshold"` // default 0.80
	HardCap           bool        `json:"hard_cap" yaml:"hard_cap"`
	CapBehavior       CapBehavior `json:"cap_behavior" yaml:"cap_behavior"`
}

// Limit returns the monthly limit for the given notification type.
func (l BudgetLimits) Limit(t NotificationType) int {
	if t == TypeSMS {
		return l.MonthlySMSLimit
	}
	return l.MonthlyEmailLimit
}

// BudgetAlert records a warning-threshold or hard-cap crossing for the
// admin dashboard.
type BudgetAlert struct {
	ID        string           `json:"id" db:"id"`
	Scope     BudgetScope      `json:"scope" db:"scope"`
	ScopeID   string           `json:"scope_id" db:"scope_id"`
	Year      int              `json:"year" db:"year"`
	Month     int              `json:"month" db:"month"`
	Type      NotificationType `json:"type" db:"type"`
	Kind      string           `json:"kind" db:"kind"` // "warning" or "cap"
	UsagePct  float64          `json:"usage_pct" db:"usage_pct"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
