package consent

import (
	"context"

	"github.com/bellasuite/notify/internal/domain"
)

// Repository defines the data access contract for consent and suppression.
type Repository interface {
	// LatestConsent returns the most recent consent record for the
	// (customer, channel, consentType) triple, or nil if none exists.
	LatestConsent(ctx context.Context, customerID string, channel domain.Channel, ct domain.ConsentType) (*domain.ConsentRecord, error)

	// InsertConsent appends a consent record. Records are never updated
	// or deleted; the latest one wins.
	InsertConsent(ctx context.Context, rec *domain.ConsentRecord) error

	// ActiveSuppression returns the first non-reactivated suppression
	// entry matching the email or phone, or nil if neither is blocked.
	// Empty identifiers are not matched.
	ActiveSuppression(ctx context.Context, email, phone string) (*domain.SuppressionEntry, error)

	// Suppress adds a suppression entry. If an active entry already
	// exists for the same identifier, the existing record is preserved
	// (idempotent).
	Suppress(ctx context.Context, entry *domain.SuppressionEntry) error

	// Reactivate clears the suppression holding the given token.
	// Returns ErrNotFound if no active entry holds it.
	Reactivate(ctx context.Context, token string) error

	// ListSuppressions returns suppression entries matching the filter.
	ListSuppressions(ctx context.Context, f SuppressionFilter) ([]domain.SuppressionEntry, int, error)
}

// SuppressionFilter controls pagination and filtering for suppression lists.
type SuppressionFilter struct {
	Type   string
	Source string
	Search string
	Limit  int
	Offset int
}
