package deadletter

import (
	"context"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

// Filter narrows dead-letter listings.
type Filter struct {
	FailureType domain.FailureType
	Channel     domain.Channel
	Resolved    *bool
	Limit       int
	Offset      int
}

// Stats is the aggregate dead-letter picture for the admin dashboard.
type Stats struct {
	Total          int                        `json:"total"`
	Unresolved     int                        `json:"unresolved"`
	RecentCount    int                        `json:"recent_count"` // created in the last 24h
	ByFailureType  map[domain.FailureType]int `json:"by_failure_type"`
	ByChannel      map[domain.Channel]int     `json:"by_channel"`
	ResolutionRate float64                    `json:"resolution_rate"`
}

// Repository is the persistence boundary for dead-letter items.
type Repository interface {
	// GetByID returns an item, or nil when absent.
	GetByID(ctx context.Context, id string) (*domain.DeadLetterItem, error)

	List(ctx context.Context, f Filter) ([]*domain.DeadLetterItem, error)

	// MarkResolved closes an item out, gated on it still being open.
	// Returns false when the item was already resolved or absent.
	MarkResolved(ctx context.Context, id string, action domain.ResolutionAction, notes, actor string, at time.Time) (bool, error)

	Stats(ctx context.Context) (*Stats, error)

	// DeleteResolvedBefore purges resolved items older than cutoff and
	// returns how many rows went.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Requeuer accepts the fresh notification a manual retry produces.
// Satisfied by the queue store.
type Requeuer interface {
	Insert(ctx context.Context, n *domain.NotificationRequest) error
}
