package queue

import (
	"context"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

// ListFilter narrows queue listings for the admin API.
type ListFilter struct {
	Status     domain.NotificationStatus
	Type       domain.NotificationType
	Channel    domain.Channel
	CustomerID string
	Limit      int
	Offset     int
}

// Stats is an aggregate snapshot of the queue.
type Stats struct {
	Pending   int `json:"pending"`
	Sending   int `json:"sending"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	DueNow    int `json:"due_now"`
}

// Store is the durable backing for the queue state machine. Every
// mutation that races with a worker is a conditional update returning
// whether a row actually changed; implementations must gate on the
// current status in the same statement, not read-then-write.
type Store interface {
	Insert(ctx context.Context, n *domain.NotificationRequest) error

	// DedupeExists reports whether a non-cancelled row already carries
	// the dedupe key.
	DedupeExists(ctx context.Context, key string) (bool, error)

	// ClaimDue atomically selects up to limit rows with status=pending,
	// scheduledFor <= now and attempts < maxAttempts, transitioning
	// each to sending in the same operation. Two concurrent callers
	// never receive the same row.
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]*domain.NotificationRequest, error)

	// MarkSent transitions sending → sent. Returns false when the row
	// was not in sending (cancelled mid-flight, or already terminal).
	MarkSent(ctx context.Context, id, providerMsgID string, at time.Time) (bool, error)

	// UpdateForRetry transitions sending → pending with the new attempt
	// count and next scheduled time. Returns false when the row was not
	// in sending.
	UpdateForRetry(ctx context.Context, id string, attempts int, lastError string, nextAttempt time.Time) (bool, error)

	// MarkFailed transitions sending → failed. Returns false when the
	// row was not in sending.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string, at time.Time) (bool, error)

	// Cancel transitions pending|sending → cancelled. Returns false
	// when the row was already terminal or absent.
	Cancel(ctx context.Context, id, reason string, at time.Time) (bool, error)

	GetByID(ctx context.Context, id string) (*domain.NotificationRequest, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.NotificationRequest, error)
	Stats(ctx context.Context) (*Stats, error)

	InsertDeadLetter(ctx context.Context, item *domain.DeadLetterItem) error
}
