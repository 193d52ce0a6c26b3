package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/domain"
)

// Service exposes the admin operations over the dead-letter store.
type Service struct {
	repo        Repository
	requeue     Requeuer
	maxAttempts int
}

// NewService wires the dead-letter store to the queue. maxAttempts is
// the retry budget granted to manually-requeued notifications.
func NewService(repo Repository, requeue Requeuer, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Service{repo: repo, requeue: requeue, maxAttempts: maxAttempts}
}

// RetryInput carries the admin's retry request.
type RetryInput struct {
	UpdatedRecipient string `json:"updated_recipient,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Actor            string `json:"actor"`
}

// RetryResult reports the notification spawned by a retry.
type RetryResult struct {
	NewNotificationID string `json:"new_notification_id"`
}

// Retry spawns a fresh pending notification from the snapshot, with
// attempts reset and an optionally corrected recipient, and marks the
// item resolved with action manual_retry. The resolve happens first:
// the conditional update is what stops two admins double-sending the
// same item.
func (s *Service) Retry(ctx context.Context, id string, in RetryInput) (RetryResult, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return RetryResult{}, fmt.Errorf("load dead letter %s: %w", id, err)
	}
	if item == nil {
		return RetryResult{}, ErrNotFound
	}
	if item.Resolved {
		return RetryResult{}, ErrAlreadyResolved
	}
	if !item.RetryEligible {
		return RetryResult{}, ErrNotRetryEligible
	}

	updated, err := s.repo.MarkResolved(ctx, id, domain.ResolveManualRetry, in.Notes, in.Actor, time.Now())
	if err != nil {
		return RetryResult{}, fmt.Errorf("resolve dead letter %s: %w", id, err)
	}
	if !updated {
		return RetryResult{}, ErrAlreadyResolved
	}

	recipient := item.Recipient
	if in.UpdatedRecipient != "" {
		recipient = in.UpdatedRecipient
	}
	n := &domain.NotificationRequest{
		ID:           uuid.NewString(),
		Type:         item.Type,
		Channel:      item.Channel,
		CustomerID:   item.CustomerID,
		Subject:      item.Subject,
		Body:         item.Body,
		EntityID:     item.NotificationID,
		ScheduledFor: time.Now(),
		Status:       domain.StatusPending,
		MaxAttempts:  s.maxAttempts,
		CreatedAt:    time.Now(),
	}
	if item.Type == domain.TypeSMS {
		n.Phone = recipient
	} else {
		n.Email = recipient
	}
	if err := s.requeue.Insert(ctx, n); err != nil {
		return RetryResult{}, fmt.Errorf("requeue dead letter %s: %w", id, err)
	}
	return RetryResult{NewNotificationID: n.ID}, nil
}

// ResolveInput carries a resolve-without-retry request.
type ResolveInput struct {
	Action domain.ResolutionAction `json:"action"`
	Notes  string                  `json:"notes,omitempty"`
	Actor  string                  `json:"actor"`
}

// Resolve closes an item without requeueing it.
func (s *Service) Resolve(ctx context.Context, id string, in ResolveInput) error {
	switch in.Action {
	case domain.ResolveAddressUpdated, domain.ResolveSuppressed, domain.ResolveIgnored:
	default:
		return fmt.Errorf("invalid resolution action %q", in.Action)
	}
	updated, err := s.repo.MarkResolved(ctx, id, in.Action, in.Notes, in.Actor, time.Now())
	if err != nil {
		return fmt.Errorf("resolve dead letter %s: %w", id, err)
	}
	if updated {
		return nil
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}
	return ErrAlreadyResolved
}

// Get returns one item by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.DeadLetterItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// List returns items matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]*domain.DeadLetterItem, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.List(ctx, f)
}

// GetStats returns the aggregate dead-letter picture.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// Cleanup purges resolved items older than the retention window. Not a
// hot-path operation; the maintenance worker runs it on a timer.
func (s *Service) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	return s.repo.DeleteResolvedBefore(ctx, cutoff)
}
