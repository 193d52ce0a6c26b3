package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/service/budget"
	"github.com/bellasuite/notify/internal/service/consent"
	"github.com/bellasuite/notify/internal/service/schedule"
	"github.com/bellasuite/notify/internal/template"
)

// Guard decides whether a recipient may be contacted at all.
type Guard interface {
	Evaluate(ctx context.Context, in consent.EvaluateInput) (consent.Decision, error)
}

// Ledger is the budget check/commit pair consumed by the queue.
type Ledger interface {
	Check(ctx context.Context, typ domain.NotificationType, scope domain.BudgetScope, scopeID string, now time.Time) (budget.CheckResult, error)
	Commit(ctx context.Context, typ domain.NotificationType, scope domain.BudgetScope, scopeID string, now time.Time) error
}

// Scheduler resolves a desired send time against quiet-hours policy.
type Scheduler interface {
	Resolve(desired time.Time, timezone string, deadline *time.Time) schedule.Resolution
}

// Retries resolves the retry policy for a channel/provider pair.
type Retries interface {
	Resolve(ctx context.Context, channel domain.Channel, provider string) domain.RetryConfig
}

// Renderer produces subject and body from a channel template.
type Renderer interface {
	Render(channel domain.Channel, typ domain.NotificationType, data map[string]interface{}) (*template.Rendered, error)
}

// Settings carries the queue-level knobs from configuration.
type Settings struct {
	DedupeWindow  time.Duration
	EmailProvider string
	SMSProvider   string
	// Location anchors "first moment of next month" for budget delays.
	Location *time.Location
}

// Service coordinates the admission pipeline and the state machine
// transitions around the Store.
type Service struct {
	store    Store
	guard    Guard
	ledger   Ledger
	sched    Scheduler
	retries  Retries
	renderer Renderer
	settings Settings
}

// NewService wires the queue together.
func NewService(store Store, guard Guard, ledger Ledger, sched Scheduler, retries Retries, renderer Renderer, settings Settings) *Service {
	if settings.DedupeWindow <= 0 {
		settings.DedupeWindow = 24 * time.Hour
	}
	if settings.EmailProvider == "" {
		settings.EmailProvider = "ses"
	}
	if settings.SMSProvider == "" {
		settings.SMSProvider = "sms"
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Service{
		store:    store,
		guard:    guard,
		ledger:   ledger,
		sched:    sched,
		retries:  retries,
		renderer: renderer,
		settings: settings,
	}
}

// EnqueueInput describes one send request from a caller.
type EnqueueInput struct {
	Type         domain.NotificationType
	Channel      domain.Channel
	CustomerID   string
	LocationID   string
	Email        string
	Phone        string
	Timezone     string // recipient's IANA zone; empty uses the default
	EntityID     string // correlating appointment/booking id
	TemplateData map[string]interface{}
	ScheduledFor time.Time  // zero means now
	Deadline     *time.Time // the real-world event, e.g. appointment start
}

// EnqueueResult is the outcome of an enqueue. Skipped results carry the
// business reason and no id.
type EnqueueResult struct {
	ID           string    `json:"id,omitempty"`
	Skipped      bool      `json:"skipped"`
	Reason       string    `json:"reason,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
	Delayed      bool      `json:"delayed,omitempty"`
}

// Enqueue runs the admission pipeline in order: consent/suppression,
// budget, short-window deadline plus quiet hours, then dedupe. Only
// structural problems (bad input, store failure, template failure) are
// errors; every policy rejection is a skip result.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (EnqueueResult, error) {
	if err := s.validate(in); err != nil {
		return EnqueueResult{}, err
	}

	now := time.Now()
	desired := in.ScheduledFor
	if desired.IsZero() {
		desired = now
	}

	decision, err := s.guard.Evaluate(ctx, consent.EvaluateInput{
		CustomerID:  in.CustomerID,
		Email:       in.Email,
		Phone:       in.Phone,
		Channel:     in.Channel,
		ConsentType: consentTypeFor(in.Channel),
	})
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("consent guard: %w", err)
	}
	if !decision.CanSend {
		return EnqueueResult{Skipped: true, Reason: decision.Reason}, nil
	}

	scope, scopeID := budgetScope(in.LocationID)
	check, err := s.ledger.Check(ctx, in.Type, scope, scopeID, now)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("budget check: %w", err)
	}
	delayed := false
	if !check.CanSend {
		if check.Behavior != domain.CapDelay {
			return EnqueueResult{Skipped: true, Reason: check.Reason}, nil
		}
		desired = budget.NextPeriodStart(now, s.settings.Location)
		delayed = true
		if in.Deadline != nil && desired.After(*in.Deadline) {
			return EnqueueResult{Skipped: true, Reason: "budget delay would miss the deadline"}, nil
		}
	}

	res := s.sched.Resolve(desired, in.Timezone, in.Deadline)
	if res.Skip {
		return EnqueueResult{Skipped: true, Reason: res.Reason}, nil
	}
	desired = res.SendAt
	delayed = delayed || res.Delayed

	key := s.dedupeKey(in, now)
	exists, err := s.store.DedupeExists(ctx, key)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("dedupe check: %w", err)
	}
	if exists {
		return EnqueueResult{Skipped: true, Reason: "duplicate within dedupe window"}, nil
	}

	rendered, err := s.renderer.Render(in.Channel, in.Type, in.TemplateData)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("render %s/%s: %w", in.Channel, in.Type, err)
	}

	policy := s.retries.Resolve(ctx, in.Channel, s.providerFor(in.Type))

	var data json.RawMessage
	if in.TemplateData != nil {
		data, err = json.Marshal(in.TemplateData)
		if err != nil {
			return EnqueueResult{}, fmt.Errorf("template data: %w", err)
		}
	}

	n := &domain.NotificationRequest{
		ID:           uuid.NewString(),
		Type:         in.Type,
		Channel:      in.Channel,
		CustomerID:   in.CustomerID,
		LocationID:   in.LocationID,
		Email:        in.Email,
		Phone:        in.Phone,
		TemplateData: data,
		Subject:      rendered.Subject,
		Body:         rendered.Body,
		DedupeKey:    key,
		EntityID:     in.EntityID,
		ScheduledFor: desired,
		Status:       domain.StatusPending,
		MaxAttempts:  policy.MaxAttempts,
		CreatedAt:    now,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return EnqueueResult{}, fmt.Errorf("insert notification: %w", err)
	}

	result := EnqueueResult{ID: n.ID, ScheduledFor: desired, Delayed: delayed}
	if delayed {
		result.Reason = res.Reason
		if res.Reason == "" {
			result.Reason = "delayed into next budget period"
		}
	}
	return result, nil
}

// ClaimDue hands a batch of due pending requests to a worker, marking
// each as sending in the same atomic operation.
func (s *Service) ClaimDue(ctx context.Context, limit int) ([]*domain.NotificationRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.store.ClaimDue(ctx, limit, time.Now())
}

// ReportSuccess finalizes a delivered request and commits the budget.
// A request cancelled while in flight is left alone and not counted.
func (s *Service) ReportSuccess(ctx context.Context, n *domain.NotificationRequest, providerMsgID string) error {
	now := time.Now()
	updated, err := s.store.MarkSent(ctx, n.ID, providerMsgID, now)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", n.ID, err)
	}
	if !updated {
		return nil
	}
	scope, scopeID := budgetScope(n.LocationID)
	if err := s.ledger.Commit(ctx, n.Type, scope, scopeID, now); err != nil {
		return fmt.Errorf("budget commit %s: %w", n.ID, err)
	}
	return nil
}

// ReportFailure records a failed attempt. Permanent failures, exhausted
// attempts, and failure types the policy does not retry all dead-letter
// the request; everything else goes back to pending with exponential
// backoff.
func (s *Service) ReportFailure(ctx context.Context, n *domain.NotificationRequest, failure domain.FailureType, sendErr string) error {
	now := time.Now()
	attempts := n.Attempts + 1
	policy := s.retries.Resolve(ctx, n.Channel, s.providerFor(n.Type))

	maxAttempts := n.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = policy.MaxAttempts
	}

	if failure.Permanent() || attempts >= maxAttempts || !policy.AllowsRetry(failure) {
		updated, err := s.store.MarkFailed(ctx, n.ID, attempts, sendErr, now)
		if err != nil {
			return fmt.Errorf("mark failed %s: %w", n.ID, err)
		}
		if !updated {
			return nil
		}
		item := &domain.DeadLetterItem{
			ID:             uuid.NewString(),
			NotificationID: n.ID,
			Type:           n.Type,
			Channel:        n.Channel,
			CustomerID:     n.CustomerID,
			Recipient:      n.Recipient(),
			Subject:        n.Subject,
			Body:           n.Body,
			FailureType:    failure,
			LastError:      sendErr,
			Attempts:       attempts,
			RetryEligible:  failure.RetryEligible(),
			CreatedAt:      now,
		}
		if err := s.store.InsertDeadLetter(ctx, item); err != nil {
			return fmt.Errorf("dead-letter %s: %w", n.ID, err)
		}
		return nil
	}

	next := now.Add(backoffDelay(policy, attempts))
	if _, err := s.store.UpdateForRetry(ctx, n.ID, attempts, sendErr, next); err != nil {
		return fmt.Errorf("schedule retry %s: %w", n.ID, err)
	}
	return nil
}

// Cancel transitions a request to cancelled. Cancelling an already
// terminal request is a no-op; an unknown id is ErrNotFound. A request
// a worker has claimed is cancelled cooperatively: the in-flight
// attempt finishes, further retries stop.
func (s *Service) Cancel(ctx context.Context, id, reason string) error {
	updated, err := s.store.Cancel(ctx, id, reason, time.Now())
	if err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	if updated {
		return nil
	}
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotFound
	}
	if n.Status.Terminal() {
		return nil
	}
	return fmt.Errorf("cancel %s: request in state %s was not updated", id, n.Status)
}

// Get returns one request by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.NotificationRequest, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*domain.NotificationRequest, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.store.List(ctx, filter)
}

// QueueStats returns the aggregate queue snapshot.
func (s *Service) QueueStats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) validate(in EnqueueInput) error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, in.Type)
	}
	if in.Channel == "" {
		return fmt.Errorf("%w: channel is required", ErrInvalidRequest)
	}
	if in.CustomerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidRequest)
	}
	if in.Type == domain.TypeEmail && in.Email == "" {
		return fmt.Errorf("%w: email recipient is required", ErrInvalidRequest)
	}
	if in.Type == domain.TypeSMS && in.Phone == "" {
		return fmt.Errorf("%w: phone recipient is required", ErrInvalidRequest)
	}
	return nil
}

// dedupeKey collapses logically-equivalent requests inside one time
// bucket: same customer, medium, channel, and correlated entity.
func (s *Service) dedupeKey(in EnqueueInput, now time.Time) string {
	bucket := now.UTC().Truncate(s.settings.DedupeWindow)
	return fmt.Sprintf("%s:%s:%s:%s:%d", in.CustomerID, in.Type, in.Channel, in.EntityID, bucket.Unix())
}

func (s *Service) providerFor(t domain.NotificationType) string {
	if t == domain.TypeSMS {
		return s.settings.SMSProvider
	}
	return s.settings.EmailProvider
}

func budgetScope(locationID string) (domain.BudgetScope, string) {
	if locationID != "" {
		return domain.BudgetScopeLocation, locationID
	}
	return domain.BudgetScopeGlobal, ""
}

// consentTypeFor maps a channel to the consent category it needs.
// Appointment lifecycle messages are transactional; promos and review
// solicitations require marketing consent.
func consentTypeFor(ch domain.Channel) domain.ConsentType {
	switch ch {
	case domain.ChannelMarketingPromo, domain.ChannelReviewRequest:
		return domain.ConsentMarketing
	default:
		return domain.ConsentTransactional
	}
}

// backoffDelay computes min(initialDelay * multiplier^attempts, maxDelay)
// with up to 10% jitter so retrying rows spread out.
func backoffDelay(policy domain.RetryConfig, attempts int) time.Duration {
	mult := policy.BackoffMultiplier
	if mult < 1 {
		mult = 2.0
	}
	base := float64(policy.InitialDelay) * math.Pow(mult, float64(attempts))
	if max := float64(policy.MaxDelay); policy.MaxDelay > 0 && base > max {
		base = max
	}
	jitter := base * 0.10 * rand.Float64()
	return time.Duration(base + jitter)
}
