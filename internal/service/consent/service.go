package consent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/domain"
)

// Service implements the consent and suppression guard. It is safe for
// concurrent use; Evaluate is a pure read with no side effects.
type Service struct {
	repo Repository
}

// NewService creates a guard backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EvaluateInput identifies the recipient and the kind of message.
type EvaluateInput struct {
	CustomerID  string
	Email       string
	Phone       string
	Channel     domain.Channel
	ConsentType domain.ConsentType
}

// Decision is the guard's verdict. A false CanSend is an expected
// outcome, not an error; Reason explains the block for audit logs.
type Decision struct {
	CanSend bool   `json:"can_send"`
	Reason  string `json:"reason,omitempty"`
}

// Evaluate decides whether the recipient may be contacted. Suppression is
// checked first and blocks regardless of consent. Absence of an explicit
// affirmative consent record blocks the send (fail closed).
func (s *Service) Evaluate(ctx context.Context, in EvaluateInput) (Decision, error) {
	email := normalizeEmail(in.Email)
	phone := normalizePhone(in.Phone)

	entry, err := s.repo.ActiveSuppression(ctx, email, phone)
	if err != nil {
		return Decision{}, fmt.Errorf("suppression check: %w", err)
	}
	if entry != nil {
		return Decision{CanSend: false, Reason: fmt.Sprintf("suppressed (%s)", entry.Type)}, nil
	}

	rec, err := s.repo.LatestConsent(ctx, in.CustomerID, in.Channel, in.ConsentType)
	if err != nil {
		return Decision{}, fmt.Errorf("consent lookup: %w", err)
	}
	if rec == nil {
		return Decision{CanSend: false, Reason: "no consent on record"}, nil
	}
	if !rec.Consented {
		return Decision{CanSend: false, Reason: "consent withdrawn"}, nil
	}
	return Decision{CanSend: true}, nil
}

// RecordConsent appends a consent decision for a customer. Earlier records
// for the same (channel, consentType) are superseded, never deleted.
func (s *Service) RecordConsent(ctx context.Context, rec *domain.ConsentRecord) error {
	if rec.CustomerID == "" {
		return fmt.Errorf("customer id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return s.repo.InsertConsent(ctx, rec)
}

// Suppress adds a hard block on an email address or phone number.
// Idempotent: an existing active entry for the identifier is preserved.
func (s *Service) Suppress(ctx context.Context, email, phone string, st domain.SuppressionType, reason string, source domain.SuppressionSource) (*domain.SuppressionEntry, error) {
	email = normalizeEmail(email)
	phone = normalizePhone(phone)
	if email == "" && phone == "" {
		return nil, fmt.Errorf("email or phone is required")
	}

	entry := &domain.SuppressionEntry{
		ID:                uuid.New().String(),
		Email:             email,
		Phone:             phone,
		Type:              st,
		Reason:            reason,
		Source:            source,
		ReactivationToken: uuid.New().String(),
	}
	if err := s.repo.Suppress(ctx, entry); err != nil {
		return nil, fmt.Errorf("suppress: %w", err)
	}
	return entry, nil
}

// Unsubscribe is the customer-facing opt-out: it records a withdrawn
// consent for the marketing type and adds an unsubscribe suppression.
func (s *Service) Unsubscribe(ctx context.Context, customerID, email, phone string, channel domain.Channel) (*domain.SuppressionEntry, error) {
	if customerID != "" {
		rec := &domain.ConsentRecord{
			ID:         uuid.New().String(),
			CustomerID: customerID,
			Channel:    channel,
			Type:       domain.ConsentMarketing,
			Consented:  false,
			Source:     domain.ConsentSourceCustomer,
		}
		if err := s.repo.InsertConsent(ctx, rec); err != nil {
			return nil, fmt.Errorf("record opt-out: %w", err)
		}
	}
	return s.Suppress(ctx, email, phone, domain.SuppressUnsubscribe, "customer unsubscribe", domain.SuppressionSourceUnsubscribe)
}

// Reactivate lifts a suppression using its reactivation token.
func (s *Service) Reactivate(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	return s.repo.Reactivate(ctx, token)
}

// ListSuppressions returns suppression entries for the admin UI.
func (s *Service) ListSuppressions(ctx context.Context, f SuppressionFilter) ([]domain.SuppressionEntry, int, error) {
	return s.repo.ListSuppressions(ctx, f)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
