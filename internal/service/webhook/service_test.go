package webhook

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

type eventKey struct {
	provider string
	eventID  string
}

type mockRepo struct {
	mu       sync.Mutex
	events   map[eventKey]*domain.WebhookEvent
	byMsgID  map[string]string // provider message id -> notification id
	outcomes []domain.WebhookEventType
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		events:  make(map[eventKey]*domain.WebhookEvent),
		byMsgID: make(map[string]string),
	}
}

func (m *mockRepo) InsertEvent(_ context.Context, evt *domain.WebhookEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := eventKey{evt.Provider, evt.ProviderEventID}
	if _, exists := m.events[k]; exists {
		return false, nil
	}
	cp := *evt
	m.events[k] = &cp
	return true, nil
}

func (m *mockRepo) MarkProcessed(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.ID == id {
			evt.Processed = true
			evt.ProcessedAt = &at
		}
	}
	return nil
}

func (m *mockRepo) MarkProcessingError(_ context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.ID == id {
			evt.ProcessingError = errMsg
		}
	}
	return nil
}

func (m *mockRepo) RecordDeliveryOutcome(_ context.Context, _, providerMsgID string, outcome domain.WebhookEventType, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return m.byMsgID[providerMsgID], nil
}

func (m *mockRepo) ListEvents(_ context.Context, processed *bool, limit, _ int) ([]*domain.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WebhookEvent
	for _, evt := range m.events {
		if processed != nil && evt.Processed != *processed {
			continue
		}
		if len(out) >= limit {
			break
		}
		cp := *evt
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, evt := range m.events {
		if evt.Processed && evt.ReceivedAt.Before(cutoff) {
			delete(m.events, k)
			n++
		}
	}
	return n, nil
}

type mockSuppressor struct {
	mu      sync.Mutex
	entries []*domain.SuppressionEntry
}

func (m *mockSuppressor) Suppress(_ context.Context, email, phone string, st domain.SuppressionType, reason string, source domain.SuppressionSource) (*domain.SuppressionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := &domain.SuppressionEntry{Email: email, Phone: phone, Type: st, Reason: reason, Source: source}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func bounceInput() IngestInput {
	return IngestInput{
		Provider:        "ses",
		ProviderEventID: "evt-1",
		EventType:       "bounce",
		Recipient:       "Bounced@Example.com",
		ProviderMsgID:   "msg-9",
	}
}

func TestIngestBounceSuppressesRecipient(t *testing.T) {
	repo := newMockRepo()
	sup := &mockSuppressor{}
	ing := NewIngestor(repo, sup)
	repo.byMsgID["msg-9"] = "notif-1"

	res, err := ing.Ingest(context.Background(), bounceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Accepted || res.Duplicate {
		t.Fatalf("unexpected result %+v", res)
	}

	sup.mu.Lock()
	if len(sup.entries) != 1 {
		t.Fatalf("suppressions = %d, want 1", len(sup.entries))
	}
	entry := sup.entries[0]
	sup.mu.Unlock()
	if entry.Type != domain.SuppressBounce {
		t.Errorf("suppression type = %s, want bounce", entry.Type)
	}
	if entry.Email != "bounced@example.com" {
		t.Errorf("recipient not normalized: %q", entry.Email)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	evt := repo.events[eventKey{"ses", "evt-1"}]
	if !evt.Processed {
		t.Error("event should be processed after side effects")
	}
	if len(repo.outcomes) != 1 || repo.outcomes[0] != domain.EventBounced {
		t.Errorf("outcomes = %v", repo.outcomes)
	}
}

func TestIngestSoftBounceDoesNotSuppress(t *testing.T) {
	repo := newMockRepo()
	sup := &mockSuppressor{}
	ing := NewIngestor(repo, sup)

	in := IngestInput{
		Provider:        "ses",
		ProviderEventID: "evt-soft-1",
		EventType:       "soft_bounce",
		Recipient:       "full-mailbox@example.com",
		ProviderMsgID:   "msg-soft",
	}
	if _, err := ing.Ingest(context.Background(), in); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// A transient bounce (mailbox full) is retryable; the address must
	// not be blocked.
	sup.mu.Lock()
	if len(sup.entries) != 0 {
		t.Fatalf("soft bounce created suppressions: %+v", sup.entries)
	}
	sup.mu.Unlock()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	evt := repo.events[eventKey{"ses", "evt-soft-1"}]
	if evt.EventType != domain.EventFailed {
		t.Errorf("event type = %s, want failed", evt.EventType)
	}
	if !evt.Processed {
		t.Error("soft bounce event should still process (correlation only)")
	}
	if len(repo.outcomes) != 1 || repo.outcomes[0] != domain.EventFailed {
		t.Errorf("outcomes = %v", repo.outcomes)
	}
}

// collidingRepo simulates a key collision on the generated event id.
type collidingRepo struct{ *mockRepo }

func (c *collidingRepo) InsertEvent(context.Context, *domain.WebhookEvent) (bool, error) {
	return false, nil
}

func TestIngestMissingEventIDCollisionErrors(t *testing.T) {
	ing := NewIngestor(&collidingRepo{newMockRepo()}, &mockSuppressor{})

	in := bounceInput()
	in.ProviderEventID = ""
	_, err := ing.Ingest(context.Background(), in)
	if err == nil {
		t.Fatal("expected error when the generated id cannot be stored")
	}
	if strings.Contains(err.Error(), "%!w") {
		t.Errorf("malformed error message: %v", err)
	}
}

func TestIngestDuplicateIsNoOp(t *testing.T) {
	repo := newMockRepo()
	sup := &mockSuppressor{}
	ing := NewIngestor(repo, sup)
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, bounceInput()); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	res, err := ing.Ingest(ctx, bounceInput())
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !res.Duplicate || !res.Accepted {
		t.Fatalf("expected duplicate no-op, got %+v", res)
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()
	if len(sup.entries) != 1 {
		t.Errorf("suppressions = %d, side effects double-applied", len(sup.entries))
	}
}

func TestIngestComplaintSuppressesAsSpam(t *testing.T) {
	repo := newMockRepo()
	sup := &mockSuppressor{}
	ing := NewIngestor(repo, sup)

	in := bounceInput()
	in.ProviderEventID = "evt-2"
	in.EventType = "complaint"
	if _, err := ing.Ingest(context.Background(), in); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()
	if len(sup.entries) != 1 || sup.entries[0].Type != domain.SuppressSpam {
		t.Errorf("expected spam suppression, got %+v", sup.entries)
	}
}

func TestIngestDeliveredOnlyCorrelates(t *testing.T) {
	repo := newMockRepo()
	sup := &mockSuppressor{}
	ing := NewIngestor(repo, sup)

	in := bounceInput()
	in.ProviderEventID = "evt-3"
	in.EventType = "delivery"
	if _, err := ing.Ingest(context.Background(), in); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	sup.mu.Lock()
	if len(sup.entries) != 0 {
		t.Errorf("delivered event must not suppress, got %+v", sup.entries)
	}
	sup.mu.Unlock()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.outcomes) != 1 || repo.outcomes[0] != domain.EventDelivered {
		t.Errorf("outcomes = %v", repo.outcomes)
	}
}

func TestIngestMalformedFlaggedNotDropped(t *testing.T) {
	repo := newMockRepo()
	ing := NewIngestor(repo, &mockSuppressor{})

	in := bounceInput()
	in.ProviderEventID = "evt-4"
	in.EventType = "solar_flare"
	res, err := ing.Ingest(context.Background(), in)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Accepted {
		t.Fatal("malformed events must still be accepted")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	evt := repo.events[eventKey{"ses", "evt-4"}]
	if evt.Processed {
		t.Error("malformed event must stay unprocessed")
	}
	if evt.ProcessingError == "" {
		t.Error("expected a processing error on record")
	}
}

func TestIngestMissingEventIDFlagged(t *testing.T) {
	repo := newMockRepo()
	ing := NewIngestor(repo, &mockSuppressor{})

	in := bounceInput()
	in.ProviderEventID = ""
	res, err := ing.Ingest(context.Background(), in)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Accepted || res.Duplicate {
		t.Fatalf("unexpected result %+v", res)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.events) != 1 {
		t.Fatalf("events = %d, want 1", len(repo.events))
	}
	for _, evt := range repo.events {
		if evt.ProcessingError == "" || evt.Processed {
			t.Errorf("expected flagged unprocessed event, got %+v", evt)
		}
	}
}

func TestIngestBounceWithoutRecipientFlagged(t *testing.T) {
	repo := newMockRepo()
	sup := &mockSuppressor{}
	ing := NewIngestor(repo, sup)

	in := bounceInput()
	in.ProviderEventID = "evt-5"
	in.Recipient = ""
	if _, err := ing.Ingest(context.Background(), in); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	evt := repo.events[eventKey{"ses", "evt-5"}]
	if evt.Processed || evt.ProcessingError == "" {
		t.Errorf("bounce without recipient should be flagged, got %+v", evt)
	}
}

func TestCleanupPurgesProcessedOnly(t *testing.T) {
	repo := newMockRepo()
	ing := NewIngestor(repo, &mockSuppressor{})
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, bounceInput()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stale := bounceInput()
	stale.ProviderEventID = "evt-old"
	stale.EventType = "solar_flare" // stays unprocessed
	if _, err := ing.Ingest(ctx, stale); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	repo.mu.Lock()
	for _, evt := range repo.events {
		evt.ReceivedAt = time.Now().AddDate(0, 0, -60)
	}
	repo.mu.Unlock()

	n, err := ing.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want only the processed event", n)
	}
}
