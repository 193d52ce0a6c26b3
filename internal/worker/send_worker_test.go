package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/sender"
)

type mockQueue struct {
	mu       sync.Mutex
	pending  []*domain.NotificationRequest
	sent     []string
	failed   map[string]domain.FailureType
	failMsgs map[string]string
}

func newMockQueue(items ...*domain.NotificationRequest) *mockQueue {
	return &mockQueue{
		pending:  items,
		failed:   make(map[string]domain.FailureType),
		failMsgs: make(map[string]string),
	}
}

func (m *mockQueue) ClaimDue(_ context.Context, limit int) ([]*domain.NotificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, nil
	}
	if limit > len(m.pending) {
		limit = len(m.pending)
	}
	batch := m.pending[:limit]
	m.pending = m.pending[limit:]
	return batch, nil
}

func (m *mockQueue) ReportSuccess(_ context.Context, n *domain.NotificationRequest, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n.ID)
	return nil
}

func (m *mockQueue) ReportFailure(_ context.Context, n *domain.NotificationRequest, failure domain.FailureType, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[n.ID] = failure
	m.failMsgs[n.ID] = msg
	return nil
}

func (m *mockQueue) drained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) == 0
}

func (m *mockQueue) outcomes() (sent int, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent), len(m.failed)
}

type mockSender struct {
	provider string
	result   *sender.Result
	err      error
}

func (s *mockSender) Send(_ context.Context, _ *sender.Message) (*sender.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *mockSender) Provider() string { return s.provider }

func emailItem(id string) *domain.NotificationRequest {
	return &domain.NotificationRequest{
		ID:      id,
		Type:    domain.TypeEmail,
		Channel: domain.ChannelAppointmentReminder,
		Email:   "dana@example.com",
		Subject: "Reminder",
		Body:    "See you tomorrow",
	}
}

func testPoolConfig() config.QueueConfig {
	return config.QueueConfig{
		Workers:            2,
		BatchSize:          5,
		PollIntervalMS:     10,
		SendTimeoutSeconds: 5,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestPoolDeliversClaimedItems(t *testing.T) {
	q := newMockQueue(emailItem("n1"), emailItem("n2"), emailItem("n3"))
	p := NewSendWorkerPool(q, testPoolConfig())
	p.SetSenders(&mockSender{
		provider: "ses",
		result:   &sender.Result{Success: true, ProviderMsgID: "msg-1", SentAt: time.Now()},
	}, nil)

	p.Start()
	waitFor(t, func() bool {
		if !q.drained() {
			return false
		}
		sent, _ := q.outcomes()
		return sent == 3
	})
	p.Stop()

	sent, failed := q.outcomes()
	if sent != 3 || failed != 0 {
		t.Fatalf("expected 3 sent, 0 failed; got %d sent, %d failed", sent, failed)
	}
	if got := p.Stats()["total_sent"]; got != 3 {
		t.Errorf("total_sent = %d, want 3", got)
	}
}

func TestPoolClassifiesProviderRejection(t *testing.T) {
	q := newMockQueue(emailItem("n1"))
	p := NewSendWorkerPool(q, testPoolConfig())
	p.SetSenders(&mockSender{
		provider: "ses",
		result:   &sender.Result{Success: false, ErrorCode: "throttling"},
	}, nil)

	p.Start()
	waitFor(t, func() bool { _, failed := q.outcomes(); return failed == 1 })
	p.Stop()

	if got := q.failed["n1"]; got != domain.FailureRateLimited {
		t.Errorf("failure = %q, want %q", got, domain.FailureRateLimited)
	}
}

func TestPoolClassifiesTransportError(t *testing.T) {
	q := newMockQueue(emailItem("n1"))
	p := NewSendWorkerPool(q, testPoolConfig())
	p.SetSenders(&mockSender{provider: "ses", err: errors.New("connection refused")}, nil)

	p.Start()
	waitFor(t, func() bool { _, failed := q.outcomes(); return failed == 1 })
	p.Stop()

	if got := q.failed["n1"]; got != domain.FailureProviderError {
		t.Errorf("failure = %q, want %q", got, domain.FailureProviderError)
	}
	if q.failMsgs["n1"] != "connection refused" {
		t.Errorf("failure message = %q", q.failMsgs["n1"])
	}
}

func TestPoolClassifiesTimeout(t *testing.T) {
	q := newMockQueue(emailItem("n1"))
	p := NewSendWorkerPool(q, testPoolConfig())
	p.SetSenders(&mockSender{provider: "ses", err: context.DeadlineExceeded}, nil)

	p.Start()
	waitFor(t, func() bool { _, failed := q.outcomes(); return failed == 1 })
	p.Stop()

	if got := q.failed["n1"]; got != domain.FailureTimeout {
		t.Errorf("failure = %q, want %q", got, domain.FailureTimeout)
	}
}

func TestPoolFailsItemsWithoutSender(t *testing.T) {
	smsItem := &domain.NotificationRequest{
		ID:      "s1",
		Type:    domain.TypeSMS,
		Channel: domain.ChannelAppointmentReminder,
		Phone:   "+15551234567",
		Body:    "Your appointment is tomorrow",
	}
	q := newMockQueue(smsItem)
	p := NewSendWorkerPool(q, testPoolConfig())
	// Only email configured; SMS items must fail, not panic.
	p.SetSenders(&mockSender{
		provider: "ses",
		result:   &sender.Result{Success: true, ProviderMsgID: "msg-1"},
	}, nil)

	p.Start()
	waitFor(t, func() bool { _, failed := q.outcomes(); return failed == 1 })
	p.Stop()

	if got := q.failed["s1"]; got != domain.FailureProviderError {
		t.Errorf("failure = %q, want %q", got, domain.FailureProviderError)
	}
}

func TestPoolRoutesByType(t *testing.T) {
	items := []*domain.NotificationRequest{
		emailItem("e1"),
		{ID: "s1", Type: domain.TypeSMS, Channel: domain.ChannelAppointmentReminder, Phone: "+15551234567", Body: "hi"},
	}
	q := newMockQueue(items...)

	var mu sync.Mutex
	seen := make(map[string]domain.NotificationType)
	record := func(provider string) sender.Sender {
		return senderFunc(func(_ context.Context, msg *sender.Message) (*sender.Result, error) {
			mu.Lock()
			seen[provider] = msg.Type
			mu.Unlock()
			return &sender.Result{Success: true, ProviderMsgID: provider + "-1"}, nil
		})
	}

	p := NewSendWorkerPool(q, testPoolConfig())
	p.SetSenders(record("ses"), record("sms"))

	p.Start()
	waitFor(t, func() bool { sent, _ := q.outcomes(); return sent == 2 })
	p.Stop()

	if seen["ses"] != domain.TypeEmail {
		t.Errorf("ses sender got type %q, want email", seen["ses"])
	}
	if seen["sms"] != domain.TypeSMS {
		t.Errorf("sms sender got type %q, want sms", seen["sms"])
	}
}

func TestPoolStartStopIdempotent(t *testing.T) {
	q := newMockQueue()
	p := NewSendWorkerPool(q, testPoolConfig())
	p.SetSenders(&mockSender{provider: "ses", result: &sender.Result{Success: true}}, nil)

	p.Start()
	p.Start()
	p.Stop()
	p.Stop()
}

// senderFunc adapts a function to the Sender interface for tests.
type senderFunc func(ctx context.Context, msg *sender.Message) (*sender.Result, error)

func (f senderFunc) Send(ctx context.Context, msg *sender.Message) (*sender.Result, error) {
	return f(ctx, msg)
}

func (f senderFunc) Provider() string { return "test" }
