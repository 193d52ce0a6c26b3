package retrycfg

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

type scopeKey struct {
	scope domain.RetryScope
	value string
}

type mockRepo struct {
	mu   sync.Mutex
	rows map[scopeKey]*domain.RetryConfig
}

func newMockRepo() *mockRepo {
	return &mockRepo{rows: make(map[scopeKey]*domain.RetryConfig)}
}

func (m *mockRepo) GetByScope(_ context.Context, scope domain.RetryScope, value string) (*domain.RetryConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.rows[scopeKey{scope, value}]; ok {
		cp := *cfg
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRepo) Upsert(_ context.Context, cfg *domain.RetryConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.rows[scopeKey{cfg.Scope, cfg.ScopeValue}] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context) ([]*domain.RetryConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.RetryConfig, 0, len(m.rows))
	for _, cfg := range m.rows {
		cp := *cfg
		out = append(out, &cp)
	}
	return out, nil
}

func policy(scope domain.RetryScope, value string, attempts int) *domain.RetryConfig {
	return &domain.RetryConfig{
		Scope:             scope,
		ScopeValue:        value,
		MaxAttempts:       attempts,
		InitialDelay:      time.Minute,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Hour,
	}
}

func TestResolveFallsBackToConfiguredGlobal(t *testing.T) {
	r := NewResolver(newMockRepo(), domain.RetryConfig{MaxAttempts: 5, InitialDelay: 30 * time.Second, BackoffMultiplier: 2.0, MaxDelay: time.Hour})
	got := r.Resolve(context.Background(), domain.ChannelAppointmentReminder, "ses")
	if got.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want configured fallback 5", got.MaxAttempts)
	}
}

func TestResolveMostSpecificWins(t *testing.T) {
	repo := newMockRepo()
	ctx := context.Background()
	r := NewResolver(repo, domain.DefaultRetryConfig())

	if err := r.Update(ctx, policy(domain.RetryScopeGlobal, "", 3)); err != nil {
		t.Fatalf("Update global: %v", err)
	}
	if err := r.Update(ctx, policy(domain.RetryScopeChannel, string(domain.ChannelMarketingPromo), 2)); err != nil {
		t.Fatalf("Update channel: %v", err)
	}
	if err := r.Update(ctx, policy(domain.RetryScopeProvider, "ses", 7)); err != nil {
		t.Fatalf("Update provider: %v", err)
	}

	if got := r.Resolve(ctx, domain.ChannelMarketingPromo, "ses"); got.MaxAttempts != 7 {
		t.Errorf("provider scope: MaxAttempts = %d, want 7", got.MaxAttempts)
	}
	if got := r.Resolve(ctx, domain.ChannelMarketingPromo, "twilio"); got.MaxAttempts != 2 {
		t.Errorf("channel scope: MaxAttempts = %d, want 2", got.MaxAttempts)
	}
	if got := r.Resolve(ctx, domain.ChannelReviewRequest, "twilio"); got.MaxAttempts != 3 {
		t.Errorf("global row: MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

func TestUpdateValidation(t *testing.T) {
	r := NewResolver(newMockRepo(), domain.DefaultRetryConfig())
	ctx := context.Background()

	bad := []*domain.RetryConfig{
		policy("regional", "us-east", 3),
		policy(domain.RetryScopeChannel, "", 3),
		policy(domain.RetryScopeGlobal, "", 0),
		{Scope: domain.RetryScopeGlobal, MaxAttempts: 3, InitialDelay: time.Hour, BackoffMultiplier: 2.0, MaxDelay: time.Minute},
		{Scope: domain.RetryScopeGlobal, MaxAttempts: 3, InitialDelay: time.Minute, BackoffMultiplier: 2.0, MaxDelay: time.Hour,
			RetryableFailures: []domain.FailureType{domain.FailureHardBounce}},
	}
	for i, cfg := range bad {
		if err := r.Update(ctx, cfg); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestUpdateAssignsID(t *testing.T) {
	repo := newMockRepo()
	r := NewResolver(repo, domain.DefaultRetryConfig())
	cfg := policy(domain.RetryScopeGlobal, "", 4)
	if err := r.Update(context.Background(), cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cfg.ID == "" {
		t.Error("expected an assigned id")
	}
}
