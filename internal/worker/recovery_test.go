package worker

import (
	"context"
	"testing"
	"time"
)

type mockReleaser struct {
	released int64
	calls    int
	gotAge   time.Duration
}

func (m *mockReleaser) ReleaseStaleClaims(_ context.Context, olderThan time.Time) (int64, error) {
	m.calls++
	m.gotAge = time.Since(olderThan)
	return m.released, nil
}

type mockLock struct {
	available bool
	acquired  int
	released  int
}

func (l *mockLock) Acquire(_ context.Context) (bool, error) {
	l.acquired++
	return l.available, nil
}

func (l *mockLock) Release(_ context.Context) error {
	l.released++
	return nil
}

func TestRecoveryReleasesStaleClaims(t *testing.T) {
	store := &mockReleaser{released: 3}
	qr := NewQueueRecoveryWorker(store, nil, time.Minute, 5*time.Minute)

	qr.recover(context.Background())

	if store.calls != 1 {
		t.Fatalf("ReleaseStaleClaims calls = %d, want 1", store.calls)
	}
	// Cutoff should be ~5 minutes in the past.
	if store.gotAge < 5*time.Minute || store.gotAge > 5*time.Minute+time.Second {
		t.Errorf("stale cutoff age = %s, want ~5m", store.gotAge)
	}
}

func TestRecoverySkipsWhenLockHeldElsewhere(t *testing.T) {
	store := &mockReleaser{}
	lock := &mockLock{available: false}
	qr := NewQueueRecoveryWorker(store, lock, time.Minute, 5*time.Minute)

	qr.recover(context.Background())

	if store.calls != 0 {
		t.Error("scan ran without holding the lock")
	}
	if lock.released != 0 {
		t.Error("released a lock that was never acquired")
	}
}

func TestRecoveryReleasesLockAfterScan(t *testing.T) {
	store := &mockReleaser{}
	lock := &mockLock{available: true}
	qr := NewQueueRecoveryWorker(store, lock, time.Minute, 5*time.Minute)

	qr.recover(context.Background())

	if store.calls != 1 {
		t.Fatalf("ReleaseStaleClaims calls = %d, want 1", store.calls)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquired=%d released=%d, want 1/1", lock.acquired, lock.released)
	}
}

func TestRecoveryDefaultsApplied(t *testing.T) {
	qr := NewQueueRecoveryWorker(&mockReleaser{}, nil, 0, 0)
	if qr.interval != 2*time.Minute {
		t.Errorf("interval = %s, want 2m", qr.interval)
	}
	if qr.staleAge != 5*time.Minute {
		t.Errorf("staleAge = %s, want 5m", qr.staleAge)
	}
}
