package worker

import (
	"context"
	"testing"
	"time"

	"github.com/bellasuite/notify/internal/config"
)

type mockPurger struct {
	// batches are returned in order; after they run out the purger
	// reports zero rows, ending the batch loop.
	batches []int64
	calls   int
	gotCut  time.Time
	gotSize int
}

func (m *mockPurger) DeleteTerminalBefore(_ context.Context, cutoff time.Time, batch int) (int64, error) {
	m.gotCut = cutoff
	m.gotSize = batch
	if m.calls >= len(m.batches) {
		m.calls++
		return 0, nil
	}
	n := m.batches[m.calls]
	m.calls++
	return n, nil
}

type mockCleaner struct {
	removed int64
	gotDays int
}

func (m *mockCleaner) Cleanup(_ context.Context, olderThanDays int) (int64, error) {
	m.gotDays = olderThanDays
	return m.removed, nil
}

func testRetention() config.RetentionConfig {
	return config.RetentionConfig{
		TerminalNotificationDays: 90,
		ResolvedDeadLetterDays:   30,
		ProcessedWebhookDays:     14,
		CleanupIntervalHours:     1,
	}
}

func TestCleanupDrainsNotificationBatches(t *testing.T) {
	purger := &mockPurger{batches: []int64{10000, 10000, 420}}
	dc := NewDataCleanupWorker(purger, &mockCleaner{}, &mockCleaner{}, nil, testRetention())

	dc.cleanup(context.Background())

	// Three full-or-partial batches plus the terminating zero.
	if purger.calls != 4 {
		t.Errorf("DeleteTerminalBefore calls = %d, want 4", purger.calls)
	}
	if purger.gotSize != cleanupBatchSize {
		t.Errorf("batch size = %d, want %d", purger.gotSize, cleanupBatchSize)
	}
	wantCut := time.Now().AddDate(0, 0, -90)
	if purger.gotCut.After(wantCut.Add(time.Minute)) || purger.gotCut.Before(wantCut.Add(-time.Minute)) {
		t.Errorf("cutoff = %s, want ~%s", purger.gotCut, wantCut)
	}
}

func TestCleanupPassesRetentionWindows(t *testing.T) {
	dl := &mockCleaner{removed: 5}
	wh := &mockCleaner{removed: 2}
	dc := NewDataCleanupWorker(&mockPurger{}, dl, wh, nil, testRetention())

	dc.cleanup(context.Background())

	if dl.gotDays != 30 {
		t.Errorf("dead-letter retention = %d days, want 30", dl.gotDays)
	}
	if wh.gotDays != 14 {
		t.Errorf("webhook retention = %d days, want 14", wh.gotDays)
	}
}

func TestCleanupSkipsWhenLockHeldElsewhere(t *testing.T) {
	purger := &mockPurger{batches: []int64{100}}
	lock := &mockLock{available: false}
	dc := NewDataCleanupWorker(purger, &mockCleaner{}, &mockCleaner{}, lock, testRetention())

	dc.cleanup(context.Background())

	if purger.calls != 0 {
		t.Error("cleanup ran without holding the lock")
	}
}
