package worker

import (
	"context"
	"log"
	"time"

	"github.com/bellasuite/notify/internal/pkg/distlock"
)

// StaleClaimReleaser is the store operation that returns rows stuck in
// sending back to pending.
type StaleClaimReleaser interface {
	ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueueRecoveryWorker periodically releases claims held longer than the
// stale age. A claim only goes stale when a worker dies between
// claiming a row and reporting the outcome; releasing it lets another
// worker retry the send. The distributed lock keeps the scan to one
// process when several server instances run.
type QueueRecoveryWorker struct {
	store    StaleClaimReleaser
	lock     distlock.DistLock
	interval time.Duration
	staleAge time.Duration
}

// NewQueueRecoveryWorker creates a recovery worker. A nil lock means
// the scan runs unconditionally (single-instance deployments).
func NewQueueRecoveryWorker(store StaleClaimReleaser, lock distlock.DistLock, interval, staleAge time.Duration) *QueueRecoveryWorker {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if staleAge <= 0 {
		staleAge = 5 * time.Minute
	}
	return &QueueRecoveryWorker{
		store:    store,
		lock:     lock,
		interval: interval,
		staleAge: staleAge,
	}
}

// Start begins the recovery loop. It blocks until ctx is cancelled.
func (qr *QueueRecoveryWorker) Start(ctx context.Context) {
	log.Printf("[QueueRecovery] Starting (interval=%s, stale_age=%s)", qr.interval, qr.staleAge)

	ticker := time.NewTicker(qr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[QueueRecovery] Stopping")
			return
		case <-ticker.C:
			qr.recover(ctx)
		}
	}
}

func (qr *QueueRecoveryWorker) recover(ctx context.Context) {
	if qr.lock != nil {
		acquired, err := qr.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[QueueRecovery] Lock error: %v", err)
			return
		}
		if !acquired {
			return
		}
		defer qr.lock.Release(ctx)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := qr.store.ReleaseStaleClaims(queryCtx, time.Now().Add(-qr.staleAge))
	if err != nil {
		log.Printf("[QueueRecovery] Release error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[QueueRecovery] Released %d stale claims", n)
	}
}
