package worker

import (
	"context"
	"log"
	"time"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/pkg/distlock"
)

// Without periodic cleanup, terminal notifications, resolved dead
// letters, and processed webhook events accumulate indefinitely.
// Notification deletes run in batches to avoid long transactions
// locking the hot table.

const cleanupBatchSize = 10000

// TerminalPurger deletes terminal notification rows past retention.
type TerminalPurger interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, batch int) (int64, error)
}

// RetentionCleaner purges one table's expired rows; implemented by the
// dead-letter service and the webhook ingestor.
type RetentionCleaner interface {
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

// DataCleanupWorker periodically removes expired rows per the
// retention config. One instance runs at a time via the distributed
// lock; a nil lock disables that guard.
type DataCleanupWorker struct {
	notifications TerminalPurger
	deadLetters   RetentionCleaner
	webhookEvents RetentionCleaner
	lock          distlock.DistLock
	cfg           config.RetentionConfig
}

// NewDataCleanupWorker creates a cleanup worker.
func NewDataCleanupWorker(notifications TerminalPurger, deadLetters, webhookEvents RetentionCleaner, lock distlock.DistLock, cfg config.RetentionConfig) *DataCleanupWorker {
	return &DataCleanupWorker{
		notifications: notifications,
		deadLetters:   deadLetters,
		webhookEvents: webhookEvents,
		lock:          lock,
		cfg:           cfg,
	}
}

// Start begins the cleanup loop. It blocks until ctx is cancelled.
func (dc *DataCleanupWorker) Start(ctx context.Context) {
	interval := time.Duration(dc.cfg.CleanupIntervalHours) * time.Hour
	if interval <= 0 {
		interval = time.Hour
	}

	log.Printf("[DataCleanup] Starting (interval=%s, batch_size=%d)", interval, cleanupBatchSize)

	// Run once immediately on start
	dc.cleanup(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DataCleanup] Stopping")
			return
		case <-ticker.C:
			dc.cleanup(ctx)
		}
	}
}

func (dc *DataCleanupWorker) cleanup(ctx context.Context) {
	if dc.lock != nil {
		acquired, err := dc.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[DataCleanup] Lock error: %v", err)
			return
		}
		if !acquired {
			return
		}
		defer dc.lock.Release(ctx)
	}

	start := time.Now()
	log.Println("[DataCleanup] Cleanup cycle starting...")

	dc.cleanupNotifications(ctx)
	dc.cleanupDeadLetters(ctx)
	dc.cleanupWebhookEvents(ctx)

	log.Printf("[DataCleanup] Cleanup cycle completed in %s", time.Since(start).Round(time.Millisecond))
}

func (dc *DataCleanupWorker) cleanupNotifications(ctx context.Context) {
	if dc.notifications == nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -dc.cfg.TerminalNotificationDays)

	var total int64
	for {
		if ctx.Err() != nil {
			return
		}

		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		n, err := dc.notifications.DeleteTerminalBefore(queryCtx, cutoff, cleanupBatchSize)
		cancel()
		if err != nil {
			log.Printf("[DataCleanup] Notification delete error: %v", err)
			break
		}
		if n == 0 {
			break
		}
		total += n

		// Small pause between batches to reduce load
		time.Sleep(100 * time.Millisecond)
	}
	if total > 0 {
		log.Printf("[DataCleanup] Removed %d terminal notifications older than %d days",
			total, dc.cfg.TerminalNotificationDays)
	}
}

func (dc *DataCleanupWorker) cleanupDeadLetters(ctx context.Context) {
	if dc.deadLetters == nil {
		return
	}
	n, err := dc.deadLetters.Cleanup(ctx, dc.cfg.ResolvedDeadLetterDays)
	if err != nil {
		log.Printf("[DataCleanup] Dead-letter cleanup error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[DataCleanup] Removed %d resolved dead letters older than %d days",
			n, dc.cfg.ResolvedDeadLetterDays)
	}
}

func (dc *DataCleanupWorker) cleanupWebhookEvents(ctx context.Context) {
	if dc.webhookEvents == nil {
		return
	}
	n, err := dc.webhookEvents.Cleanup(ctx, dc.cfg.ProcessedWebhookDays)
	if err != nil {
		log.Printf("[DataCleanup] Webhook event cleanup error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[DataCleanup] Removed %d processed webhook events older than %d days",
			n, dc.cfg.ProcessedWebhookDays)
	}
}
