package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/pkg/logger"
	"github.com/bellasuite/notify/internal/sender"
)

// QueueService is the slice of the queue service the pool needs:
// claim due work and report the outcome of each attempt.
type QueueService interface {
	ClaimDue(ctx context.Context, limit int) ([]*domain.NotificationRequest, error)
	ReportSuccess(ctx context.Context, n *domain.NotificationRequest, providerMsgID string) error
	ReportFailure(ctx context.Context, n *domain.NotificationRequest, failure domain.FailureType, sendErr string) error
}

// Registry tracks live worker processes for the ops dashboard.
type Registry interface {
	Register(ctx context.Context, id, hostname string) error
	Heartbeat(ctx context.Context, id string) error
	Deregister(ctx context.Context, id string) error
}

// Limiter throttles outbound sends per provider. Nil-able: without
// Redis the pool sends unthrottled.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, provider string, count int) (allowed bool, waitTime time.Duration, err error)
}

// SendWorkerPool polls the queue for due notifications and delivers
// them through the provider adapters. Claiming is atomic in the store,
// so multiple pool instances (and multiple hosts) can run concurrently
// without double-sending.
type SendWorkerPool struct {
	queue        QueueService
	workerID     string
	numWorkers   int
	batchSize    int
	pollInterval time.Duration
	sendTimeout  time.Duration

	// Stats
	totalSent   int64
	totalFailed int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex

	// Provider adapters (injected)
	emailSender sender.Sender
	smsSender   sender.Sender

	registry Registry
	limiter  Limiter
}

// NewSendWorkerPool creates a pool sized from config.
func NewSendWorkerPool(queue QueueService, cfg config.QueueConfig) *SendWorkerPool {
	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = 8
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	sendTimeout := cfg.SendTimeout()
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}

	return &SendWorkerPool{
		queue:        queue,
		workerID:     fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		numWorkers:   numWorkers,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		sendTimeout:  sendTimeout,
	}
}

// SetSenders sets the provider adapters for each notification type.
func (p *SendWorkerPool) SetSenders(email, sms sender.Sender) {
	p.emailSender = email
	p.smsSender = sms
}

// SetRegistry connects the pool to the worker registry for heartbeats.
func (p *SendWorkerPool) SetRegistry(r Registry) {
	p.registry = r
}

// SetRateLimiter connects the pool to the per-provider rate limiter.
func (p *SendWorkerPool) SetRateLimiter(l Limiter) {
	p.limiter = l
}

// WorkerID returns this pool instance's identifier.
func (p *SendWorkerPool) WorkerID() string {
	return p.workerID
}

// Start begins the worker pool.
func (p *SendWorkerPool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	log.Printf("[SendWorkerPool] Starting %d workers (batch_size=%d, poll=%s)",
		p.numWorkers, p.batchSize, p.pollInterval)

	if p.registry != nil {
		if err := p.registry.Register(p.ctx, p.workerID, hostname()); err != nil {
			log.Printf("[SendWorkerPool] Register error: %v", err)
		}
		go p.heartbeatLoop()
	}

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully stops the worker pool.
func (p *SendWorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	log.Println("[SendWorkerPool] Stopping workers...")
	p.wg.Wait()

	if p.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.registry.Deregister(ctx, p.workerID); err != nil {
			log.Printf("[SendWorkerPool] Deregister error: %v", err)
		}
	}

	log.Printf("[SendWorkerPool] Stopped. Total sent: %d, failed: %d",
		atomic.LoadInt64(&p.totalSent), atomic.LoadInt64(&p.totalFailed))
}

// Stats returns current statistics.
func (p *SendWorkerPool) Stats() map[string]int64 {
	return map[string]int64{
		"total_sent":   atomic.LoadInt64(&p.totalSent),
		"total_failed": atomic.LoadInt64(&p.totalFailed),
	}
}

// worker is the main worker loop.
func (p *SendWorkerPool) worker(workerNum int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
			claimCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
			items, err := p.queue.ClaimDue(claimCtx, p.batchSize)
			cancel()
			if err != nil {
				log.Printf("[SendWorkerPool] Worker %d: claim error: %v", workerNum, err)
				time.Sleep(time.Second)
				continue
			}

			if len(items) == 0 {
				time.Sleep(p.pollInterval)
				continue
			}

			for _, item := range items {
				if err := p.processItem(item); err != nil {
					log.Printf("[SendWorkerPool] Worker %d: item %s: %v", workerNum, item.ID, err)
				}
			}
		}
	}
}

// processItem delivers one claimed notification and reports the outcome.
// Every claimed row reaches exactly one of ReportSuccess or ReportFailure,
// so nothing stays stuck in sending on this code path.
func (p *SendWorkerPool) processItem(n *domain.NotificationRequest) error {
	snd := p.senderFor(n.Type)
	if snd == nil {
		atomic.AddInt64(&p.totalFailed, 1)
		return p.queue.ReportFailure(p.ctx, n, domain.FailureProviderError,
			fmt.Sprintf("no sender configured for %s", n.Type))
	}

	if !p.waitForRateLimit(snd.Provider()) {
		// Shutting down mid-wait; the recovery worker will release the claim.
		return nil
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.sendTimeout)
	defer cancel()

	msg := &sender.Message{
		NotificationID: n.ID,
		Type:           n.Type,
		Recipient:      n.Recipient(),
		Subject:        n.Subject,
		Body:           n.Body,
	}

	result, err := snd.Send(ctx, msg)
	if err != nil {
		atomic.AddInt64(&p.totalFailed, 1)
		failure := domain.FailureProviderError
		if errors.Is(err, context.DeadlineExceeded) {
			failure = domain.FailureTimeout
		}
		return p.queue.ReportFailure(p.ctx, n, failure, err.Error())
	}

	if !result.Success {
		atomic.AddInt64(&p.totalFailed, 1)
		errMsg := result.ErrorCode
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		if errMsg == "" {
			errMsg = "provider rejected message"
		}
		return p.queue.ReportFailure(p.ctx, n, result.FailureType(), errMsg)
	}

	atomic.AddInt64(&p.totalSent, 1)
	if err := p.queue.ReportSuccess(p.ctx, n, result.ProviderMsgID); err != nil {
		log.Printf("[SendWorkerPool] Error marking %s sent for %s: %v",
			n.ID, redactRecipient(n), err)
		return err
	}
	return nil
}

func redactRecipient(n *domain.NotificationRequest) string {
	if n.Type == domain.TypeSMS {
		return logger.RedactPhone(n.Phone)
	}
	return logger.RedactEmail(n.Email)
}

// waitForRateLimit blocks until the provider limiter admits one send or
// the pool shuts down. Returns false only on shutdown. Limiter errors
// fail open: a Redis outage must not halt delivery.
func (p *SendWorkerPool) waitForRateLimit(provider string) bool {
	if p.limiter == nil {
		return true
	}

	for {
		allowed, wait, err := p.limiter.CheckAndIncrement(p.ctx, provider, 1)
		if err != nil {
			log.Printf("[SendWorkerPool] Rate limit check error for %s: %v", provider, err)
			return true
		}
		if allowed {
			return true
		}
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-p.ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (p *SendWorkerPool) senderFor(t domain.NotificationType) sender.Sender {
	if t == domain.TypeSMS {
		return p.smsSender
	}
	return p.emailSender
}

// heartbeatLoop sends periodic heartbeats to the registry.
func (p *SendWorkerPool) heartbeatLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.registry.Heartbeat(p.ctx, p.workerID); err != nil {
				log.Printf("[SendWorkerPool] Heartbeat error: %v", err)
			}
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "notify-worker"
	}
	return h
}
