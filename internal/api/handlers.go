package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/pkg/httputil"
	"github.com/bellasuite/notify/internal/repository/postgres"
	"github.com/bellasuite/notify/internal/service/consent"
	"github.com/bellasuite/notify/internal/service/deadletter"
	"github.com/bellasuite/notify/internal/service/queue"
	"github.com/bellasuite/notify/internal/service/webhook"
)

// QueueAPI is the slice of the queue service the handlers use.
type QueueAPI interface {
	Enqueue(ctx context.Context, in queue.EnqueueInput) (queue.EnqueueResult, error)
	Cancel(ctx context.Context, id, reason string) error
	Get(ctx context.Context, id string) (*domain.NotificationRequest, error)
	List(ctx context.Context, filter queue.ListFilter) ([]*domain.NotificationRequest, error)
	QueueStats(ctx context.Context) (*queue.Stats, error)
}

// DeadLetterAPI is the slice of the dead-letter service the handlers use.
type DeadLetterAPI interface {
	Retry(ctx context.Context, id string, in deadletter.RetryInput) (deadletter.RetryResult, error)
	Resolve(ctx context.Context, id string, in deadletter.ResolveInput) error
	Get(ctx context.Context, id string) (*domain.DeadLetterItem, error)
	List(ctx context.Context, f deadletter.Filter) ([]*domain.DeadLetterItem, error)
	GetStats(ctx context.Context) (*deadletter.Stats, error)
}

// BudgetAPI exposes budget usage and alerts.
type BudgetAPI interface {
	Usage(ctx context.Context, scope domain.BudgetScope, scopeID string, now time.Time) (*domain.BudgetPeriod, domain.BudgetLimits, error)
	Alerts(ctx context.Context, limit int) ([]*domain.BudgetAlert, error)
}

// RetryConfigAPI exposes retry policy administration.
type RetryConfigAPI interface {
	List(ctx context.Context) ([]*domain.RetryConfig, error)
	Update(ctx context.Context, cfg *domain.RetryConfig) error
}

// ConsentAPI is the slice of the consent service the handlers use.
type ConsentAPI interface {
	RecordConsent(ctx context.Context, rec *domain.ConsentRecord) error
	Suppress(ctx context.Context, email, phone string, st domain.SuppressionType, reason string, source domain.SuppressionSource) (*domain.SuppressionEntry, error)
	Unsubscribe(ctx context.Context, customerID, email, phone string, channel domain.Channel) (*domain.SuppressionEntry, error)
	Reactivate(ctx context.Context, token string) error
	ListSuppressions(ctx context.Context, f consent.SuppressionFilter) ([]domain.SuppressionEntry, int, error)
}

// WebhookAPI ingests provider callbacks.
type WebhookAPI interface {
	Ingest(ctx context.Context, in webhook.IngestInput) (webhook.IngestResult, error)
	ListEvents(ctx context.Context, processed *bool, limit, offset int) ([]*domain.WebhookEvent, error)
}

// WorkerListAPI lists registered workers for the ops view.
type WorkerListAPI interface {
	List(ctx context.Context) ([]postgres.WorkerInfo, error)
}

// Handlers holds the service dependencies for all HTTP handlers.
type Handlers struct {
	queue       QueueAPI
	deadLetters DeadLetterAPI
	budget      BudgetAPI
	retryCfg    RetryConfigAPI
	consent     ConsentAPI
	webhooks    WebhookAPI
	workers     WorkerListAPI
}

// NewHandlers creates the handler set. Nil services disable their
// routes with a 503 rather than panicking.
func NewHandlers(q QueueAPI, dl DeadLetterAPI, b BudgetAPI, rc RetryConfigAPI, c ConsentAPI, wh WebhookAPI, workers WorkerListAPI) *Handlers {
	return &Handlers{
		queue:       q,
		deadLetters: dl,
		budget:      b,
		retryCfg:    rc,
		consent:     c,
		webhooks:    wh,
		workers:     workers,
	}
}

// HealthCheck responds with service status.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListWorkers returns the registered send workers.
func (h *Handlers) ListWorkers(w http.ResponseWriter, r *http.Request) {
	if h.workers == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "worker registry not configured")
		return
	}
	list, err := h.workers.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, list)
}
