package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/pkg/httputil"
	"github.com/bellasuite/notify/internal/service/queue"
)

type enqueueRequest struct {
	Type         string                 `json:"type"`
	Channel      string                 `json:"channel"`
	CustomerID   string                 `json:"customer_id"`
	LocationID   string                 `json:"location_id,omitempty"`
	Email        string                 `json:"email,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Timezone     string                 `json:"timezone,omitempty"`
	EntityID     string                 `json:"entity_id,omitempty"`
	TemplateData map[string]interface{} `json:"template_data,omitempty"`
	ScheduledFor *time.Time             `json:"scheduled_for,omitempty"`
	Deadline     *time.Time             `json:"deadline,omitempty"`
}

// EnqueueNotification accepts a send request. Business-rule rejections
// (suppressed, over budget, duplicate) come back as a success envelope
// with skipped=true, not as HTTP errors.
func (h *Handlers) EnqueueNotification(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	in := queue.EnqueueInput{
		Type:         domain.NotificationType(req.Type),
		Channel:      domain.Channel(req.Channel),
		CustomerID:   req.CustomerID,
		LocationID:   req.LocationID,
		Email:        req.Email,
		Phone:        req.Phone,
		Timezone:     req.Timezone,
		EntityID:     req.EntityID,
		TemplateData: req.TemplateData,
		Deadline:     req.Deadline,
	}
	if req.ScheduledFor != nil {
		in.ScheduledFor = *req.ScheduledFor
	}

	result, err := h.queue.Enqueue(r.Context(), in)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidRequest) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}

	if result.Skipped {
		httputil.OK(w, result)
		return
	}
	httputil.Created(w, result)
}

// ListNotifications returns queue rows matching the query filters.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := queue.ListFilter{
		Status:     domain.NotificationStatus(q.Get("status")),
		Type:       domain.NotificationType(q.Get("type")),
		Channel:    domain.Channel(q.Get("channel")),
		CustomerID: q.Get("customer_id"),
		Limit:      queryInt(q.Get("limit"), 100),
		Offset:     queryInt(q.Get("offset"), 0),
	}

	items, err := h.queue.List(r.Context(), filter)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, items)
}

// GetNotification returns one queue row.
func (h *Handlers) GetNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.queue.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			httputil.NotFound(w, "notification not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, n)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelNotification cancels a pending or in-flight request.
// Cancelling an already-terminal request succeeds as a no-op.
func (h *Handlers) CancelNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req cancelRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by admin"
	}

	if err := h.queue.Cancel(r.Context(), id, req.Reason); err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			httputil.NotFound(w, "notification not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"id": id, "status": "cancelled"})
}

// GetQueueStats returns the aggregate queue snapshot.
func (h *Handlers) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.QueueStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
