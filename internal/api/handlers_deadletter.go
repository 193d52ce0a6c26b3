package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/pkg/httputil"
	"github.com/bellasuite/notify/internal/service/deadletter"
)

// ListDeadLetters returns dead-letter items matching the query filters.
func (h *Handlers) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := deadletter.Filter{
		FailureType: domain.FailureType(q.Get("failure_type")),
		Channel:     domain.Channel(q.Get("channel")),
		Limit:       queryInt(q.Get("limit"), 100),
		Offset:      queryInt(q.Get("offset"), 0),
	}
	if v := q.Get("resolved"); v != "" {
		resolved := v == "true"
		f.Resolved = &resolved
	}

	items, err := h.deadLetters.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, items)
}

// GetDeadLetter returns one dead-letter item.
func (h *Handlers) GetDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.deadLetters.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, deadletter.ErrNotFound) {
			httputil.NotFound(w, "dead letter item not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, item)
}

// GetDeadLetterStats returns aggregate dead-letter statistics.
func (h *Handlers) GetDeadLetterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deadLetters.GetStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// RetryDeadLetter spawns a fresh notification from a dead-letter item.
func (h *Handlers) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in deadletter.RetryInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.Actor == "" {
		httputil.BadRequest(w, "actor is required")
		return
	}

	result, err := h.deadLetters.Retry(r.Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, deadletter.ErrNotFound):
			httputil.NotFound(w, "dead letter item not found")
		case errors.Is(err, deadletter.ErrAlreadyResolved):
			httputil.Conflict(w, "dead letter item already resolved")
		case errors.Is(err, deadletter.ErrNotRetryEligible):
			httputil.Conflict(w, "dead letter item is not retry eligible")
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.Created(w, result)
}

// ResolveDeadLetter closes a dead-letter item without requeueing.
func (h *Handlers) ResolveDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in deadletter.ResolveInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.Actor == "" {
		httputil.BadRequest(w, "actor is required")
		return
	}

	if err := h.deadLetters.Resolve(r.Context(), id, in); err != nil {
		switch {
		case errors.Is(err, deadletter.ErrNotFound):
			httputil.NotFound(w, "dead letter item not found")
		case errors.Is(err, deadletter.ErrAlreadyResolved):
			httputil.Conflict(w, "dead letter item already resolved")
		default:
			httputil.BadRequest(w, err.Error())
		}
		return
	}
	httputil.OK(w, map[string]string{"id": id, "resolved": "true"})
}
