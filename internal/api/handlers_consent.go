package api

import (
	"errors"
	"net/http"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/pkg/httputil"
	"github.com/bellasuite/notify/internal/service/consent"
)

type consentRequest struct {
	CustomerID string `json:"customer_id"`
	Channel    string `json:"channel"`
	Type       string `json:"consent_type"`
	Consented  bool   `json:"consented"`
	Source     string `json:"source,omitempty"`
	SourceIP   string `json:"source_ip,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// RecordConsent upserts a consent decision. The latest record wins;
// history is kept for provenance.
func (h *Handlers) RecordConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CustomerID == "" || req.Channel == "" || req.Type == "" {
		httputil.BadRequest(w, "customer_id, channel and consent_type are required")
		return
	}

	source := domain.ConsentSource(req.Source)
	if source == "" {
		source = domain.ConsentSourceAdmin
	}

	rec := &domain.ConsentRecord{
		CustomerID: req.CustomerID,
		Channel:    domain.Channel(req.Channel),
		Type:       domain.ConsentType(req.Type),
		Consented:  req.Consented,
		Source:     source,
		SourceIP:   req.SourceIP,
		UserAgent:  req.UserAgent,
	}

	if err := h.consent.RecordConsent(r.Context(), rec); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, rec)
}

// ListSuppressions returns suppression entries with a total count for
// paging.
func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := consent.SuppressionFilter{
		Type:   q.Get("type"),
		Source: q.Get("source"),
		Search: q.Get("search"),
		Limit:  queryInt(q.Get("limit"), 100),
		Offset: queryInt(q.Get("offset"), 0),
	}

	entries, total, err := h.consent.ListSuppressions(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

type suppressionRequest struct {
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// CreateSuppression admin-blocks an address or number.
func (h *Handlers) CreateSuppression(w http.ResponseWriter, r *http.Request) {
	var req suppressionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" && req.Phone == "" {
		httputil.BadRequest(w, "email or phone is required")
		return
	}

	st := domain.SuppressionType(req.Type)
	if st == "" {
		st = domain.SuppressAdminBlock
	}

	entry, err := h.consent.Suppress(r.Context(), req.Email, req.Phone, st, req.Reason, domain.SuppressionSourceAdmin)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, entry)
}

type unsubscribeRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Channel    string `json:"channel,omitempty"`
}

// Unsubscribe is the recipient-facing opt-out. It creates a
// suppression entry and returns the reactivation token the
// confirmation page embeds in its undo link.
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" && req.Phone == "" {
		httputil.BadRequest(w, "email or phone is required")
		return
	}

	entry, err := h.consent.Unsubscribe(r.Context(), req.CustomerID, req.Email, req.Phone, domain.Channel(req.Channel))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{
		"reactivation_token": entry.ReactivationToken,
	})
}

type reactivateRequest struct {
	Token string `json:"token"`
}

// Reactivate clears an unsubscribe block using its token.
func (h *Handlers) Reactivate(w http.ResponseWriter, r *http.Request) {
	var req reactivateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.BadRequest(w, "token is required")
		return
	}

	if err := h.consent.Reactivate(r.Context(), req.Token); err != nil {
		if errors.Is(err, consent.ErrInvalidToken) {
			httputil.NotFound(w, "invalid reactivation token")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "reactivated"})
}
