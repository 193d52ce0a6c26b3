package api

import (
	"net/http"
	"time"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/pkg/httputil"
)

// ListRetryConfigs returns all configured retry policy overrides.
func (h *Handlers) ListRetryConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.retryCfg.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, configs)
}

type retryConfigRequest struct {
	Scope               string   `json:"scope"`
	ScopeValue          string   `json:"scope_value,omitempty"`
	MaxAttempts         int      `json:"max_attempts"`
	InitialDelaySeconds int      `json:"initial_delay_seconds"`
	BackoffMultiplier   float64  `json:"backoff_multiplier"`
	MaxDelaySeconds     int      `json:"max_delay_seconds"`
	RetryableFailures   []string `json:"retryable_failures,omitempty"`
	RatePerMinute       int      `json:"rate_per_minute,omitempty"`
}

// UpdateRetryConfig upserts the retry policy for one scope.
func (h *Handlers) UpdateRetryConfig(w http.ResponseWriter, r *http.Request) {
	var req retryConfigRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	cfg := &domain.RetryConfig{
		Scope:             domain.RetryScope(req.Scope),
		ScopeValue:        req.ScopeValue,
		MaxAttempts:       req.MaxAttempts,
		InitialDelay:      time.Duration(req.InitialDelaySeconds) * time.Second,
		BackoffMultiplier: req.BackoffMultiplier,
		MaxDelay:          time.Duration(req.MaxDelaySeconds) * time.Second,
		RatePerMinute:     req.RatePerMinute,
	}
	for _, f := range req.RetryableFailures {
		cfg.RetryableFailures = append(cfg.RetryableFailures, domain.FailureType(f))
	}

	if err := h.retryCfg.Update(r.Context(), cfg); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, cfg)
}
