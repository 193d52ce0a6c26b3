package api

import (
	"net/http"
	"time"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/pkg/httputil"
)

// GetBudgetUsage returns the current period's usage for a scope.
// scope defaults to global; scope=location requires scope_id.
func (h *Handlers) GetBudgetUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	scope := domain.BudgetScope(q.Get("scope"))
	if scope == "" {
		scope = domain.BudgetScopeGlobal
	}
	scopeID := q.Get("scope_id")
	if scope == domain.BudgetScopeLocation && scopeID == "" {
		httputil.BadRequest(w, "scope_id is required for location scope")
		return
	}

	period, limits, err := h.budget.Usage(r.Context(), scope, scopeID, time.Now())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]interface{}{
		"period": period,
		"limits": limits,
	})
}

// GetBudgetAlerts returns recent budget alerts, newest first.
func (h *Handlers) GetBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"), 50)

	alerts, err := h.budget.Alerts(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, alerts)
}
