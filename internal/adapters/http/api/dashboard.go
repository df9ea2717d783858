package api

import (
	"net/http"
)

// DashboardHandler serves the admin dashboard summaries.
type DashboardHandler struct {
	deps Dependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps Dependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleStats handles GET /dashboard/stats.
func (h *DashboardHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard_stats"
	st, err := h.deps.DashboardStats(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRecent handles GET /dashboard/recent?limit=N.
func (h *DashboardHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard_recent"
	n, err := queryLimit(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	feed, err := h.deps.RecentActivity(r.Context(), n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, feed)
}
