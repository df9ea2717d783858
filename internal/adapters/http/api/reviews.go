package api

import (
	"net/http"
)

// ReviewsHandler serves the reviewer queues.
type ReviewsHandler struct {
	deps Dependencies
}

// NewReviewsHandler creates a new reviews handler.
func NewReviewsHandler(deps Dependencies) *ReviewsHandler {
	return &ReviewsHandler{deps: deps}
}

// HandlePending handles GET /reviews/pending.
func (h *ReviewsHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	const op = "api.pending_reviews"
	limit, err := queryLimit(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	items, err := h.deps.PendingReviews(r.Context(), limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleCompleted handles GET /reviews/completed.
func (h *ReviewsHandler) HandleCompleted(w http.ResponseWriter, r *http.Request) {
	const op = "api.completed_reviews"
	limit, err := queryLimit(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	items, err := h.deps.ReviewedAttempts(r.Context(), limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}
