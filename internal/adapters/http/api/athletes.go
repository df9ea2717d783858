package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/trials/internal/domain/model"
)

// AthletesHandler receives profile syncs from the onboarding flow and
// lists the synced roster.
type AthletesHandler struct {
	deps Dependencies
}

// NewAthletesHandler creates a new athletes handler.
func NewAthletesHandler(deps Dependencies) *AthletesHandler {
	return &AthletesHandler{deps: deps}
}

// HandlePut handles PUT /athletes/{id}. The path id wins over the body.
func (h *AthletesHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_athlete"
	var p model.AthleteProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p.ID = chi.URLParam(r, "id")
	saved, err := h.deps.PutAthlete(r.Context(), p)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleList handles GET /athletes.
func (h *AthletesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_athletes"
	athletes, err := h.deps.ListAthletes(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, athletes)
}
