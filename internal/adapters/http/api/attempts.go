package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/trials/internal/adapters/intake"
	service "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/domain/assessment"
	"github.com/okian/trials/internal/domain/model"
)

const maxResultBytes = 1 << 20

// AttemptsHandler serves the attempt lifecycle routes.
type AttemptsHandler struct {
	deps     Dependencies
	maxBytes int64
}

// NewAttemptsHandler creates a new attempts handler. maxBytes caps the
// whole multipart body of an upload.
func NewAttemptsHandler(deps Dependencies, maxBytes int64) *AttemptsHandler {
	return &AttemptsHandler{deps: deps, maxBytes: maxBytes}
}

type submitResponse struct {
	ID       string       `json:"id"`
	VideoURL string       `json:"videoUrl"`
	Status   model.Status `json:"status"`
}

// HandleSubmit handles POST /attempts with a multipart video upload.
func (h *AttemptsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_attempt"
	userID, username, err := caller(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeFailure(w, Wrap(op, err))
			return
		}
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("video")
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("missing video file")))
		return
	}
	defer func() { _ = file.Close() }()

	a, err := h.deps.Submit(r.Context(), service.Submission{
		UserID:   userID,
		Username: username,
		TestType: r.FormValue("testType"),
		Filename: header.Filename,
		Video:    file,
	})
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{ID: a.ID, VideoURL: a.VideoURL, Status: a.Status})
}

type commitRequest struct {
	TestType string `json:"testType"`
	VideoURL string `json:"videoUrl"`
}

// HandleCommit handles POST /attempts/commit. It records a video that is
// already stored, typically the videoUrl handed back by a failed upload.
func (h *AttemptsHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	const op = "api.commit_attempt"
	userID, username, err := caller(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := h.deps.CommitUpload(r.Context(), service.Commit{
		UserID:   userID,
		Username: username,
		TestType: req.TestType,
		VideoURL: req.VideoURL,
	})
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{ID: a.ID, VideoURL: a.VideoURL, Status: a.Status})
}

// HandleList handles GET /attempts?userId=&status=&limit=.
func (h *AttemptsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_attempts"
	limit, err := queryLimit(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var statuses []model.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := model.ParseStatus(part)
			if err != nil {
				writeFailure(w, WrapKind(op, ErrBadRequest, err))
				return
			}
			statuses = append(statuses, st)
		}
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))

	var rows []model.TestAttempt
	switch {
	case userID != "" && len(statuses) == 0:
		rows, err = h.deps.ListByUser(r.Context(), userID, limit)
	case userID == "" && len(statuses) == 1:
		rows, err = h.deps.ListByStatus(r.Context(), statuses[0], limit)
	default:
		rows, err = h.deps.ListAttempts(r.Context(), userID, statuses, limit)
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleGet handles GET /attempts/{id}.
func (h *AttemptsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_attempt"
	st, err := h.deps.FetchStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleDelete handles DELETE /attempts/{id}.
func (h *AttemptsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_attempt"
	if err := h.deps.DeleteAttempt(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assessRequest struct {
	Score   *float64 `json:"score"`
	Remarks string   `json:"remarks"`
}

// HandleAssess handles POST /attempts/{id}/assessment. The reviewer is the caller.
func (h *AttemptsHandler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	const op = "api.assess_attempt"
	reviewer, _, err := caller(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Score == nil {
		writeFailure(w, &assessment.ValidationError{Field: assessment.FieldScore, Reason: "is required"})
		return
	}
	a, err := h.deps.Assess(r.Context(), chi.URLParam(r, "id"), *req.Score, req.Remarks, reviewer)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type ackResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
	Duplicate bool   `json:"duplicate"`
}

// HandleResult handles POST /attempts/{id}/result from the analysis worker.
// The outcome is queued and applied asynchronously.
func (h *AttemptsHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_result"
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxResultBytes))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	env, err := intake.Decode(raw)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	msg, err := env.Message(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	dup, err := h.deps.EnqueueResult(r.Context(), msg)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", MessageID: msg.ID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", MessageID: msg.ID})
}

type failRequest struct {
	Reason string `json:"reason"`
}

// HandleFail handles POST /attempts/{id}/fail.
func (h *AttemptsHandler) HandleFail(w http.ResponseWriter, r *http.Request) {
	const op = "api.fail_attempt"
	var req failRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	a, err := h.deps.MarkFailed(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}
