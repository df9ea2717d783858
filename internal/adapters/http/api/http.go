// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/trials/internal/adapters/intake"
	"github.com/okian/trials/internal/adapters/mq/queue"
	service "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/domain/assessment"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/internal/domain/types"
)

// Identity headers set by the identity provider in front of the API.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const (
	defaultMaxMemory = 32 << 20
	// defaultMaxUploadBytes matches the service's default video cap.
	defaultMaxUploadBytes = 200 << 20
	// multipartSlack covers form fields and part headers around the video.
	multipartSlack = 64 << 10
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Submit(ctx context.Context, sub service.Submission) (model.TestAttempt, error)
	CommitUpload(ctx context.Context, c service.Commit) (model.TestAttempt, error)
	FetchStatus(ctx context.Context, id string) (service.AttemptStatus, error)
	ListAttempts(ctx context.Context, userID string, statuses []model.Status, limit int) ([]model.TestAttempt, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.TestAttempt, error)
	ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.TestAttempt, error)
	DeleteAttempt(ctx context.Context, id string) error

	Assess(ctx context.Context, id string, score float64, remarks, reviewerID string) (model.TestAttempt, error)
	EnqueueResult(ctx context.Context, m queue.Message) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (model.TestAttempt, error)

	PendingReviews(ctx context.Context, limit int) ([]types.ReviewItem, error)
	ReviewedAttempts(ctx context.Context, limit int) ([]types.ReviewItem, error)
	Leaderboard(ctx context.Context, limit int) ([]types.Entry, error)
	DashboardStats(ctx context.Context) (types.DashboardStats, error)
	RecentActivity(ctx context.Context, n int) ([]types.Activity, error)
	PutAthlete(ctx context.Context, p model.AthleteProfile) (model.AthleteProfile, error)
	ListAthletes(ctx context.Context) ([]model.AthleteProfile, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	attemptsHandler    *AttemptsHandler
	reviewsHandler     *ReviewsHandler
	leaderboardHandler *LeaderboardHandler
	dashboardHandler   *DashboardHandler
	athletesHandler    *AthletesHandler
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxUploadBytes int64
}

// WithMaxUploadBytes caps the video size accepted by POST /attempts.
// Bodies larger than n plus form overhead are cut off with 413.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	cfg := serverConfig{maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		attemptsHandler:    NewAttemptsHandler(deps, cfg.maxUploadBytes+multipartSlack),
		reviewsHandler:     NewReviewsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		dashboardHandler:   NewDashboardHandler(deps),
		athletesHandler:    NewAthletesHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/attempts", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.attemptsHandler.HandleSubmit, "attempts_submit"))
		r.Post("/commit", MetricsMiddleware(s.attemptsHandler.HandleCommit, "attempts_commit"))
		r.Get("/", MetricsMiddleware(s.attemptsHandler.HandleList, "attempts_list"))
		r.Get("/{id}", MetricsMiddleware(s.attemptsHandler.HandleGet, "attempts_get"))
		r.Delete("/{id}", MetricsMiddleware(s.attemptsHandler.HandleDelete, "attempts_delete"))
		r.Post("/{id}/assessment", MetricsMiddleware(s.attemptsHandler.HandleAssess, "attempts_assess"))
		r.Post("/{id}/result", MetricsMiddleware(s.attemptsHandler.HandleResult, "attempts_result"))
		r.Post("/{id}/fail", MetricsMiddleware(s.attemptsHandler.HandleFail, "attempts_fail"))
	})

	r.Get("/reviews/pending", MetricsMiddleware(s.reviewsHandler.HandlePending, "reviews_pending"))
	r.Get("/reviews/completed", MetricsMiddleware(s.reviewsHandler.HandleCompleted, "reviews_completed"))
	r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	r.Get("/dashboard/stats", MetricsMiddleware(s.dashboardHandler.HandleStats, "dashboard_stats"))
	r.Get("/dashboard/recent", MetricsMiddleware(s.dashboardHandler.HandleRecent, "dashboard_recent"))
	r.Get("/athletes", MetricsMiddleware(s.athletesHandler.HandleList, "athletes_list"))
	r.Put("/athletes/{id}", MetricsMiddleware(s.athletesHandler.HandlePut, "athletes_put"))
}

type errorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	var verr *assessment.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	var cerr *service.CommitError
	if errors.As(err, &cerr) {
		resp.VideoURL = cerr.VideoURL
	}
	writeJSON(w, status, resp)
}

// writeFailure maps service errors onto status codes.
func writeFailure(w http.ResponseWriter, err error) {
	var (
		verr *assessment.ValidationError
		mbe  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_error", err)
	case errors.As(err, &mbe):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, service.ErrInvalidResult),
		errors.Is(err, intake.ErrMalformed),
		errors.Is(err, intake.ErrMissingField),
		errors.Is(err, intake.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err)
	case errors.Is(err, service.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, "upload_failed", err)
	case errors.Is(err, service.ErrRecordCommit):
		writeError(w, http.StatusBadGateway, "commit_failed", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// queryLimit reads ?limit=N. Missing means 0, the service default.
func queryLimit(r *http.Request, op string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer"))
	}
	return n, nil
}

// caller returns the identity headers. The user id is required.
func caller(r *http.Request, op string) (id, name string, err error) {
	id = strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return "", "", NewKind(op, ErrUnauthorized)
	}
	return id, strings.TrimSpace(r.Header.Get(HeaderUserName)), nil
}
