package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/trials/internal/adapters/mq/queue"
	"github.com/okian/trials/internal/adapters/repository"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/internal/domain/result"
	"github.com/okian/trials/pkg/logger"
	"github.com/okian/trials/pkg/metrics"
)

// AttemptStatus is the read-side view of one attempt.
type AttemptStatus struct {
	Attempt     model.TestAttempt `json:"attempt"`
	ReviewState model.ReviewState `json:"reviewState"`
	Result      result.View       `json:"result"`
}

// FetchStatus returns the attempt with its derived review state and typed
// result. Still in-progress reads as pending; a malformed payload reads as
// unparsable. Neither is an error.
func (s *Service) FetchStatus(ctx context.Context, id string) (AttemptStatus, error) {
	a, err := s.store.GetAttempt(ctx, id)
	if err != nil {
		return AttemptStatus{}, storeErr("fetch attempt", id, err)
	}
	v := result.Read(&a)
	if v.Kind == result.KindUnparsable {
		metrics.RecordResultParseError()
		s.logger.Warn(ctx, "stored result could not be parsed", logger.String("attemptId", id))
	}
	return AttemptStatus{Attempt: a, ReviewState: a.ReviewState(), Result: v}, nil
}

// ApplyResult writes a worker outcome onto the attempt.
//
//   - success on in-progress: done, result payload, annotated video
//   - success on done with no result yet (assessed before analysis
//     finished): result and annotated video are filled in, status and
//     assessment untouched
//   - failure on in-progress: failed, result is the error text
//
// Anything else is ErrInvalidTransition.
func (s *Service) ApplyResult(ctx context.Context, id string, o model.Outcome) (model.TestAttempt, error) {
	a, err := s.store.GetAttempt(ctx, id)
	if err != nil {
		return model.TestAttempt{}, storeErr("apply result", id, err)
	}

	var (
		patch model.AttemptPatch
		label string
	)
	switch {
	case o.Success && (a.Status == model.StatusInProgress || (a.Status == model.StatusDone && a.Result == nil)):
		payload, err := result.Encode(a.UserID, o.Username, o.AnalysisData)
		if err != nil {
			return model.TestAttempt{}, fmt.Errorf("apply result %s: %w: %w", id, ErrInvalidResult, err)
		}
		patch.Result = &payload
		if o.AnnotatedVideoURL != "" {
			annotated := o.AnnotatedVideoURL
			patch.AnnotatedVideoURL = &annotated
		}
		patch.IfStatus = []model.Status{a.Status}
		patch.IfResultUnset = true
		label = "backfilled"
		if a.Status == model.StatusInProgress {
			done := model.StatusDone
			patch.Status = &done
			label = "done"
		}
	case !o.Success && a.Status == model.StatusInProgress:
		reason := strings.TrimSpace(o.Error)
		if reason == "" {
			reason = result.DefaultFailure
		}
		failed := model.StatusFailed
		patch = model.AttemptPatch{Status: &failed, Result: &reason, IfStatus: []model.Status{model.StatusInProgress}}
		label = "failed"
	default:
		metrics.RecordResultApplied("rejected")
		return model.TestAttempt{}, fmt.Errorf("apply result %s (success=%t) in status %s: %w",
			id, o.Success, a.Status, ErrInvalidTransition)
	}

	updated, err := s.store.PatchAttempt(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordResultApplied("rejected")
		}
		return model.TestAttempt{}, storeErr("apply result", id, err)
	}
	metrics.RecordResultApplied(label)
	s.logger.Info(ctx, "analysis result applied",
		logger.String("attemptId", id),
		logger.String("outcome", label),
	)
	return updated, nil
}

// MarkFailed is the operator action for an attempt stuck in-progress.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) (model.TestAttempt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = result.DefaultFailure
	}
	failed := model.StatusFailed
	a, err := s.store.PatchAttempt(ctx, id, model.AttemptPatch{
		Status:   &failed,
		Result:   &reason,
		IfStatus: []model.Status{model.StatusInProgress},
	})
	if err != nil {
		return model.TestAttempt{}, storeErr("mark failed", id, err)
	}
	metrics.RecordResultApplied("marked_failed")
	s.logger.Info(ctx, "attempt marked failed", logger.String("attemptId", id), logger.String("reason", reason))
	return a, nil
}

// EnqueueResult de-duplicates a worker result by message id and queues it
// for the workers. A duplicate is accepted without queueing. When the queue
// refuses, the id is forgotten so the sender can retry.
func (s *Service) EnqueueResult(ctx context.Context, m queue.Message) (bool, error) { //nolint:gocritic // hugeParam: queued by value
	if m.ID == "" || m.AttemptID == "" {
		return false, fmt.Errorf("%w: message and attempt ids are required", ErrInvalidResult)
	}
	if s.deduper.SeenAndRecord(ctx, m.ID) {
		metrics.RecordResultDuplicate()
		s.logger.Debug(ctx, "duplicate result message", logger.String("messageId", m.ID))
		return true, nil
	}
	if !s.results.Enqueue(ctx, m) {
		s.deduper.Unrecord(ctx, m.ID)
		if s.results.IsClosed() {
			return false, fmt.Errorf("%w: %w", ErrStopped, queue.ErrClosed)
		}
		return false, fmt.Errorf("%w: %w", ErrBackpressure, queue.ErrFull)
	}
	return false, nil
}
