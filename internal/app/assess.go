package service

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/trials/internal/domain/assessment"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
	"github.com/okian/trials/pkg/metrics"
)

// FieldReviewer names the reviewer in validation errors.
const FieldReviewer = "reviewerId"

// Assess records a reviewer's score and remarks and marks the attempt done.
// Invalid input returns *assessment.ValidationError before any write.
// Re-assessing overwrites the previous assessment. Failed attempts cannot
// be assessed.
func (s *Service) Assess(ctx context.Context, id string, score float64, remarks, reviewerID string) (model.TestAttempt, error) {
	as, err := assessment.Validate(score, remarks)
	if err == nil && strings.TrimSpace(reviewerID) == "" {
		err = &assessment.ValidationError{Field: FieldReviewer, Reason: "must not be empty"}
	}
	if err != nil {
		var verr *assessment.ValidationError
		if errors.As(err, &verr) {
			metrics.RecordValidationRejection(verr.Field)
		}
		return model.TestAttempt{}, err
	}

	done := model.StatusDone
	now := s.now().UTC()
	reviewer := strings.TrimSpace(reviewerID)
	a, err := s.store.PatchAttempt(ctx, id, model.AttemptPatch{
		Status:     &done,
		Score:      &as.Score,
		Remarks:    &as.Remarks,
		AssessedBy: &reviewer,
		AssessedAt: &now,
		IfStatus:   []model.Status{model.StatusInProgress, model.StatusDone},
	})
	if err != nil {
		return model.TestAttempt{}, storeErr("assess", id, err)
	}

	metrics.RecordAssessment()
	s.logger.Info(ctx, "attempt assessed",
		logger.String("attemptId", id),
		logger.String("reviewer", reviewer),
		logger.Int("score", as.Score),
	)
	return a, nil
}
