package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/trials/internal/adapters/repository"
	"github.com/okian/trials/internal/domain/aggregate"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/internal/domain/types"
	"github.com/okian/trials/pkg/logger"
	"github.com/okian/trials/pkg/metrics"
)

// limit clamps a requested page size; <= 0 means the maximum.
func (s *Service) limit(n int) int {
	if n <= 0 || n > s.maxListLimit {
		return s.maxListLimit
	}
	return n
}

// ListAttempts returns attempts newest first, optionally narrowed to one
// user and a set of statuses.
func (s *Service) ListAttempts(ctx context.Context, userID string, statuses []model.Status, limit int) ([]model.TestAttempt, error) {
	rows, err := s.store.ListAttempts(ctx, repository.Query{
		UserID:   userID,
		Statuses: statuses,
		OrderBy:  repository.OrderCreatedAt,
		Limit:    s.limit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return rows, nil
}

// ListByUser returns one athlete's attempts, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]model.TestAttempt, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrInvalidSubmission)
	}
	return s.ListAttempts(ctx, userID, nil, limit)
}

// ListByStatus returns attempts in one status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.TestAttempt, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubmission, model.ErrUnknownStatus)
	}
	return s.ListAttempts(ctx, "", []model.Status{status}, limit)
}

// PendingReviews lists in-progress attempts, newest first, joined to their
// athletes. Rows whose athlete cannot be resolved are dropped.
func (s *Service) PendingReviews(ctx context.Context, limit int) ([]types.ReviewItem, error) {
	return s.reviewQueue(ctx, "pending", repository.Query{
		Statuses: []model.Status{model.StatusInProgress},
		OrderBy:  repository.OrderCreatedAt,
		Limit:    s.limit(limit),
	})
}

// ReviewedAttempts lists done attempts, most recently assessed first and
// unassessed ones last, joined to their athletes.
func (s *Service) ReviewedAttempts(ctx context.Context, limit int) ([]types.ReviewItem, error) {
	return s.reviewQueue(ctx, "reviewed", repository.Query{
		Statuses: []model.Status{model.StatusDone},
		OrderBy:  repository.OrderAssessedAt,
		Limit:    s.limit(limit),
	})
}

func (s *Service) reviewQueue(ctx context.Context, listing string, q repository.Query) ([]types.ReviewItem, error) {
	attempts, err := s.store.ListAttempts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s reviews: %w", listing, err)
	}
	idx, err := s.athleteIndex(ctx, attempts)
	if err != nil {
		return nil, fmt.Errorf("%s reviews: %w", listing, err)
	}

	items, dropped := aggregate.JoinAthletes(attempts, idx)
	if dropped > 0 {
		metrics.RecordUnresolvedAthletes(listing, dropped)
		s.logger.Debug(ctx, "dropped attempts without athlete",
			logger.String("listing", listing),
			logger.Int("dropped", dropped),
		)
	}
	return items, nil
}

// athleteIndex resolves every attempt owner with one batched lookup.
func (s *Service) athleteIndex(ctx context.Context, attempts []model.TestAttempt) (aggregate.AthleteIndex, error) {
	ids := aggregate.UserIDs(attempts)
	if len(ids) == 0 {
		return aggregate.AthleteIndex{}, nil
	}
	athletes, err := s.store.FindAthletes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find athletes: %w", err)
	}
	return aggregate.IndexAthletes(athletes), nil
}

// Leaderboard ranks every athlete by best assessed score. limit <= 0
// returns all athletes.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	athletes, err := s.store.ListAthletes(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	done, err := s.store.ListAttempts(ctx, repository.Query{Statuses: []model.Status{model.StatusDone}})
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return aggregate.Leaderboard(athletes, done, limit), nil
}

// DashboardStats summarizes athletes and attempts.
func (s *Service) DashboardStats(ctx context.Context) (types.DashboardStats, error) {
	total, err := s.store.CountAthletes(ctx)
	if err != nil {
		return types.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	attempts, err := s.store.ListAttempts(ctx, repository.Query{})
	if err != nil {
		return types.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return aggregate.Stats(total, attempts), nil
}

// RecentActivity returns the n latest attempts with athlete names.
func (s *Service) RecentActivity(ctx context.Context, n int) ([]types.Activity, error) {
	if n <= 0 {
		n = aggregate.DefaultRecentLimit
	}
	attempts, err := s.store.ListAttempts(ctx, repository.Query{
		OrderBy: repository.OrderCreatedAt,
		Limit:   s.limit(n),
	})
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	idx, err := s.athleteIndex(ctx, attempts)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return aggregate.RecentActivity(attempts, idx, n), nil
}

// PutAthlete upserts a synced athlete profile.
func (s *Service) PutAthlete(ctx context.Context, p model.AthleteProfile) (model.AthleteProfile, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.ID == "":
		return model.AthleteProfile{}, fmt.Errorf("%w: missing athlete id", ErrInvalidSubmission)
	case p.Name == "":
		return model.AthleteProfile{}, fmt.Errorf("%w: missing athlete name", ErrInvalidSubmission)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	if err := s.store.PutAthlete(ctx, p); err != nil {
		return model.AthleteProfile{}, fmt.Errorf("put athlete %s: %w", p.ID, err)
	}
	return p, nil
}

// ListAthletes returns every athlete in registration order.
func (s *Service) ListAthletes(ctx context.Context) ([]model.AthleteProfile, error) {
	athletes, err := s.store.ListAthletes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	return athletes, nil
}

// DeleteAttempt removes an attempt record. The stored video is kept.
func (s *Service) DeleteAttempt(ctx context.Context, id string) error {
	if err := s.store.DeleteAttempt(ctx, id); err != nil {
		return storeErr("delete attempt", id, err)
	}
	s.logger.Info(ctx, "attempt deleted", logger.String("attemptId", id))
	return nil
}
