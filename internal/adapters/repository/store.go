// Package repository defines the attempt record store and its drivers.
package repository

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/metrics"
)

// OrderField selects the timestamp listings are ordered by.
type OrderField string

// Supported orderings.
const (
	OrderCreatedAt  OrderField = "createdAt"
	OrderAssessedAt OrderField = "assessedAt"
)

// Query filters and orders an attempt listing. The zero value lists every
// attempt newest first.
type Query struct {
	UserID   string
	Statuses []model.Status
	OrderBy  OrderField
	// Ascending flips the default descending order.
	Ascending bool
	// Limit <= 0 means no limit.
	Limit int
}

// Store provides durable access to attempts and athlete profiles.
type Store interface {
	// CreateAttempt inserts a new attempt. Returns ErrAlreadyExists if the id is taken.
	CreateAttempt(ctx context.Context, a model.TestAttempt) error

	// GetAttempt returns ErrNotFound if the attempt is unknown.
	GetAttempt(ctx context.Context, id string) (model.TestAttempt, error)

	// PatchAttempt applies p and returns the updated attempt. Returns
	// ErrNotFound for unknown ids and ErrConflict when p.IfStatus does not hold.
	PatchAttempt(ctx context.Context, id string, p model.AttemptPatch) (model.TestAttempt, error)

	ListAttempts(ctx context.Context, q Query) ([]model.TestAttempt, error)

	// DeleteAttempt returns ErrNotFound if the attempt is unknown.
	DeleteAttempt(ctx context.Context, id string) error

	// PutAthlete inserts or replaces an athlete profile keyed by its id.
	PutAthlete(ctx context.Context, a model.AthleteProfile) error

	ListAthletes(ctx context.Context) ([]model.AthleteProfile, error)

	// FindAthletes returns the athletes whose clerkId or id is in userIDs.
	FindAthletes(ctx context.Context, userIDs []string) ([]model.AthleteProfile, error)

	CountAthletes(ctx context.Context) (int, error)
}

// matches reports whether a passes the filters of q.
func (q *Query) matches(a *model.TestAttempt) bool {
	if q.UserID != "" && a.UserID != q.UserID {
		return false
	}
	return len(q.Statuses) == 0 || slices.Contains(q.Statuses, a.Status)
}

// sortAttempts orders rows in place for drivers that order in process.
// Ordering by assessedAt puts unassessed rows last; ties fall back to createdAt.
func sortAttempts(rows []model.TestAttempt, q *Query) {
	dir := -1
	if q.Ascending {
		dir = 1
	}
	slices.SortStableFunc(rows, func(a, b model.TestAttempt) int {
		if q.OrderBy == OrderAssessedAt {
			switch {
			case a.AssessedAt == nil && b.AssessedAt != nil:
				return 1
			case a.AssessedAt != nil && b.AssessedAt == nil:
				return -1
			case a.AssessedAt != nil && b.AssessedAt != nil:
				if c := a.AssessedAt.Compare(*b.AssessedAt); c != 0 {
					return dir * c
				}
			}
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return dir * c
		}
		return dir * cmp.Compare(a.ID, b.ID)
	})
}

// applyLimit truncates rows to q.Limit.
func applyLimit(rows []model.TestAttempt, q *Query) []model.TestAttempt {
	if q.Limit > 0 && len(rows) > q.Limit {
		return rows[:q.Limit]
	}
	return rows
}

// observe records the latency of one store call.
func observe(driver, op string, start time.Time) {
	metrics.RecordStoreLatency(driver, op, float64(time.Since(start).Milliseconds()))
}
