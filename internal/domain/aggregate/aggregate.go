// Package aggregate derives leaderboards, review queues and dashboard figures
// from the attempt collection. Every function here is pure.
package aggregate

import (
	"cmp"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/internal/domain/types"
)

// Defaults for read-side helpers.
const (
	DefaultRecentLimit = 5
	UnknownAthlete     = "Unknown Athlete"
)

// AthleteIndex resolves a userId to its athlete by clerkId or record id.
type AthleteIndex map[string]model.AthleteProfile

// IndexAthletes builds the lookup used by the joins. A clerkId match wins
// over a record id match for the same key.
func IndexAthletes(athletes []model.AthleteProfile) AthleteIndex {
	idx := make(AthleteIndex, len(athletes)*2)
	for _, a := range athletes {
		if a.ID != "" {
			idx[a.ID] = a
		}
	}
	for _, a := range athletes {
		if a.ClerkID != "" {
			idx[a.ClerkID] = a
		}
	}
	return idx
}

// Resolve returns the athlete for a userId.
func (idx AthleteIndex) Resolve(userID string) (model.AthleteProfile, bool) {
	a, ok := idx[userID]
	return a, ok
}

// UserIDs returns the distinct userIds of attempts, in first-seen order.
func UserIDs(attempts []model.TestAttempt) []string {
	return lo.Uniq(lo.Map(attempts, func(a model.TestAttempt, _ int) string { return a.UserID }))
}

// JoinAthletes pairs each attempt with its athlete. Attempts whose athlete
// cannot be resolved are dropped; the number dropped is returned.
// Input order is preserved.
func JoinAthletes(attempts []model.TestAttempt, idx AthleteIndex) ([]types.ReviewItem, int) {
	out := make([]types.ReviewItem, 0, len(attempts))
	for i := range attempts {
		athlete, ok := idx.Resolve(attempts[i].UserID)
		if !ok {
			continue
		}
		out = append(out, types.ReviewItem{
			Attempt:     attempts[i],
			Athlete:     athlete,
			ReviewState: attempts[i].ReviewState(),
		})
	}
	return out, len(attempts) - len(out)
}

// scored reports whether an attempt counts toward scores: done and assessed.
func scored(a model.TestAttempt) bool {
	return a.Status == model.StatusDone && a.Score != nil
}

// Leaderboard returns one entry per athlete with their best score across
// done, scored attempts (0 when none). Athletes are first put in
// registration order (createdAt, then id) and then stably sorted by score
// descending, so ties keep registration order. limit <= 0 means no limit.
func Leaderboard(athletes []model.AthleteProfile, attempts []model.TestAttempt, limit int) []types.Entry {
	best := make(map[string]int)
	for _, a := range lo.Filter(attempts, func(a model.TestAttempt, _ int) bool { return scored(a) }) {
		if cur, ok := best[a.UserID]; !ok || *a.Score > cur {
			best[a.UserID] = *a.Score
		}
	}

	ordered := slices.Clone(athletes)
	slices.SortStableFunc(ordered, func(a, b model.AthleteProfile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	entries := lo.Map(ordered, func(a model.AthleteProfile, _ int) types.Entry {
		score := 0
		for _, key := range []string{a.ClerkID, a.ID} {
			if s, ok := best[key]; ok && key != "" && s > score {
				score = s
			}
		}
		return types.Entry{
			AthleteID: a.ID,
			ClerkID:   a.ClerkID,
			Name:      a.Name,
			Sport:     a.Sport,
			City:      a.City,
			BestScore: score,
			Band:      ScoreBand(score),
		}
	})
	slices.SortStableFunc(entries, func(a, b types.Entry) int {
		return cmp.Compare(b.BestScore, a.BestScore)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Stats summarizes the collection. AverageScore is the rounded mean of
// done, scored attempts; 0 when there are none.
func Stats(totalAthletes int, attempts []model.TestAttempt) types.DashboardStats {
	byStatus := lo.CountValuesBy(attempts, func(a model.TestAttempt) model.Status { return a.Status })
	scores := lo.FilterMap(attempts, func(a model.TestAttempt, _ int) (int, bool) {
		if !scored(a) {
			return 0, false
		}
		return *a.Score, true
	})

	avg := 0
	if len(scores) > 0 {
		avg = int(math.Round(float64(lo.Sum(scores)) / float64(len(scores))))
	}

	return types.DashboardStats{
		TotalAthletes: totalAthletes,
		TotalAttempts: len(attempts),
		Pending:       byStatus[model.StatusInProgress],
		Completed:     byStatus[model.StatusDone],
		Failed:        byStatus[model.StatusFailed],
		Assessed:      lo.CountBy(attempts, func(a model.TestAttempt) bool { return a.Score != nil }),
		AverageScore:  avg,
	}
}

// RecentActivity returns the n most recently created attempts with their
// athlete's name. Unresolved athletes are labelled, not dropped.
func RecentActivity(attempts []model.TestAttempt, idx AthleteIndex, n int) []types.Activity {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	sorted := slices.Clone(attempts)
	slices.SortStableFunc(sorted, func(a, b model.TestAttempt) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return lo.Map(sorted, func(a model.TestAttempt, _ int) types.Activity {
		name := UnknownAthlete
		if athlete, ok := idx.Resolve(a.UserID); ok && athlete.Name != "" {
			name = athlete.Name
		}
		return types.Activity{Attempt: a, AthleteName: name, TestTitle: a.TestType.Title()}
	})
}

// ScoreBand labels a score for display.
func ScoreBand(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Good"
	case score >= 70:
		return "Average"
	case score >= 60:
		return "Below Average"
	default:
		return "Poor"
	}
}
