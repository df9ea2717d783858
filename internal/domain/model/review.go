package model

// ReviewState is the reviewer-facing state derived from status and score presence.
type ReviewState string

// Review states.
const (
	ReviewPending        ReviewState = "pending"
	ReviewAwaitingReview ReviewState = "awaiting-review"
	ReviewReviewed       ReviewState = "reviewed"
	ReviewFailed         ReviewState = "failed"
)

// DeriveReviewState maps (status, score != nil) onto a ReviewState.
// A scored attempt counts as reviewed only once its status is done.
func DeriveReviewState(status Status, score *int) ReviewState {
	switch status {
	case StatusDone:
		if score != nil {
			return ReviewReviewed
		}
		return ReviewAwaitingReview
	case StatusFailed:
		return ReviewFailed
	default:
		return ReviewPending
	}
}
