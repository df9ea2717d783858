// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"slices"
	"time"
)

// Status is the analysis-phase state of a test attempt.
type Status string

// Attempt statuses.
const (
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrUnknownStatus
	}
	return s, nil
}

// CanTransition reports whether an attempt in state from may be written with state to.
// done -> done is allowed so that assessments can be repeated.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusInProgress:
		return to == StatusDone || to == StatusFailed
	case StatusDone:
		return to == StatusDone
	default:
		return false
	}
}

// TestAttempt is one athlete's submission of a video for a test type.
type TestAttempt struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	TestType          TestType   `json:"testType"`
	VideoURL          string     `json:"videoUrl"`
	AnnotatedVideoURL *string    `json:"annotatedVideoUrl,omitempty"`
	Status            Status     `json:"status"`
	Result            *string    `json:"result,omitempty"`
	Score             *int       `json:"score,omitempty"`
	Remarks           *string    `json:"remarks,omitempty"`
	AssessedBy        *string    `json:"assessedBy,omitempty"`
	AssessedAt        *time.Time `json:"assessedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// ReviewState returns the derived review sub-state of the attempt.
func (a *TestAttempt) ReviewState() ReviewState {
	return DeriveReviewState(a.Status, a.Score)
}

// Assessed reports whether a reviewer has scored the attempt.
func (a *TestAttempt) Assessed() bool {
	return a.Score != nil
}

// AttemptPatch is a partial update. Nil fields are left untouched.
type AttemptPatch struct {
	Status            *Status
	Result            *string
	AnnotatedVideoURL *string
	Score             *int
	Remarks           *string
	AssessedBy        *string
	AssessedAt        *time.Time

	// IfStatus, when non-empty, makes the patch conditional on the stored status.
	IfStatus []Status
	// IfResultUnset makes the patch conditional on no result being stored.
	IfResultUnset bool
}

// Allows reports whether the status precondition holds for current.
func (p *AttemptPatch) Allows(current Status) bool {
	return len(p.IfStatus) == 0 || slices.Contains(p.IfStatus, current)
}

// Holds reports whether every precondition holds for the stored attempt.
func (p *AttemptPatch) Holds(a *TestAttempt) bool {
	return p.Allows(a.Status) && (!p.IfResultUnset || a.Result == nil)
}

// Empty reports whether the patch writes nothing.
func (p *AttemptPatch) Empty() bool {
	return p.Status == nil && p.Result == nil && p.AnnotatedVideoURL == nil &&
		p.Score == nil && p.Remarks == nil && p.AssessedBy == nil && p.AssessedAt == nil
}

// Apply writes the non-nil fields of p onto a.
func (p *AttemptPatch) Apply(a *TestAttempt) {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Result != nil {
		a.Result = copyPtr(p.Result)
	}
	if p.AnnotatedVideoURL != nil {
		a.AnnotatedVideoURL = copyPtr(p.AnnotatedVideoURL)
	}
	if p.Score != nil {
		a.Score = copyPtr(p.Score)
	}
	if p.Remarks != nil {
		a.Remarks = copyPtr(p.Remarks)
	}
	if p.AssessedBy != nil {
		a.AssessedBy = copyPtr(p.AssessedBy)
	}
	if p.AssessedAt != nil {
		a.AssessedAt = copyPtr(p.AssessedAt)
	}
}

// Clone returns a deep copy of the attempt.
func (a *TestAttempt) Clone() TestAttempt {
	c := *a
	c.AnnotatedVideoURL = copyPtr(a.AnnotatedVideoURL)
	c.Result = copyPtr(a.Result)
	c.Score = copyPtr(a.Score)
	c.Remarks = copyPtr(a.Remarks)
	c.AssessedBy = copyPtr(a.AssessedBy)
	c.AssessedAt = copyPtr(a.AssessedAt)
	return c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Outcome is what the external analysis worker reports for an attempt.
type Outcome struct {
	Success           bool            `json:"success"`
	AnalysisData      json.RawMessage `json:"analysisData,omitempty"`
	Username          string          `json:"username,omitempty"`
	AnnotatedVideoURL string          `json:"annotatedVideoUrl,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// AthleteProfile is the read-only athlete record owned by the onboarding flow.
// Attempts resolve to it by ClerkID first, then by ID.
type AthleteProfile struct {
	ID        string    `json:"id"`
	ClerkID   string    `json:"clerkId"`
	Name      string    `json:"name"`
	Age       int       `json:"age,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	Sport     string    `json:"sport,omitempty"`
	Height    float64   `json:"height,omitempty"`
	Weight    float64   `json:"weight,omitempty"`
	City      string    `json:"city,omitempty"`
	Contact   string    `json:"contact,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
