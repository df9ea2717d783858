// Package assessment validates reviewer scoring input.
package assessment

import (
	"fmt"
	"math"
	"strings"
)

// Score bounds, inclusive.
const (
	MinScore = 0
	MaxScore = 100
)

// Field names reported by ValidationError.
const (
	FieldScore   = "score"
	FieldRemarks = "remarks"
)

// ValidationError names the input field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Assessment is validated reviewer input.
type Assessment struct {
	Score   int
	Remarks string
}

// Validate checks a raw score and remarks. The score must be an integer in
// [MinScore, MaxScore] and the remarks must be non-empty once trimmed.
// Score is checked first.
func Validate(score float64, remarks string) (Assessment, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score != math.Trunc(score) {
		return Assessment{}, &ValidationError{Field: FieldScore, Reason: "must be an integer"}
	}
	if score < MinScore || score > MaxScore {
		return Assessment{}, &ValidationError{
			Field:  FieldScore,
			Reason: fmt.Sprintf("must be between %d and %d", MinScore, MaxScore),
		}
	}
	trimmed := strings.TrimSpace(remarks)
	if trimmed == "" {
		return Assessment{}, &ValidationError{Field: FieldRemarks, Reason: "must not be empty"}
	}
	return Assessment{Score: int(score), Remarks: trimmed}, nil
}
