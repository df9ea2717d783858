// Package result encodes and reads back the analysis payload stored on an attempt.
package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/trials/internal/domain/model"
)

// DefaultFailure is stored when a worker reports failure without a reason.
const DefaultFailure = "analysis failed"

// Kind classifies what a reader can show for an attempt's result.
type Kind string

// Result kinds.
const (
	KindPending    Kind = "pending"
	KindReady      Kind = "ready"
	KindFailed     Kind = "failed"
	KindAbsent     Kind = "absent"
	KindUnparsable Kind = "unparsable"
)

// Payload is the serialized success result written on completion.
type Payload struct {
	UserID       string          `json:"userId"`
	Username     string          `json:"username"`
	AnalysisData json.RawMessage `json:"analysisData"`
}

// View is the typed read-side outcome of an attempt's result.
type View struct {
	Kind     Kind     `json:"kind"`
	Payload  *Payload `json:"payload,omitempty"`
	Message  string   `json:"message,omitempty"`
	Reviewed bool     `json:"reviewed"`
}

// Encode renders a success payload the way it is stored on the attempt.
func Encode(userID, username string, analysis json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(analysis)) == 0 {
		analysis = json.RawMessage("null")
	}
	if !json.Valid(analysis) {
		return "", fmt.Errorf("encode result: %w", ErrInvalidAnalysis)
	}
	out, err := json.MarshalIndent(Payload{UserID: userID, Username: username, AnalysisData: analysis}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(out), nil
}

// Decode parses a stored success payload.
func Decode(raw string) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if dec.More() {
		return Payload{}, fmt.Errorf("%w: trailing data", ErrUnparsable)
	}
	return p, nil
}

// Read classifies an attempt's stored result. It never fails; malformed
// payloads come back as KindUnparsable with the status left as-is.
func Read(a *model.TestAttempt) View {
	v := View{Reviewed: a.Assessed() && a.Status == model.StatusDone}
	switch a.Status {
	case model.StatusFailed:
		v.Kind = KindFailed
		v.Message = DefaultFailure
		if a.Result != nil && strings.TrimSpace(*a.Result) != "" {
			v.Message = *a.Result
		}
	case model.StatusDone:
		if a.Result == nil || strings.TrimSpace(*a.Result) == "" {
			v.Kind = KindAbsent
			return v
		}
		p, err := Decode(*a.Result)
		if err != nil {
			v.Kind = KindUnparsable
			v.Message = ErrUnparsable.Error()
			return v
		}
		v.Kind = KindReady
		v.Payload = &p
	default:
		v.Kind = KindPending
	}
	return v
}
