// Package intake turns worker result messages into queued outcomes.
package intake

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/trials/internal/adapters/mq/queue"
	"github.com/okian/trials/internal/domain/model"
)

// Envelope is the wire form of a worker result.
type Envelope struct {
	MessageID         string          `json:"messageId,omitempty"`
	AttemptID         string          `json:"attemptId,omitempty"`
	Status            string          `json:"status"`
	AnalysisData      json.RawMessage `json:"analysisData,omitempty"`
	Username          string          `json:"username,omitempty"`
	AnnotatedVideoURL string          `json:"annotatedVideoUrl,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// Decode parses an envelope from raw JSON.
func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}

// Message validates the envelope and converts it. A non-empty attemptID
// overrides the one carried in the body.
func (e Envelope) Message(attemptID string) (queue.Message, error) {
	if attemptID != "" {
		e.AttemptID = attemptID
	}
	if e.AttemptID == "" {
		return queue.Message{}, fmt.Errorf("%w: attemptId", ErrMissingField)
	}

	var success bool
	switch strings.ToLower(strings.TrimSpace(e.Status)) {
	case "success", "done":
		success = true
	case "failed", "error":
	default:
		return queue.Message{}, fmt.Errorf("%w: %q", ErrUnknownStatus, e.Status)
	}

	id := e.MessageID
	if id == "" {
		// Redeliveries of the same outcome collapse onto one id.
		id = e.AttemptID + ":" + strings.ToLower(e.Status)
	}
	return queue.Message{
		ID:        id,
		AttemptID: e.AttemptID,
		Outcome: model.Outcome{
			Success:           success,
			AnalysisData:      e.AnalysisData,
			Username:          e.Username,
			AnnotatedVideoURL: e.AnnotatedVideoURL,
			Error:             e.Error,
		},
	}, nil
}
