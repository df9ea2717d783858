// Package notify fires the analysis trigger for a freshly created attempt.
// Delivery is one-shot: the worker replies out of band.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Message is the analysis worker's ingress contract.
type Message struct {
	AttemptID string `json:"attemptId"`
	VideoURL  string `json:"videoUrl"`
	TestType  string `json:"testType"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

// Validate reports the first missing field.
func (m Message) Validate() error {
	switch {
	case m.AttemptID == "":
		return fmt.Errorf("%w: attemptId", ErrMissingField)
	case m.VideoURL == "":
		return fmt.Errorf("%w: videoUrl", ErrMissingField)
	case m.TestType == "":
		return fmt.Errorf("%w: testType", ErrMissingField)
	case m.UserID == "":
		return fmt.Errorf("%w: userId", ErrMissingField)
	}
	return nil
}

func (m Message) encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Notifier delivers a Message to the analysis worker.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Close() error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
func (Nop) Close() error                          { return nil }

// SplitBrokers turns "a:9092, b:9092" into its non-empty parts.
func SplitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
