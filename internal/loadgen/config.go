// Package loadgen drives a running trials API through the full attempt
// lifecycle and verifies the resulting leaderboard.
package loadgen

import (
	"runtime"
	"time"

	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumAthletes int           // Athletes to sync, one attempt each
	TopN        int           // Leaderboard entries to fetch
	Workers     int           // Concurrent workers
	Timeout     time.Duration // HTTP request timeout
	OutputFile  string        // Optional JSON dump of the generated plan
	Verbose     bool

	// ProcessTimeout bounds the wait for results to be applied.
	ProcessTimeout time.Duration
	PollInterval   time.Duration
	ReviewerID     string

	// Logger defaults to the global logger.
	Logger logger.Logger
}

// DefaultConfig returns a small run against a local server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://localhost:8080",
		NumAthletes:    100,
		TopN:           10,
		Workers:        runtime.NumCPU() * 2,
		Timeout:        30 * time.Second,
		ProcessTimeout: time.Minute,
		PollInterval:   100 * time.Millisecond,
		ReviewerID:     "loadgen-reviewer",
	}
}

// Plan is one synthetic athlete and the attempt made for them.
type Plan struct {
	AthleteID string         `json:"athleteId"`
	UserID    string         `json:"userId"`
	Name      string         `json:"name"`
	TestType  model.TestType `json:"testType"`
	Score     int            `json:"score"`
	AttemptID string         `json:"attemptId,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	AthletesSynced     int
	AttemptsSubmitted  int
	ResultsAccepted    int
	ResultsThrottled   int
	AttemptsProcessed  int
	AttemptsAssessed   int
	Failures           int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
