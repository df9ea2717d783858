package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
	resultRetries       = 5
	retryBackoff        = 50 * time.Millisecond
)

// ErrNotProcessed is returned when results are still pending at the deadline.
var ErrNotProcessed = errors.New("attempts not processed before timeout")

// Run executes the complete lifecycle run.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	log.Info(ctx, "starting trials load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("athletes", cfg.NumAthletes),
		logger.Int("workers", cfg.Workers),
		logger.Int("topN", cfg.TopN))

	c := newClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate athletes and planned scores
	plans := generatePlans(cfg.NumAthletes)

	// Step 3: Sync athlete profiles
	var synced atomic.Int64
	if err := forEach(ctx, cfg.Workers, plans, func(ctx context.Context, p *Plan) error {
		if err := c.putAthlete(ctx, p); err != nil {
			return err
		}
		synced.Add(1)
		return nil
	}); err != nil {
		return stats, fmt.Errorf("athlete sync failed: %w", err)
	}
	stats.AthletesSynced = int(synced.Load())

	// Step 4: Upload one attempt per athlete
	var submitted atomic.Int64
	if err := forEach(ctx, cfg.Workers, plans, func(ctx context.Context, p *Plan) error {
		id, err := c.submit(ctx, p)
		if err != nil {
			return err
		}
		p.AttemptID = id
		submitted.Add(1)
		return nil
	}); err != nil {
		return stats, fmt.Errorf("attempt submission failed: %w", err)
	}
	stats.AttemptsSubmitted = int(submitted.Load())

	// Step 5: Post analysis results, backing off on 429
	var accepted, throttled atomic.Int64
	if err := forEach(ctx, cfg.Workers, plans, func(ctx context.Context, p *Plan) error {
		for i := 0; ; i++ {
			code, err := c.postResult(ctx, p)
			if err == nil {
				accepted.Add(1)
				return nil
			}
			if code != http.StatusTooManyRequests || i >= resultRetries {
				return err
			}
			throttled.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff << i):
			}
		}
	}); err != nil {
		return stats, fmt.Errorf("result posting failed: %w", err)
	}
	stats.ResultsAccepted = int(accepted.Load())
	stats.ResultsThrottled = int(throttled.Load())

	// Step 6: Wait for the workers to apply every result
	processed, err := waitProcessed(ctx, c, cfg, plans)
	stats.AttemptsProcessed = processed
	if err != nil {
		return stats, err
	}

	// Step 7: Assess with the planned scores
	var assessed atomic.Int64
	if err := forEach(ctx, cfg.Workers, plans, func(ctx context.Context, p *Plan) error {
		if err := c.assess(ctx, p, cfg.ReviewerID); err != nil {
			return err
		}
		assessed.Add(1)
		return nil
	}); err != nil {
		return stats, fmt.Errorf("assessment failed: %w", err)
	}
	stats.AttemptsAssessed = int(assessed.Load())

	// Step 8: Fetch and verify the leaderboard
	board, err := c.leaderboard(ctx, cfg.TopN)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	if err := verifyLeaderboard(plans, board, cfg.TopN); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	if cfg.Verbose {
		displayTopPerformers(ctx, log, board)
	}

	if cfg.OutputFile != "" {
		if err := savePlans(cfg.OutputFile, plans); err != nil {
			log.Warn(ctx, "failed to save plans to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// forEach runs fn over every plan with a bounded worker pool and returns the
// first error.
func forEach(ctx context.Context, workers int, plans []Plan, fn func(context.Context, *Plan) error) error {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *Plan)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if err := fn(ctx, p); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}
		}()
	}

feed:
	for i := range plans {
		select {
		case jobs <- &plans[i]:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// waitProcessed polls until every attempt has left in-progress.
func waitProcessed(ctx context.Context, c *client, cfg *Config, plans []Plan) (int, error) {
	deadline := time.Now().Add(cfg.ProcessTimeout)
	pending := make(map[string]struct{}, len(plans))
	for _, p := range plans {
		pending[p.AttemptID] = struct{}{}
	}
	for {
		for id := range pending {
			st, err := c.status(ctx, id)
			if err != nil {
				return len(plans) - len(pending), err
			}
			if st == model.StatusFailed {
				return len(plans) - len(pending), fmt.Errorf("attempt %s failed analysis", id)
			}
			if st == model.StatusDone {
				delete(pending, id)
			}
		}
		if len(pending) == 0 {
			return len(plans), nil
		}
		if time.Now().After(deadline) {
			return len(plans) - len(pending), fmt.Errorf("%w: %d remaining", ErrNotProcessed, len(pending))
		}
		select {
		case <-ctx.Done():
			return len(plans) - len(pending), ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
	}
}

// savePlans writes the generated plans as indented JSON.
func savePlans(filename string, plans []Plan) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plans: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.AttemptsSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("athletesSynced", stats.AthletesSynced),
		logger.Int("attemptsSubmitted", stats.AttemptsSubmitted),
		logger.Int("resultsAccepted", stats.ResultsAccepted),
		logger.Int("resultsThrottled", stats.ResultsThrottled),
		logger.Int("attemptsProcessed", stats.AttemptsProcessed),
		logger.Int("attemptsAssessed", stats.AttemptsAssessed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("attemptsPerSecond", perSecond))
}
