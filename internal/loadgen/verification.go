package loadgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/trials/internal/domain/types"
	"github.com/okian/trials/pkg/logger"
)

// ErrInconsistent marks a leaderboard that disagrees with the run.
var ErrInconsistent = errors.New("leaderboard inconsistent")

// verifyLeaderboard checks ordering, ranking and that the best planned score
// is reflected at the top. Other athletes already on the server may outrank
// the run, so the top is only bounded from below.
func verifyLeaderboard(plans []Plan, board []types.Entry, topN int) error {
	if len(plans) > 0 && len(board) == 0 {
		return fmt.Errorf("%w: empty leaderboard", ErrInconsistent)
	}
	if topN > 0 && len(board) > topN {
		return fmt.Errorf("%w: %d entries exceed limit %d", ErrInconsistent, len(board), topN)
	}
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrInconsistent, i, e.Rank)
		}
		if i > 0 && e.BestScore > board[i-1].BestScore {
			return fmt.Errorf("%w: entry %d outscores entry %d", ErrInconsistent, i, i-1)
		}
	}
	if len(board) > 0 && board[0].BestScore < maxScore(plans) {
		return fmt.Errorf("%w: top score %d below planned best %d", ErrInconsistent, board[0].BestScore, maxScore(plans))
	}
	return nil
}

// displayTopPerformers logs the leaderboard rows.
func displayTopPerformers(ctx context.Context, log logger.Logger, board []types.Entry) {
	for _, e := range board {
		log.Info(ctx, "leaderboard entry",
			logger.Int("rank", e.Rank),
			logger.String("athleteId", e.AthleteID),
			logger.String("name", e.Name),
			logger.Int("bestScore", e.BestScore),
			logger.String("band", e.Band))
	}
}
