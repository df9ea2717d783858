package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/trials/internal/adapters/http/api"
	service "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/internal/domain/types"
	"github.com/okian/trials/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGeneratePlans(t *testing.T) {
	Convey("Given generated plans", t, func() {
		plans := generatePlans(200)

		Convey("Every athlete is unique with a known test and a valid score", func() {
			seen := map[string]bool{}
			for _, p := range plans {
				So(seen[p.AthleteID], ShouldBeFalse)
				seen[p.AthleteID] = true
				So(p.UserID, ShouldStartWith, "user_")
				So(p.TestType, ShouldBeIn, model.TestTypes())
				So(p.Score, ShouldBeBetweenOrEqual, 0, 100)
			}
		})

		Convey("maxScore picks the highest", func() {
			So(maxScore([]Plan{{Score: 3}, {Score: 91}, {Score: 40}}), ShouldEqual, 91)
			So(maxScore(nil), ShouldEqual, 0)
		})
	})
}

func TestVerifyLeaderboard(t *testing.T) {
	Convey("Given a run with a best score of 80", t, func() {
		plans := []Plan{{Score: 80}, {Score: 20}}

		Convey("A sorted, ranked board passes", func() {
			board := []types.Entry{{Rank: 1, BestScore: 80}, {Rank: 2, BestScore: 20}}
			So(verifyLeaderboard(plans, board, 2), ShouldBeNil)
		})

		Convey("Unsorted boards fail", func() {
			board := []types.Entry{{Rank: 1, BestScore: 80}, {Rank: 2, BestScore: 90}}
			So(errors.Is(verifyLeaderboard(plans, board, 0), ErrInconsistent), ShouldBeTrue)
		})

		Convey("Gaps in ranks fail", func() {
			board := []types.Entry{{Rank: 1, BestScore: 80}, {Rank: 3, BestScore: 20}}
			So(errors.Is(verifyLeaderboard(plans, board, 0), ErrInconsistent), ShouldBeTrue)
		})

		Convey("A top score below the planned best fails", func() {
			board := []types.Entry{{Rank: 1, BestScore: 70}}
			So(errors.Is(verifyLeaderboard(plans, board, 0), ErrInconsistent), ShouldBeTrue)
		})

		Convey("Oversized and empty boards fail", func() {
			board := []types.Entry{{Rank: 1, BestScore: 80}, {Rank: 2, BestScore: 20}}
			So(errors.Is(verifyLeaderboard(plans, board, 1), ErrInconsistent), ShouldBeTrue)
			So(errors.Is(verifyLeaderboard(plans, nil, 1), ErrInconsistent), ShouldBeTrue)
		})
	})
}

func TestForEach(t *testing.T) {
	Convey("Given ten plans", t, func() {
		plans := make([]Plan, 10)
		ctx := context.Background()

		Convey("Every plan is visited once", func() {
			var n atomic.Int64
			err := forEach(ctx, 3, plans, func(_ context.Context, p *Plan) error {
				p.Score++
				n.Add(1)
				return nil
			})
			So(err, ShouldBeNil)
			So(n.Load(), ShouldEqual, 10)
			for _, p := range plans {
				So(p.Score, ShouldEqual, 1)
			}
		})

		Convey("The first error is returned", func() {
			boom := errors.New("boom")
			err := forEach(ctx, 0, plans, func(context.Context, *Plan) error { return boom })
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a trials API over the in-memory service", t, func() {
		svc := service.New(service.WithLogger(logger.NewNop()), service.WithCommitBackoff(0))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		r := chi.NewRouter()
		api.NewServer(svc, svc).Register(ctx, r)
		srv := httptest.NewServer(r)
		defer srv.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.NumAthletes = 20
		cfg.TopN = 5
		cfg.Workers = 4
		cfg.ProcessTimeout = 5 * time.Second
		cfg.PollInterval = 10 * time.Millisecond
		cfg.Verbose = true
		cfg.Logger = logger.NewNop()
		cfg.OutputFile = filepath.Join(t.TempDir(), "out", "plans.json")

		Convey("The full lifecycle completes and verifies", func() {
			stats, err := Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.AthletesSynced, ShouldEqual, 20)
			So(stats.AttemptsSubmitted, ShouldEqual, 20)
			So(stats.AttemptsProcessed, ShouldEqual, 20)
			So(stats.AttemptsAssessed, ShouldEqual, 20)
			So(stats.LeaderboardEntries, ShouldEqual, 5)

			data, err := os.ReadFile(cfg.OutputFile)
			So(err, ShouldBeNil)
			var saved []Plan
			So(json.Unmarshal(data, &saved), ShouldBeNil)
			So(len(saved), ShouldEqual, 20)
			So(saved[0].AttemptID, ShouldNotBeEmpty)

			ds, err := svc.DashboardStats(ctx)
			So(err, ShouldBeNil)
			So(ds.TotalAthletes, ShouldEqual, 20)
			So(ds.Assessed, ShouldEqual, 20)
		})

		Convey("An unreachable server fails the health check", func() {
			srv.Close()
			_, err := Run(ctx, cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
