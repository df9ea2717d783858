package model_test

import (
	"testing"
	"time"

	model "github.com/okian/trials/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseTestType(t *testing.T) {
	convey.Convey("Given raw test type slugs", t, func() {
		convey.Convey("When the slug is known", func() {
			tt, err := model.ParseTestType("vertical-jump")

			convey.Convey("Then it should resolve", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(tt, convey.ShouldEqual, model.TestVerticalJump)
				convey.So(tt.Title(), convey.ShouldEqual, "Vertical Jump")
			})
		})

		convey.Convey("When the slug has different case and padding", func() {
			tt, err := model.ParseTestType("  Sit-Ups ")

			convey.Convey("Then it should still resolve", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(tt, convey.ShouldEqual, model.TestSitUps)
			})
		})

		convey.Convey("When the legacy height-weight slug is used", func() {
			tt, err := model.ParseTestType("height-weight")

			convey.Convey("Then it should map to anthropometry", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(tt, convey.ShouldEqual, model.TestAnthropometry)
			})
		})

		convey.Convey("When the slug is unknown", func() {
			_, err := model.ParseTestType("long-jump")

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldEqual, model.ErrUnknownTestType)
			})
		})

		convey.Convey("Then every catalogue entry should be valid", func() {
			for _, tt := range model.TestTypes() {
				convey.So(tt.Valid(), convey.ShouldBeTrue)
			}
		})
	})
}

func TestCanTransition(t *testing.T) {
	convey.Convey("Given the attempt state machine", t, func() {
		convey.Convey("Then in-progress may move to done or failed", func() {
			convey.So(model.CanTransition(model.StatusInProgress, model.StatusDone), convey.ShouldBeTrue)
			convey.So(model.CanTransition(model.StatusInProgress, model.StatusFailed), convey.ShouldBeTrue)
			convey.So(model.CanTransition(model.StatusInProgress, model.StatusInProgress), convey.ShouldBeFalse)
		})

		convey.Convey("Then done may only be rewritten as done", func() {
			convey.So(model.CanTransition(model.StatusDone, model.StatusDone), convey.ShouldBeTrue)
			convey.So(model.CanTransition(model.StatusDone, model.StatusFailed), convey.ShouldBeFalse)
			convey.So(model.CanTransition(model.StatusDone, model.StatusInProgress), convey.ShouldBeFalse)
		})

		convey.Convey("Then failed is terminal", func() {
			for _, to := range []model.Status{model.StatusInProgress, model.StatusDone, model.StatusFailed} {
				convey.So(model.CanTransition(model.StatusFailed, to), convey.ShouldBeFalse)
			}
		})

		convey.Convey("Then ParseStatus rejects unknown values", func() {
			s, err := model.ParseStatus("done")
			convey.So(err, convey.ShouldBeNil)
			convey.So(s, convey.ShouldEqual, model.StatusDone)

			_, err = model.ParseStatus("reviewed")
			convey.So(err, convey.ShouldEqual, model.ErrUnknownStatus)
		})
	})
}

func TestDeriveReviewState(t *testing.T) {
	convey.Convey("Given status and score combinations", t, func() {
		score := 80

		convey.So(model.DeriveReviewState(model.StatusInProgress, nil), convey.ShouldEqual, model.ReviewPending)
		convey.So(model.DeriveReviewState(model.StatusInProgress, &score), convey.ShouldEqual, model.ReviewPending)
		convey.So(model.DeriveReviewState(model.StatusDone, nil), convey.ShouldEqual, model.ReviewAwaitingReview)
		convey.So(model.DeriveReviewState(model.StatusDone, &score), convey.ShouldEqual, model.ReviewReviewed)
		convey.So(model.DeriveReviewState(model.StatusFailed, nil), convey.ShouldEqual, model.ReviewFailed)
	})
}

func TestAttemptPatch(t *testing.T) {
	convey.Convey("Given an attempt and a patch", t, func() {
		created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		a := model.TestAttempt{
			ID:        "a-1",
			UserID:    "user_1",
			TestType:  model.TestShuttleRun,
			VideoURL:  "https://cdn/videos/user_1_1.mp4",
			Status:    model.StatusInProgress,
			CreatedAt: created,
		}

		done := model.StatusDone
		score := 77
		remarks := "clean turns"
		p := model.AttemptPatch{
			Status:   &done,
			Score:    &score,
			Remarks:  &remarks,
			IfStatus: []model.Status{model.StatusInProgress, model.StatusDone},
		}

		convey.Convey("When the precondition holds", func() {
			convey.So(p.Allows(a.Status), convey.ShouldBeTrue)
			p.Apply(&a)

			convey.Convey("Then only the patched fields change", func() {
				convey.So(a.Status, convey.ShouldEqual, model.StatusDone)
				convey.So(*a.Score, convey.ShouldEqual, 77)
				convey.So(*a.Remarks, convey.ShouldEqual, "clean turns")
				convey.So(a.VideoURL, convey.ShouldEqual, "https://cdn/videos/user_1_1.mp4")
				convey.So(a.CreatedAt, convey.ShouldEqual, created)
				convey.So(a.AnnotatedVideoURL, convey.ShouldBeNil)
			})

			convey.Convey("Then the stored values do not alias the patch", func() {
				score = 10
				convey.So(*a.Score, convey.ShouldEqual, 77)
			})
		})

		convey.Convey("When the stored status is failed", func() {
			convey.So(p.Allows(model.StatusFailed), convey.ShouldBeFalse)
		})

		convey.Convey("When the patch also requires an unset result", func() {
			p.IfResultUnset = true
			convey.So(p.Holds(&a), convey.ShouldBeTrue)
			stored := `{"userId":"user_1"}`
			a.Result = &stored
			convey.So(p.Holds(&a), convey.ShouldBeFalse)
		})

		convey.Convey("When the patch has no precondition", func() {
			convey.So((&model.AttemptPatch{}).Allows(model.StatusFailed), convey.ShouldBeTrue)
			convey.So((&model.AttemptPatch{}).Empty(), convey.ShouldBeTrue)
			convey.So(p.Empty(), convey.ShouldBeFalse)
		})

		convey.Convey("When cloning", func() {
			p.Apply(&a)
			c := a.Clone()
			*c.Score = 1

			convey.Convey("Then the clone is independent", func() {
				convey.So(*a.Score, convey.ShouldEqual, 77)
				convey.So(c.ReviewState(), convey.ShouldEqual, model.ReviewReviewed)
				convey.So(c.Assessed(), convey.ShouldBeTrue)
			})
		})
	})
}
