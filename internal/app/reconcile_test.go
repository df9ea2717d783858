package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	service "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/internal/domain/result"
	. "github.com/smartystreets/goconvey/convey"
)

func success() model.Outcome {
	return model.Outcome{
		Success:           true,
		AnalysisData:      json.RawMessage(`{"reps":31,"form":"good"}`),
		Username:          "Asha",
		AnnotatedVideoURL: "http://cdn.test/annotated/a1.mp4",
	}
}

func TestApplyResult(t *testing.T) {
	Convey("Given an in-progress attempt", t, func() {
		f := newFixture()
		ctx := context.Background()
		a := f.seed(model.TestAttempt{ID: "a1", UserID: "user_1"})

		Convey("Before any result the read path reports pending", func() {
			st, err := f.svc.FetchStatus(ctx, a.ID)
			So(err, ShouldBeNil)
			So(st.Result.Kind, ShouldEqual, result.KindPending)
		})

		Convey("A success marks it done with the payload and annotated video", func() {
			got, err := f.svc.ApplyResult(ctx, a.ID, success())
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusDone)
			So(*got.AnnotatedVideoURL, ShouldEqual, "http://cdn.test/annotated/a1.mp4")
			So(got.VideoURL, ShouldEqual, a.VideoURL)

			st, err := f.svc.FetchStatus(ctx, a.ID)
			So(err, ShouldBeNil)
			So(st.Result.Kind, ShouldEqual, result.KindReady)
			So(st.Result.Payload.UserID, ShouldEqual, "user_1")
			So(st.Result.Payload.Username, ShouldEqual, "Asha")
			So(string(st.Result.Payload.AnalysisData), ShouldContainSubstring, `"reps": 31`)
			So(st.ReviewState, ShouldEqual, model.ReviewAwaitingReview)

			Convey("And a second success is rejected", func() {
				_, err := f.svc.ApplyResult(ctx, a.ID, success())
				So(errors.Is(err, service.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("A success without an annotated video still closes the analysis", func() {
			first := model.Outcome{Success: true, AnalysisData: json.RawMessage(`{"reps":1}`)}
			got, err := f.svc.ApplyResult(ctx, a.ID, first)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusDone)
			So(got.AnnotatedVideoURL, ShouldBeNil)
			stored := *got.Result

			Convey("And a later success cannot overwrite the result", func() {
				later := model.Outcome{Success: true, AnalysisData: json.RawMessage(`{"reps":999}`)}
				_, err := f.svc.ApplyResult(ctx, a.ID, later)
				So(errors.Is(err, service.ErrInvalidTransition), ShouldBeTrue)

				st, err := f.svc.FetchStatus(ctx, a.ID)
				So(err, ShouldBeNil)
				So(*st.Attempt.Result, ShouldEqual, stored)
				So(string(st.Result.Payload.AnalysisData), ShouldNotContainSubstring, "999")
			})
		})

		Convey("A failure marks it failed with the error text", func() {
			got, err := f.svc.ApplyResult(ctx, a.ID, model.Outcome{Error: "An error occurred: no person detected"})
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusFailed)

			st, _ := f.svc.FetchStatus(ctx, a.ID)
			So(st.Result.Kind, ShouldEqual, result.KindFailed)
			So(st.Result.Message, ShouldEqual, "An error occurred: no person detected")

			Convey("And nothing brings a failed attempt back", func() {
				_, err := f.svc.ApplyResult(ctx, a.ID, success())
				So(errors.Is(err, service.ErrInvalidTransition), ShouldBeTrue)
				_, err = f.svc.Assess(ctx, a.ID, 80, "good", "reviewer")
				So(errors.Is(err, service.ErrInvalidTransition), ShouldBeTrue)
				_, err = f.svc.MarkFailed(ctx, a.ID, "again")
				So(errors.Is(err, service.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("A failure without a reason stores the default message", func() {
			got, err := f.svc.ApplyResult(ctx, a.ID, model.Outcome{})
			So(err, ShouldBeNil)
			So(*got.Result, ShouldEqual, result.DefaultFailure)
		})

		Convey("Analysis data that is not JSON is refused without a write", func() {
			bad := success()
			bad.AnalysisData = json.RawMessage(`{oops`)
			_, err := f.svc.ApplyResult(ctx, a.ID, bad)
			So(errors.Is(err, service.ErrInvalidResult), ShouldBeTrue)
			st, _ := f.svc.FetchStatus(ctx, a.ID)
			So(st.Attempt.Status, ShouldEqual, model.StatusInProgress)
		})

		Convey("Unknown attempts are not found", func() {
			_, err := f.svc.ApplyResult(ctx, "nope", success())
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			_, err = f.svc.FetchStatus(ctx, "nope")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("An assessment before the analysis is backfilled, not overwritten", func() {
			_, err := f.svc.Assess(ctx, a.ID, 75, "solid", "officer-1")
			So(err, ShouldBeNil)

			got, err := f.svc.ApplyResult(ctx, a.ID, success())
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusDone)
			So(*got.Score, ShouldEqual, 75)
			So(*got.Remarks, ShouldEqual, "solid")
			So(*got.AnnotatedVideoURL, ShouldEqual, "http://cdn.test/annotated/a1.mp4")
			So(got.Result, ShouldNotBeNil)

			Convey("And the backfill happens only once", func() {
				_, err := f.svc.ApplyResult(ctx, a.ID, success())
				So(errors.Is(err, service.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("MarkFailed fails a stuck attempt", func() {
			got, err := f.svc.MarkFailed(ctx, a.ID, "  stuck for a day ")
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusFailed)
			So(*got.Result, ShouldEqual, "stuck for a day")
		})
	})

	Convey("Given a done attempt whose stored result is malformed", t, func() {
		f := newFixture()
		a := f.seed(model.TestAttempt{ID: "a2", UserID: "u", Status: model.StatusDone, Result: ptr("{not json")})

		Convey("The read path reports unparsable and leaves the status alone", func() {
			st, err := f.svc.FetchStatus(context.Background(), a.ID)
			So(err, ShouldBeNil)
			So(st.Result.Kind, ShouldEqual, result.KindUnparsable)
			So(st.Result.Message, ShouldEqual, "could not parse result")
			So(st.Attempt.Status, ShouldEqual, model.StatusDone)
		})
	})
}
