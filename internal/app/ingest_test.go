package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/trials/internal/adapters/repository"
	service "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func submission(user string) service.Submission {
	return service.Submission{
		UserID:   user,
		Username: "Asha",
		TestType: "Sit-Ups",
		Filename: "clip.MP4",
		Video:    bytes.NewReader([]byte("not really a video but bytes")),
	}
}

func TestSubmit(t *testing.T) {
	Convey("Given a service with in-memory adapters", t, func() {
		f := newFixture()
		ctx := context.Background()

		Convey("A valid upload creates exactly one in-progress attempt", func() {
			a, err := f.svc.Submit(ctx, submission("user_1"))
			So(err, ShouldBeNil)
			So(a.ID, ShouldEqual, "att-1")
			So(a.Status, ShouldEqual, model.StatusInProgress)
			So(a.TestType, ShouldEqual, model.TestSitUps)
			So(a.VideoURL, ShouldStartWith, "http://cdn.test/videos/user_1_")
			So(a.VideoURL, ShouldEndWith, ".mp4")

			rows, err := f.svc.ListByUser(ctx, "user_1", 0)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].ID, ShouldEqual, a.ID)
			So(f.objects.Len(), ShouldEqual, 1)

			key := strings.TrimPrefix(a.VideoURL, "http://cdn.test/videos/")
			obj, ok := f.objects.Get(key)
			So(ok, ShouldBeTrue)
			So(obj.ContentType, ShouldEqual, "video/mp4")

			Convey("And fires the analysis trigger with the display name", func() {
				msg, ok := f.notifier.next()
				So(ok, ShouldBeTrue)
				So(msg.AttemptID, ShouldEqual, a.ID)
				So(msg.VideoURL, ShouldEqual, a.VideoURL)
				So(msg.TestType, ShouldEqual, "sit-ups")
				So(msg.UserID, ShouldEqual, "user_1")
				So(msg.Username, ShouldEqual, "Asha")
			})
		})

		Convey("Invalid submissions create nothing", func() {
			cases := []service.Submission{
				{TestType: "sit-ups", Video: strings.NewReader("x")},
				{UserID: "u", TestType: "long-jump", Video: strings.NewReader("x")},
				{UserID: "u", TestType: "sit-ups"},
				{UserID: "u", TestType: "sit-ups", Video: strings.NewReader("")},
			}
			for _, sub := range cases {
				_, err := f.svc.Submit(ctx, sub)
				So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
			}
			So(f.objects.Len(), ShouldEqual, 0)
			rows, _ := f.svc.ListAttempts(ctx, "", nil, 0)
			So(rows, ShouldBeEmpty)
		})

		Convey("Oversize videos are rejected before upload", func() {
			small := newFixture(service.WithMaxVideoBytes(4))
			sub := submission("u")
			sub.Video = strings.NewReader("12345")
			_, err := small.svc.Submit(ctx, sub)
			So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
			So(small.objects.Len(), ShouldEqual, 0)
		})

		Convey("The legacy height-weight slug is accepted", func() {
			sub := submission("u")
			sub.TestType = "height-weight"
			a, err := f.svc.Submit(ctx, sub)
			So(err, ShouldBeNil)
			So(a.TestType, ShouldEqual, model.TestAnthropometry)
		})
	})
}

func TestSubmitFailures(t *testing.T) {
	Convey("Given storage failures", t, func() {
		ctx := context.Background()

		Convey("An upload failure aborts without a record", func() {
			f := newFixture()
			broken := newFixture(service.WithStore(f.store), service.WithObjectStore(brokenObjects{}))
			_, err := broken.svc.Submit(ctx, submission("u"))
			So(errors.Is(err, service.ErrUploadFailed), ShouldBeTrue)
			rows, _ := f.store.ListAttempts(ctx, repository.Query{})
			So(rows, ShouldBeEmpty)
		})

		Convey("A transient record failure is retried with the same video", func() {
			f := newFixture(service.WithCommitRetries(2))
			f.store.failCreates = 2
			a, err := f.svc.Submit(ctx, submission("u"))
			So(err, ShouldBeNil)
			So(a.Status, ShouldEqual, model.StatusInProgress)
			So(f.objects.Len(), ShouldEqual, 1)
		})

		Convey("Exhausted retries return the stored video URL", func() {
			f := newFixture(service.WithCommitRetries(1))
			f.store.failCreates = 5
			_, err := f.svc.Submit(ctx, submission("u"))
			So(errors.Is(err, service.ErrRecordCommit), ShouldBeTrue)

			var cerr *service.CommitError
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.VideoURL, ShouldStartWith, "http://cdn.test/videos/u_")
			So(f.objects.Len(), ShouldEqual, 1)

			Convey("And CommitUpload finishes the job without re-uploading", func() {
				f.store.failCreates = 0
				a, err := f.svc.CommitUpload(ctx, service.Commit{
					UserID: "u", Username: "Asha", TestType: "sit-ups", VideoURL: cerr.VideoURL,
				})
				So(err, ShouldBeNil)
				So(a.VideoURL, ShouldEqual, cerr.VideoURL)
				So(f.objects.Len(), ShouldEqual, 1)
				msg, ok := f.notifier.next()
				So(ok, ShouldBeTrue)
				So(msg.AttemptID, ShouldEqual, a.ID)
			})
		})

		Convey("A failing analysis trigger does not fail ingestion", func() {
			f := newFixture()
			f.notifier.err = errors.New("worker down")
			a, err := f.svc.Submit(ctx, submission("u"))
			So(err, ShouldBeNil)
			_, ok := f.notifier.next()
			So(ok, ShouldBeTrue)

			got, err := f.svc.FetchStatus(ctx, a.ID)
			So(err, ShouldBeNil)
			So(got.Attempt.Status, ShouldEqual, model.StatusInProgress)
			So(got.ReviewState, ShouldEqual, model.ReviewPending)
		})

		Convey("CommitUpload validates its input", func() {
			f := newFixture()
			_, err := f.svc.CommitUpload(ctx, service.Commit{UserID: "u", TestType: "sit-ups"})
			So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
		})
	})
}
