package repository

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/trials/internal/domain/model"
)

func TestGormMapping(t *testing.T) {
	Convey("Given the SQL row mapping", t, func() {
		score := 88
		at := time.Date(2024, 8, 2, 9, 30, 0, 0, time.UTC)
		a := model.TestAttempt{
			ID: "a1", UserID: "u1", TestType: model.TestEnduranceRun, VideoURL: "v",
			Status: model.StatusDone, Score: &score, AssessedAt: &at, CreatedAt: at.Add(-time.Hour),
		}

		Convey("When converting an attempt to a row and back", func() {
			row := toAttemptRow(&a)
			back := row.toModel()

			Convey("Then nothing is lost", func() {
				So(row.Status, ShouldEqual, "done")
				So(row.TestType, ShouldEqual, "endurance-run")
				So(back, ShouldResemble, a)
			})
		})

		Convey("When converting an athlete", func() {
			p := model.AthleteProfile{ID: "ath-1", ClerkID: "u1", Name: "One", Age: 17, City: "Pune", CreatedAt: at}
			row := toAthleteRow(&p)
			So(row.toModel(), ShouldResemble, p)
		})

		Convey("When a patch is rendered as column updates", func() {
			done := model.StatusDone
			remarks := "ok"
			cols := patchColumns(&model.AttemptPatch{Status: &done, Score: &score, Remarks: &remarks, AssessedAt: &at})

			Convey("Then only set fields appear, by column name", func() {
				So(cols, ShouldResemble, map[string]any{
					"status":      "done",
					"score":       88,
					"remarks":     "ok",
					"assessed_at": at,
				})
			})
		})

		Convey("When rendering ORDER BY clauses", func() {
			So(orderClause(&Query{}), ShouldEqual, "created_at DESC, id DESC")
			So(orderClause(&Query{Ascending: true}), ShouldEqual, "created_at ASC, id ASC")
			So(orderClause(&Query{OrderBy: OrderAssessedAt}), ShouldEqual, "assessed_at DESC NULLS LAST, created_at DESC, id DESC")
		})

		Convey("When converting statuses for IN clauses", func() {
			So(statusStrings([]model.Status{model.StatusInProgress, model.StatusFailed}), ShouldResemble, []string{"in-progress", "failed"})
		})
	})
}
