package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler", t, func() {
		Convey("The handler's status reaches the client", func() {
			h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}, "test")
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", nil))
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("A handler that only writes a body reports 200", func() {
			h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}, "test")
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "ok")
		})
	})

	Convey("Error classes follow the status code", t, func() {
		So(errorClass(http.StatusBadRequest), ShouldEqual, "client_error")
		So(errorClass(http.StatusUnauthorized), ShouldEqual, "unauthorized")
		So(errorClass(http.StatusNotFound), ShouldEqual, "not_found")
		So(errorClass(http.StatusConflict), ShouldEqual, "conflict")
		So(errorClass(http.StatusTooManyRequests), ShouldEqual, "rate_limit")
		So(errorClass(http.StatusBadGateway), ShouldEqual, "upstream_error")
		So(errorClass(http.StatusServiceUnavailable), ShouldEqual, "unavailable")
		So(errorClass(http.StatusInternalServerError), ShouldEqual, "server_error")
		So(errorSeverity(http.StatusInternalServerError), ShouldEqual, "high")
		So(errorSeverity(http.StatusTooManyRequests), ShouldEqual, "medium")
		So(errorSeverity(http.StatusNotFound), ShouldEqual, "low")
	})
}
