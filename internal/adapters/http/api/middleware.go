package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/trials/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class for one
// named endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			// Nothing written: net/http sends 200.
			code = http.StatusOK
		}
		status := strconv.Itoa(code)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Milliseconds()))

		if code >= http.StatusBadRequest {
			class := errorClass(code)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
			metrics.RecordErrorByType(class, errorSeverity(code))
		}
	}
}

// errorClass buckets a failing status code into a metric label.
func errorClass(code int) string {
	switch {
	case code == http.StatusServiceUnavailable:
		return "unavailable"
	case code == http.StatusBadGateway:
		return "upstream_error"
	case code >= http.StatusInternalServerError:
		return "server_error"
	case code == http.StatusTooManyRequests:
		return "rate_limit"
	case code == http.StatusConflict:
		return "conflict"
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusUnauthorized:
		return "unauthorized"
	case code >= http.StatusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

func errorSeverity(code int) string {
	switch {
	case code == http.StatusServiceUnavailable, code == http.StatusTooManyRequests:
		return "medium"
	case code >= http.StatusInternalServerError:
		return "high"
	case code >= http.StatusBadRequest:
		return "low"
	default:
		return "none"
	}
}
