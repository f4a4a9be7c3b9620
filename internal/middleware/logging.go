package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestObserver records per-request metrics.
type RequestObserver interface {
	ObserveRequest(method, route, code string, elapsed time.Duration)
}

// Logging logs every request with its status and duration, and reports it to
// obs when obs is not nil. Routes are labelled by their chi pattern so IDs do
// not explode metric cardinality.
func Logging(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			route := routePattern(r)
			actor := ActorFromContext(r.Context())

			attrs := []any{
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", status,
				"actor", actor.String(),
				"request_id", chimw.GetReqID(r.Context()),
				"duration_ms", elapsed.Milliseconds(),
			}
			switch {
			case status >= 500:
				slog.Error("Request failed", attrs...)
			case status >= 400:
				slog.Warn("Request rejected", attrs...)
			default:
				slog.Info("Request completed", attrs...)
			}

			if obs != nil {
				obs.ObserveRequest(r.Method, route, strconv.Itoa(status), elapsed)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
