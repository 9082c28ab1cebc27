package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// unmatchedRoute labels requests that chi did not route to a pattern.
const unmatchedRoute = "unmatched"

// Middleware records request counts by status and latency by route pattern.
// Handlers that write a body without calling WriteHeader are counted as 200.
func Middleware(next http.Handler) http.Handler {
	Init()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		began := time.Now()
		next.ServeHTTP(ww, r)
		ObserveHTTPRequest(r.Method, routeLabel(r), statusLabel(ww.Status()), time.Since(began))
	})
}

// routeLabel reads the matched pattern after routing so path parameters
// collapse into one series.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

func statusLabel(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
