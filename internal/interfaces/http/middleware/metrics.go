package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPObserver records one observation per completed request.
type HTTPObserver interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// MetricsMiddleware labels requests by their chi route pattern so path
// parameters do not explode label cardinality.
type MetricsMiddleware struct {
	observer HTTPObserver
	skip     map[string]bool
}

func NewMetricsMiddleware(observer HTTPObserver, skipPaths ...string) *MetricsMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &MetricsMiddleware{observer: observer, skip: skip}
}

func (m *MetricsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.observer == nil || m.skip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.observer.RecordHTTPRequest(r.Method, route, sw.status, time.Since(start))
	})
}
