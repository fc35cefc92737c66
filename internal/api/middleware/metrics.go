package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector feeds the counters the /metrics endpoint reports. The
// counters live on the App so the handler and the middleware share them.
type MetricsCollector struct {
	turns  *atomic.Int64
	errors *atomic.Int64
}

func NewMetricsCollector(turns, errors *atomic.Int64) *MetricsCollector {
	return &MetricsCollector{turns: turns, errors: errors}
}

// Middleware counts every request and, via the status-capturing writer,
// every 4xx/5xx response.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.turns.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 400 {
			mc.errors.Add(1)
		}
	})
}
