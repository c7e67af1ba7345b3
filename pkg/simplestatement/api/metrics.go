package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_http_requests_total",
			Help: "Total HTTP requests to the statement service",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statement_http_request_duration_seconds",
			Help:    "HTTP request latency of the statement service in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	downloadLinksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_download_links_total",
			Help: "Download link requests by result",
		},
		[]string{"result"},
	)

	auditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_audit_events_total",
			Help: "Audit events emitted by action",
		},
		[]string{"action"},
	)
)

// Metrics records request count and latency labelled by chi route pattern,
// which keeps statement ids out of the label set.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
