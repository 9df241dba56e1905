package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method", "path", "status"})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "path", "status"})

	// Audio uploads dominate request size; buckets span 64 KiB to 64 MiB.
	httpRequestBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_body_bytes",
		Help:      "Declared HTTP request body size.",
		Buckets:   prometheus.ExponentialBuckets(64<<10, 4, 6),
	}, []string{"method", "path"})
)

var httpGroup = group{collectors: []prometheus.Collector{
	httpRequestDuration,
	httpRequestsTotal,
	httpRequestBytes,
}}

// RegisterHTTPMetrics registers the collectors used by Middleware.
func RegisterHTTPMetrics() { httpGroup.register() }

// Middleware records HTTP request duration, count and body size.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			// Route patterns keep /documents/{id} to one series.
			route := normalizePath(routePattern(r))
			code := strconv.Itoa(status)
			httpRequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
			if r.ContentLength > 0 {
				httpRequestBytes.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}
		})
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// normalizePath maps unmatched requests to one label value.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
