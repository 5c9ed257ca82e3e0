package openroute

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPlugin returns a plugin contributing request metrics as global
// middleware plus a GET /metrics route serving the Prometheus exposition
// format. A nil registry gets a private one.
func MetricsPlugin(reg *prometheus.Registry) Plugin {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Requests served, by method, path, and status.",
	}, []string{"method", "path", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Request latency in seconds, by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	return Plugin{
		Name:    "metrics",
		Version: "1.0.0",
		Init: func(_ context.Context) error {
			if err := reg.Register(requests); err != nil {
				return err
			}
			return reg.Register(duration)
		},
		Middleware: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
				timer := prometheus.NewTimer(duration.WithLabelValues(r.Method, r.URL.Path))
				next.ServeHTTP(rec, r)
				timer.ObserveDuration()
				requests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
			})
		},
		Routes: []RouteDecl{
			{
				Path:    "/metrics",
				Method:  http.MethodGet,
				Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP,
			},
		},
	}
}
