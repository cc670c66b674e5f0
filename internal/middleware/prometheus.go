package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
)

// PrometheusMiddleware records HTTP request metrics for Prometheus
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, sanitizePath(r.URL.Path), status, time.Since(start))
	})
}

// RequestIDResponseMiddleware adds the request ID to response headers
func RequestIDResponseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// sanitizePath normalizes URL paths for metrics to prevent cardinality explosion
func sanitizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}

	parts := strings.Split(path, "/")
	switch {
	// /figures/aggregations/{column}.png
	case strings.HasPrefix(path, "/figures/aggregations/"):
		return "/figures/aggregations/:column"
	// /uploads/{id}
	case strings.HasPrefix(path, "/uploads/") && len(parts) == 3:
		return "/uploads/:id"
	// /api/v1/datasets/{label}
	case strings.HasPrefix(path, "/api/v1/datasets/") && len(parts) >= 5:
		return "/api/v1/datasets/:label"
	case strings.HasPrefix(path, "/api/v1/stream/") && len(parts) >= 5:
		return "/api/v1/stream/" + parts[4]
	}

	switch path {
	case "/healthz", "/readyz", "/version", "/metrics", "/upload", "/tweaks",
		"/figures/folds.png", "/figures/raw.png",
		"/api/v1", "/api/v1/datasets", "/api/v1/splits", "/api/v1/limits", "/api/v1/aggregations", "/api/v1/config":
		return path
	}

	if strings.HasPrefix(path, "/static/") {
		return "/static"
	}
	return "other"
}
