package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the dashboard server
var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesplit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timesplit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// Dataset config reads
	datasetConfigReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesplit_dataset_config_reads_total",
			Help: "Total number of dataset config file reads",
		},
		[]string{"status"},
	)

	datasetConfigDigestChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "timesplit_dataset_config_digest_changes_total",
			Help: "Total number of observed dataset config content changes",
		},
	)

	// Dataset loads
	datasetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesplit_dataset_loads_total",
			Help: "Total number of dataset loads",
		},
		[]string{"status"},
	)

	datasetLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timesplit_dataset_load_duration_seconds",
			Help:    "Duration of a full dataset reload",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	datasetsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "timesplit_datasets_loaded",
			Help: "Number of datasets in the current snapshot",
		},
	)

	// Split computations
	splitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesplit_splits_total",
			Help: "Total number of split computations",
		},
		[]string{"status"},
	)

	splitFolds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timesplit_split_folds",
			Help:    "Number of folds per split computation",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250},
		},
		[]string{"kind"},
	)

	// Figure rendering
	figureRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timesplit_figure_render_duration_seconds",
			Help:    "Figure render duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"figure"},
	)

	// WebSocket metrics
	websocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesplit_websocket_connections_total",
			Help: "Total number of WebSocket connections",
		},
		[]string{"stream_type"},
	)

	websocketConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timesplit_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
		[]string{"stream_type"},
	)

	// Rate limiting metrics
	rateLimitedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesplit_rate_limited_requests_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"endpoint"},
	)

	// Limit violations
	limitViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesplit_limit_violations_total",
			Help: "Total number of rejected attempts to exceed a server limit",
		},
		[]string{"key"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordHTTPRequest records metrics for HTTP requests
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	labels := prometheus.Labels{
		"method":      method,
		"path":        path,
		"status_code": strconv.Itoa(statusCode),
	}

	httpRequestsTotal.With(labels).Inc()
	httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// RecordConfigRead records a dataset config read and whether its digest changed
func RecordConfigRead(err error, changed bool) {
	datasetConfigReadsTotal.With(prometheus.Labels{"status": status(err)}).Inc()
	if changed {
		datasetConfigDigestChangesTotal.Inc()
	}
}

// RecordDatasetLoad records a full dataset reload
func RecordDatasetLoad(count int, duration time.Duration, err error) {
	labels := prometheus.Labels{"status": status(err)}
	datasetLoadsTotal.With(labels).Inc()
	datasetLoadDuration.With(labels).Observe(duration.Seconds())
	if err == nil {
		datasetsLoaded.Set(float64(count))
	}
}

// RecordSplit records a split computation
func RecordSplit(kept, total int, err error) {
	splitsTotal.With(prometheus.Labels{"status": status(err)}).Inc()
	if err != nil {
		return
	}
	splitFolds.With(prometheus.Labels{"kind": "kept"}).Observe(float64(kept))
	splitFolds.With(prometheus.Labels{"kind": "removed"}).Observe(float64(total - kept))
}

// RecordFigureRender records figure render durations
func RecordFigureRender(figure string, duration time.Duration) {
	figureRenderDuration.With(prometheus.Labels{"figure": figure}).Observe(duration.Seconds())
}

// RecordWebSocketConnection records WebSocket connection metrics
func RecordWebSocketConnection(streamType string) {
	websocketConnectionsTotal.With(prometheus.Labels{"stream_type": streamType}).Inc()
	websocketConnectionsActive.With(prometheus.Labels{"stream_type": streamType}).Inc()
}

// RecordWebSocketDisconnection records WebSocket disconnection metrics
func RecordWebSocketDisconnection(streamType string) {
	websocketConnectionsActive.With(prometheus.Labels{"stream_type": streamType}).Dec()
}

// RecordRateLimitedRequest records rate limiting metrics
func RecordRateLimitedRequest(endpoint string) {
	rateLimitedRequestsTotal.With(prometheus.Labels{"endpoint": endpoint}).Inc()
}

// RecordLimitViolation records a rejected attempt to raise a server limit
func RecordLimitViolation(key string) {
	limitViolationsTotal.With(prometheus.Labels{"key": key}).Inc()
}
