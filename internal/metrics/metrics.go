// Package metrics provides Prometheus metrics for tide.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tide_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tide_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Tree metrics
	treeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tide_tree_size",
			Help: "Number of files/directories in the course tree",
		},
	)

	treeRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tide_tree_rebuilds_total",
			Help: "Total number of course tree rebuilds",
		},
		[]string{"trigger", "result"},
	)

	treeRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tide_tree_rebuild_duration_seconds",
			Help:    "Time to rebuild the course tree from disk",
			Buckets: prometheus.DefBuckets,
		},
	)

	refreshRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tide_refresh_rejected_total",
			Help: "Refresh requests rejected before touching the filesystem",
		},
		[]string{"reason"},
	)

	// Sidecar metrics
	sidecarIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tide_sidecar_ingested_total",
			Help: "Sidecar files processed",
		},
		[]string{"result"},
	)

	sidecarTasksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tide_sidecar_tasks_total",
			Help: "Task records written from sidecar files",
		},
	)

	// Store metrics
	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tide_store_op_duration_seconds",
			Help:    "Metadata store operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend", "op"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tide_db_connections_open",
			Help: "Number of open SQL connections",
		},
	)

	// Event metrics
	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tide_events_subscribers",
			Help: "Number of active change-event subscribers",
		},
	)

	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tide_events_published_total",
			Help: "Total change events published",
		},
		[]string{"type"},
	)

	// Remote sync and auth
	remoteSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tide_remote_sync_total",
			Help: "Remote points fetches by result",
		},
		[]string{"result"},
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tide_auth_attempts_total",
			Help: "API authentication attempts",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func SetTreeSize(size int) {
	treeSize.Set(float64(size))
}

// RecordRebuild records one finished rebuild.
func RecordRebuild(trigger string, duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	treeRebuildsTotal.WithLabelValues(trigger, result).Inc()
	treeRebuildDuration.Observe(duration.Seconds())
}

func RecordRefreshRejected(reason string) {
	refreshRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordSidecar records one sidecar file and the tasks it produced.
func RecordSidecar(tasks int, success bool) {
	if !success {
		sidecarIngestedTotal.WithLabelValues("error").Inc()
		return
	}
	sidecarIngestedTotal.WithLabelValues("success").Inc()
	sidecarTasksTotal.Add(float64(tasks))
}

func RecordStoreOp(backend, op string, duration time.Duration) {
	storeOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

func SetEventSubscribers(count int) {
	eventSubscribers.Set(float64(count))
}

func RecordEvent(eventType string) {
	eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func RecordRemoteSync(success bool) {
	if success {
		remoteSyncTotal.WithLabelValues("success").Inc()
	} else {
		remoteSyncTotal.WithLabelValues("error").Inc()
	}
}

func RecordAuthAttempt(success bool) {
	if success {
		authAttemptsTotal.WithLabelValues("success").Inc()
	} else {
		authAttemptsTotal.WithLabelValues("failure").Inc()
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
// pathLabel maps a request to a bounded label; nil uses the URL path.
func Middleware(pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			label := r.URL.Path
			if pathLabel != nil {
				label = pathLabel(r)
			}
			RecordHTTPRequest(r.Method, label, rw.statusCode, time.Since(start))
		})
	}
}
