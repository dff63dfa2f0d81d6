package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// directoryUp reports the liveness monitor's view of the backing store:
	// 1 healthy, 0 degraded.
	directoryUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "directory_up",
		Help: "Whether the directory backing store is reachable.",
	})
)

// Init registers the shared metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, directoryUp)
}

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetDirectoryUp records the outcome of a liveness check.
func SetDirectoryUp(up bool) {
	if up {
		directoryUp.Set(1)
		return
	}
	directoryUp.Set(0)
}

// Instrument wraps a handler with request counters, latency histograms and
// the in-flight gauge.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// entity collections whose element ids are collapsed in metric labels.
var canonicalCollections = map[string]bool{
	"users":       true,
	"groups":      true,
	"roles":       true,
	"permissions": true,
}

// sub-resources kept after a collapsed id segment.
var canonicalSuffixes = map[string]bool{
	"groups":      true,
	"roles":       true,
	"permissions": true,
	"members":     true,
	"children":    true,
	"ancestry":    true,
}

// CanonicalPath collapses entity ids out of request paths so metric labels
// stay low-cardinality: /v1/users/01ABC -> /v1/users/:id.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	// "", "v1", collection, id[, suffix]
	if len(parts) >= 4 && parts[1] == "v1" && canonicalCollections[parts[2]] && parts[3] != "" {
		switch {
		case len(parts) == 4:
			return "/v1/" + parts[2] + "/:id"
		case len(parts) == 5 && canonicalSuffixes[parts[4]]:
			return "/v1/" + parts[2] + "/:id/" + parts[4]
		}
	}
	return path
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
