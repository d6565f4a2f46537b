// Package telemetry exposes Prometheus metrics for the harvest and
// extraction pipelines.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_documents_total",
			Help: "Documents processed by the harvest pipeline, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	harvestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_attachment_bytes_total",
			Help: "Total attachment bytes downloaded.",
		},
	)

	listingAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_acquisitions_total",
			Help: "Listing acquisition attempts, labeled by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	extractionDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_documents_total",
			Help: "Feature extraction attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	modelCallRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "extraction_model_retries_total",
			Help: "Total retried language model calls.",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_workers",
			Help: "Number of workers currently processing an item.",
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_rate_limit_delay_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// ObserveDocument records the outcome of one harvested document.
func ObserveDocument(outcome string, bytesDownloaded int) {
	harvestDocumentsTotal.WithLabelValues(outcome).Inc()
	if bytesDownloaded > 0 {
		harvestBytesTotal.Add(float64(bytesDownloaded))
	}
}

// ObserveListing records a listing strategy attempt.
func ObserveListing(strategy, outcome string) {
	listingAcquisitionsTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObserveExtraction records a feature extraction outcome.
func ObserveExtraction(outcome string) {
	extractionDocumentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveModelRetry records a retried model call.
func ObserveModelRetry() {
	modelCallRetriesTotal.Inc()
}

// IncActiveWorkers increments the active worker count.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active worker count.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest records metrics for a served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
