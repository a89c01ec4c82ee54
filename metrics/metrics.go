package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetlight_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streetlight_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streetlight_api_active_requests",
			Help: "Number of requests currently being served",
		},
	)

	// Report Metrics
	ReportsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetlight_reports_created_total",
			Help: "Total number of reports created, by initial status",
		},
		[]string{"status"},
	)

	ReportDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streetlight_report_duplicates_total",
			Help: "Total number of reports flagged as duplicates",
		},
	)

	ReportTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetlight_report_transitions_total",
			Help: "Total number of report status transitions",
		},
		[]string{"from", "to"},
	)

	ImageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetlight_image_uploads_total",
			Help: "Total number of image uploads by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Collaborator Metrics
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetlight_geocode_lookups_total",
			Help: "Total number of reverse geocode lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "cache_hit", "error"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streetlight_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Auth Metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetlight_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"}, // "success", "failure", "locked"
	)

	AccountLockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streetlight_account_lockouts_total",
			Help: "Total number of accounts locked after repeated failures",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func RecordImageUpload(err error) {
	if err != nil {
		ImageUploads.WithLabelValues("failure").Inc()
		return
	}
	ImageUploads.WithLabelValues("success").Inc()
}

// RecordBreakerState stores a gobreaker state as its numeric value.
func RecordBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
