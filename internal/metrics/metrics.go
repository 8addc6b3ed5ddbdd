package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	connectsTotal         *prometheus.CounterVec
	codeVerifications     *prometheus.CounterVec
	passwordChecks        *prometheus.CounterVec
	accountsActive        prometheus.Gauge
	transcriptionsTotal   *prometheus.CounterVec
	transcriptionDuration prometheus.Histogram
	forwardsTotal         *prometheus.CounterVec
	httpRequestsTotal     *prometheus.CounterVec
)

// EnsureRegistered initializes and registers all relay metrics. Safe to call
// from any package that records metrics.
func EnsureRegistered() {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()

		connectsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_connects_total",
				Help: "Total number of connect attempts by outcome",
			},
			[]string{"status"},
		)
		codeVerifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_code_verifications_total",
				Help: "Total number of login code submissions by outcome",
			},
			[]string{"status"},
		)
		passwordChecks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_password_verifications_total",
				Help: "Total number of two-factor password submissions by outcome",
			},
			[]string{"status"},
		)
		accountsActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_accounts_active",
				Help: "Number of account sessions currently tracked",
			},
		)
		transcriptionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_transcriptions_total",
				Help: "Total number of transcription pipeline runs by outcome",
			},
			[]string{"status"},
		)
		transcriptionDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_transcription_duration_seconds",
				Help:    "Duration of transcription pipeline runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		forwardsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_webhook_forwards_total",
				Help: "Total number of downstream webhook deliveries by outcome",
			},
			[]string{"status"},
		)
		httpRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP API requests by path and status code",
			},
			[]string{"path", "code"},
		)

		registry.MustRegister(
			connectsTotal,
			codeVerifications,
			passwordChecks,
			accountsActive,
			transcriptionsTotal,
			transcriptionDuration,
			forwardsTotal,
			httpRequestsTotal,
		)
	})
}

// RecordConnect counts a connect attempt outcome
func RecordConnect(status string) {
	EnsureRegistered()
	connectsTotal.WithLabelValues(status).Inc()
}

// RecordCodeVerification counts a code submission outcome
func RecordCodeVerification(status string) {
	EnsureRegistered()
	codeVerifications.WithLabelValues(status).Inc()
}

// RecordPasswordVerification counts a password submission outcome
func RecordPasswordVerification(status string) {
	EnsureRegistered()
	passwordChecks.WithLabelValues(status).Inc()
}

// SetActiveAccounts records the number of tracked account sessions
func SetActiveAccounts(n int) {
	EnsureRegistered()
	accountsActive.Set(float64(n))
}

// RecordTranscription counts a pipeline run and its duration
func RecordTranscription(status string, d time.Duration) {
	EnsureRegistered()
	transcriptionsTotal.WithLabelValues(status).Inc()
	transcriptionDuration.Observe(d.Seconds())
}

// RecordForward counts a downstream webhook delivery outcome
func RecordForward(status string) {
	EnsureRegistered()
	forwardsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest counts an API request
func RecordHTTPRequest(path string, code int) {
	EnsureRegistered()
	httpRequestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// Handler returns the metrics exposition handler
func Handler() http.Handler {
	EnsureRegistered()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
