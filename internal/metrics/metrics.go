// Package metrics exposes Prometheus collectors for the fetch engine and its API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeHTTPError = "http_error"
	OutcomeEmpty     = "empty"
	OutcomeNoJSON    = "no_json"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	responseBytesTotal         *prometheus.CounterVec
	pendingFetches             prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetcher_fetches_total",
				Help: "Total number of completed fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetcher_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies from dispatch to body read, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"site"},
		)

		responseBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetcher_response_bytes_total",
				Help: "Total number of response body bytes read, labeled by site.",
			},
			[]string{"site"},
		)

		pendingFetches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetcher_pending_fetches",
				Help: "Number of fetches started and not yet completed, including those waiting for a slot.",
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
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch records one completed fetch.
func ObserveFetch(site, outcome string, bytesRead int, duration time.Duration) {
	sanitizedSite := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
	if bytesRead > 0 {
		responseBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesRead))
	}
}

// IncPendingFetches increments the pending fetches gauge.
func IncPendingFetches() {
	pendingFetches.Inc()
}

// DecPendingFetches decrements the pending fetches gauge.
func DecPendingFetches() {
	pendingFetches.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
