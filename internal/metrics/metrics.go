// Package metrics exposes Prometheus collectors for the venue scraper service.
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

var (
	tasksTotal                 *prometheus.CounterVec
	taskPhaseDurationSeconds   *prometheus.HistogramVec
	activeRuns                 prometheus.Gauge
	pagesTotal                 *prometheus.CounterVec
	bytesTotal                 *prometheus.CounterVec
	llmRequestsTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	robotsFallbackTotal        prometheus.Counter
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venue_tasks_total",
				Help: "Scraping tasks that reached a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		taskPhaseDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "venue_task_phase_duration_seconds",
				Help:    "Time spent in each task phase (scrape, extract, persist).",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"phase"},
		)

		activeRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "venue_active_runs",
				Help: "Number of tasks currently being processed.",
			},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venue_pages_total",
				Help: "Venue pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		bytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venue_bytes_total",
				Help: "Bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		llmRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venue_llm_requests_total",
				Help: "Language model extraction calls, labeled by outcome.",
			},
			[]string{"outcome"},
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

		robotsFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "venue_robots_fallback_total",
				Help: "robots.txt lookups that timed out and fell back to allow-all.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "venue_rate_limit_delays_seconds",
				Help:    "Histogram of per-domain rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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
	return promhttp.Handler()
}

// ObserveTask counts a terminal task transition.
func ObserveTask(status string) {
	if tasksTotal == nil {
		return
	}
	tasksTotal.WithLabelValues(status).Inc()
}

// ObservePhase records how long a task phase took.
func ObservePhase(phase string, duration time.Duration) {
	if taskPhaseDurationSeconds == nil {
		return
	}
	taskPhaseDurationSeconds.WithLabelValues(phase).Observe(duration.Seconds())
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	if activeRuns != nil {
		activeRuns.Inc()
	}
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	if activeRuns != nil {
		activeRuns.Dec()
	}
}

// ObservePage counts a fetched page and its size.
func ObservePage(site string, status string, bytesFetched int) {
	if pagesTotal == nil {
		return
	}
	sanitizedSite := SanitizeSite(site)
	pagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		bytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveLLM counts a language model call by outcome (ok, empty, error).
func ObserveLLM(outcome string) {
	if llmRequestsTotal == nil {
		return
	}
	llmRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts an allow-all robots.txt fallback.
func ObserveRobotsFallback() {
	if robotsFallbackTotal != nil {
		robotsFallbackTotal.Inc()
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	if rateLimitDelaysSeconds == nil {
		return
	}
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
