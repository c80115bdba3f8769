// Package metrics exposes Prometheus collectors for the lead pipeline service.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapesTotal               *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	leadsScoredTotal           *prometheus.CounterVec
	pipelineJobsTotal          *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadforge_scrapes_total",
				Help: "Total number of scrape attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadforge_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		leadsScoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadforge_leads_scored_total",
				Help: "Total number of leads scored, labeled by resulting status.",
			},
			[]string{"status"},
		)

		pipelineJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadforge_pipeline_jobs_total",
				Help: "Total number of pipeline jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadforge_rate_limit_delays_seconds",
				Help:    "Histogram of per-domain rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"domain"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadforge_http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
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
	return promhttp.Handler()
}

// ObserveScrape increments the scrape counter for the given outcome.
func ObserveScrape(site string, success bool) {
	if scrapesTotal == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	scrapesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveFetch records a page fetch duration.
func ObserveFetch(site string, duration time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveLeadScored increments the scored-lead counter for the given status.
func ObserveLeadScored(status string) {
	if leadsScoredTotal == nil {
		return
	}
	leadsScoredTotal.WithLabelValues(status).Inc()
}

// ObservePipelineJob increments the pipeline job counter for the given status.
func ObservePipelineJob(status string) {
	if pipelineJobsTotal == nil {
		return
	}
	pipelineJobsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	if rateLimitDelaysSeconds == nil {
		return
	}
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records an API request latency.
func ObserveHTTPRequest(method, route string, duration time.Duration) {
	if httpRequestDurationSeconds == nil {
		return
	}
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
