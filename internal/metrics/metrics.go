// Package metrics exposes Prometheus collectors for the crawl and query paths.
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
	crawlerPagesTotal      *prometheus.CounterVec
	crawlerErrorsTotal     *prometheus.CounterVec
	crawlDurationSeconds   prometheus.Histogram
	documentsIngestedTotal prometheus.Counter
	queryTotal             *prometheus.CounterVec
	queryDurationSeconds   prometheus.Histogram

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragline_crawler_pages_total",
				Help: "Pages fetched during crawls, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragline_crawler_errors_total",
				Help: "Per-page crawl failures, labeled by site.",
			},
			[]string{"site"},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragline_crawl_duration_seconds",
				Help:    "Wall-clock duration of whole crawl runs.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		documentsIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ragline_documents_ingested_total",
				Help: "Document chunks embedded and stored.",
			},
		)

		queryTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragline_queries_total",
				Help: "Queries answered, labeled by confidence level.",
			},
			[]string{"level"},
		)

		queryDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragline_query_duration_seconds",
				Help:    "End-to-end query latency including embedding and completion.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname for use as a label value.
// It returns "unknown" when the URL is unparseable.
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

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one fetched page.
func ObservePage(site string) {
	if crawlerPagesTotal == nil {
		return
	}
	crawlerPagesTotal.WithLabelValues(site).Inc()
}

// ObservePageError records one per-page crawl failure.
func ObservePageError(site string) {
	if crawlerErrorsTotal == nil {
		return
	}
	crawlerErrorsTotal.WithLabelValues(site).Inc()
}

// ObserveCrawl records a completed crawl run.
func ObserveCrawl(duration time.Duration) {
	if crawlDurationSeconds == nil {
		return
	}
	crawlDurationSeconds.Observe(duration.Seconds())
}

// ObserveIngest records n stored document chunks.
func ObserveIngest(n int) {
	if documentsIngestedTotal == nil || n <= 0 {
		return
	}
	documentsIngestedTotal.Add(float64(n))
}

// ObserveQuery records an answered query and its latency.
func ObserveQuery(level string, duration time.Duration) {
	if queryTotal == nil {
		return
	}
	queryTotal.WithLabelValues(level).Inc()
	queryDurationSeconds.Observe(duration.Seconds())
}
