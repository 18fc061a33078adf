// Package metrics exposes the crawl engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PagesVisited tracks page records created across all sessions.
	PagesVisited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoscope_pages_visited_total",
		Help: "The total number of page records created.",
	})
	// PagesFailed tracks pages whose final fetch outcome was an error.
	PagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoscope_pages_failed_total",
		Help: "The total number of pages that failed to fetch.",
	})
	// PagesSkippedFilter tracks URLs rejected by scope patterns.
	PagesSkippedFilter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoscope_pages_skipped_filter_total",
		Help: "The total number of URLs rejected by include/exclude patterns.",
	})
	// PagesSkippedRobots tracks URLs refused under robots.txt.
	PagesSkippedRobots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoscope_pages_skipped_robots_total",
		Help: "The total number of URLs skipped due to robots.txt rules.",
	})
	// RenderEscalations tracks pages re-fetched through headless Chrome.
	RenderEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoscope_render_escalations_total",
		Help: "The total number of pages escalated to headless rendering.",
	})
	// FetchDuration observes end-to-end fetch latency including retries.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seoscope_fetch_duration_seconds",
		Help:    "End-to-end fetch duration including retries.",
		Buckets: prometheus.DefBuckets,
	})
	// FrontierRemaining gauges the current frontier size estimate.
	FrontierRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seoscope_frontier_remaining",
		Help: "Estimated number of URLs still awaiting dispatch.",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
