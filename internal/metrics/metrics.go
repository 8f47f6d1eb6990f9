// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerDomainsDiscovered   prometheus.Counter
	crawlerRestrictedURLsTotal prometheus.Counter
	crawlerRobotsFetchesTotal  *prometheus.CounterVec
	crawlerDispatchRejected    prometheus.Counter
	crawlerActiveRuns          prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages crawled, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerDomainsDiscovered = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_domains_discovered_total",
				Help: "Total number of new domains recorded for approval.",
			},
		)

		crawlerRestrictedURLsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_restricted_urls_total",
				Help: "Total number of fetches blocked by robots.txt.",
			},
		)

		crawlerRobotsFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_robots_fetches_total",
				Help: "Total robots.txt fetches, labeled by result (ok or fallback).",
			},
			[]string{"result"},
		)

		crawlerDispatchRejected = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_dispatch_rejected_total",
				Help: "Total crawl dispatches rejected due to a full backlog.",
			},
		)

		crawlerActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_runs",
				Help: "Number of crawl runs currently executing.",
			},
		)
	})
}

// ObservePageCrawled counts a finished page crawl by outcome
// (completed or failed).
func ObservePageCrawled(outcome string) {
	if crawlerPagesTotal != nil {
		crawlerPagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveDomainDiscovered counts a newly recorded domain.
func ObserveDomainDiscovered() {
	if crawlerDomainsDiscovered != nil {
		crawlerDomainsDiscovered.Inc()
	}
}

// ObserveRestrictedURL counts a robots-blocked fetch attempt.
func ObserveRestrictedURL() {
	if crawlerRestrictedURLsTotal != nil {
		crawlerRestrictedURLsTotal.Inc()
	}
}

// ObserveRobotsFetch counts a robots.txt fetch by result.
func ObserveRobotsFetch(result string) {
	if crawlerRobotsFetchesTotal != nil {
		crawlerRobotsFetchesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveDispatchRejected counts a back-pressure rejection.
func ObserveDispatchRejected() {
	if crawlerDispatchRejected != nil {
		crawlerDispatchRejected.Inc()
	}
}

// IncActiveRuns increments the active-run gauge.
func IncActiveRuns() {
	if crawlerActiveRuns != nil {
		crawlerActiveRuns.Inc()
	}
}

// DecActiveRuns decrements the active-run gauge.
func DecActiveRuns() {
	if crawlerActiveRuns != nil {
		crawlerActiveRuns.Dec()
	}
}
