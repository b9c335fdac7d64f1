// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	targetsTotal  *prometheus.CounterVec
	postsTotal    *prometheus.CounterVec
	mediaTotal    *prometheus.CounterVec
	retriesTotal  prometheus.Counter
	activeWorkers prometheus.Gauge

	once sync.Once
)

// Init registers the collectors on the default registry. Safe to call
// multiple times.
func Init() {
	once.Do(func() {
		targetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_targets_total",
				Help: "Crawl units completed, labeled by outcome.",
			},
			[]string{"status"},
		)
		postsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_posts_total",
				Help: "Post records processed, labeled by outcome.",
			},
			[]string{"status"},
		)
		mediaTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_media_total",
				Help: "Media downloads and uploads, labeled by outcome.",
			},
			[]string{"status"},
		)
		retriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_retries_total",
				Help: "Retry attempts made by the backoff policy.",
			},
		)
		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Workers currently processing a crawl unit.",
			},
		)
	})
}

// ObserveTarget records one finished crawl unit.
func ObserveTarget(status string) {
	if targetsTotal != nil {
		targetsTotal.WithLabelValues(status).Inc()
	}
}

// ObservePost records one post outcome ("persisted" or "failed").
func ObservePost(status string) {
	if postsTotal != nil {
		postsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveMedia records one media item outcome.
func ObserveMedia(status string) {
	if mediaTotal != nil {
		mediaTotal.WithLabelValues(status).Inc()
	}
}

// ObserveRetry records one backoff retry.
func ObserveRetry() {
	if retriesTotal != nil {
		retriesTotal.Inc()
	}
}

// WorkerStarted and WorkerFinished track the active worker gauge.
func WorkerStarted() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// WorkerFinished decrements the active worker gauge.
func WorkerFinished() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}
