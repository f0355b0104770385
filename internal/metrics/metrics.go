// Package metrics exposes Prometheus collectors for the monitor service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	monitorCyclesTotal          prometheus.Counter
	monitorScrapesTotal         *prometheus.CounterVec
	monitorVideosSeenTotal      *prometheus.CounterVec
	monitorViralAlertsTotal     *prometheus.CounterVec
	monitorActiveWorkers        prometheus.Gauge
	monitorScrapeDurationSecs   prometheus.Histogram
	monitorStoreRetriesTotal    prometheus.Counter
	monitorResourceCleanupTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		monitorCyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_cycles_total",
				Help: "Total number of completed monitoring cycles.",
			},
		)

		monitorScrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_scrapes_total",
				Help: "Total number of account scrape attempts, labeled by account and outcome.",
			},
			[]string{"handle", "outcome"},
		)

		monitorVideosSeenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_videos_seen_total",
				Help: "Total number of video snapshots processed, labeled by account.",
			},
			[]string{"account"},
		)

		monitorViralAlertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_viral_alerts_total",
				Help: "Total number of viral alerts dispatched, labeled by account.",
			},
			[]string{"account"},
		)

		monitorActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_active_workers",
				Help: "Number of workers currently scraping an account.",
			},
		)

		monitorScrapeDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monitor_scrape_duration_seconds",
				Help:    "Histogram of single scrape attempt latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		)

		monitorStoreRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_store_retries_total",
				Help: "Total number of retried storage operations.",
			},
		)

		monitorResourceCleanupTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_resource_cleanups_total",
				Help: "Total number of cleanup passes forced by resource pressure.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle increments the completed cycle counter.
func ObserveCycle() {
	monitorCyclesTotal.Inc()
}

// ObserveScrape increments the scrape counter for one account attempt.
func ObserveScrape(handle, outcome string) {
	monitorScrapesTotal.WithLabelValues(handle, outcome).Inc()
}

// ObserveVideosSeen adds processed snapshot counts for an account.
func ObserveVideosSeen(account string, n int) {
	if n > 0 {
		monitorVideosSeenTotal.WithLabelValues(account).Add(float64(n))
	}
}

// ObserveViralAlert increments the alert counter for an account.
func ObserveViralAlert(account string) {
	monitorViralAlertsTotal.WithLabelValues(account).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	monitorActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	monitorActiveWorkers.Dec()
}

// ObserveScrapeDuration records the duration of one scrape attempt.
func ObserveScrapeDuration(duration time.Duration) {
	monitorScrapeDurationSecs.Observe(duration.Seconds())
}

// ObserveStoreRetry increments the storage retry counter.
func ObserveStoreRetry() {
	monitorStoreRetriesTotal.Inc()
}

// ObserveResourceCleanup increments the forced cleanup counter.
func ObserveResourceCleanup() {
	monitorResourceCleanupTotal.Inc()
}
