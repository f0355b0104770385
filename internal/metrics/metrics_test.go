package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if monitorCyclesTotal == nil || monitorScrapesTotal == nil ||
		monitorVideosSeenTotal == nil || monitorViralAlertsTotal == nil ||
		monitorActiveWorkers == nil || monitorScrapeDurationSecs == nil ||
		monitorStoreRetriesTotal == nil || monitorResourceCleanupTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(monitorCyclesTotal)
	ObserveCycle()
	if got := testutil.ToFloat64(monitorCyclesTotal); got != before+1 {
		t.Errorf("cycle counter = %v, want %v", got, before+1)
	}

	beforeScrapes := testutil.ToFloat64(monitorScrapesTotal.WithLabelValues("creator", "success"))
	ObserveScrape("creator", "success")
	if got := testutil.ToFloat64(monitorScrapesTotal.WithLabelValues("creator", "success")); got != beforeScrapes+1 {
		t.Errorf("scrape counter = %v, want %v", got, beforeScrapes+1)
	}

	beforeVideos := testutil.ToFloat64(monitorVideosSeenTotal.WithLabelValues("creator"))
	ObserveVideosSeen("creator", 5)
	ObserveVideosSeen("creator", 0)
	if got := testutil.ToFloat64(monitorVideosSeenTotal.WithLabelValues("creator")); got != beforeVideos+5 {
		t.Errorf("videos counter = %v, want %v", got, beforeVideos+5)
	}

	beforeAlerts := testutil.ToFloat64(monitorViralAlertsTotal.WithLabelValues("creator"))
	ObserveViralAlert("creator")
	if got := testutil.ToFloat64(monitorViralAlertsTotal.WithLabelValues("creator")); got != beforeAlerts+1 {
		t.Errorf("alert counter = %v, want %v", got, beforeAlerts+1)
	}
}

func TestActiveWorkersGauge(t *testing.T) {
	Init()

	base := testutil.ToFloat64(monitorActiveWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	if got := testutil.ToFloat64(monitorActiveWorkers); got != base+2 {
		t.Errorf("active workers = %v, want %v", got, base+2)
	}
	DecActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(monitorActiveWorkers); got != base {
		t.Errorf("active workers = %v, want %v", got, base)
	}
}

func TestObserveScrapeDuration(t *testing.T) {
	Init()

	// Histograms cannot be read back through ToFloat64; recording must
	// simply not panic on an initialized collector.
	ObserveScrapeDuration(1500 * time.Millisecond)
}
