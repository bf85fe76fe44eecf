package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the tab session engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Persistence metrics
	SnapshotsRequested prometheus.Counter
	ArchiveWrites      *prometheus.CounterVec
	WritesSuperseded   prometheus.Counter
	WriteDuration      prometheus.Histogram
	ArchiveBytes       prometheus.Gauge
	ArchiveTabs        prometheus.Gauge

	// Asset metrics
	AssetsCollected prometheus.Counter
	AssetFailures   *prometheus.CounterVec

	// Restoration metrics
	TabsRestored     prometheus.Counter
	RestoresRejected prometheus.Counter
	RestoresSkipped  prometheus.Counter

	// Migration metrics
	TabsMigrated *prometheus.CounterVec

	// HTTP metrics (debug surface)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates a metrics collector registered on reg
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SnapshotsRequested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabsession_snapshots_requested_total",
				Help: "Total number of snapshot requests from the live tab set",
			},
		),
		ArchiveWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabsession_archive_writes_total",
				Help: "Total number of archive writes by result",
			},
			[]string{"result"},
		),
		WritesSuperseded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabsession_archive_writes_superseded_total",
				Help: "Scheduled archive writes replaced before they started",
			},
		),
		WriteDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tabsession_archive_write_duration_seconds",
				Help:    "Archive encode and write duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		ArchiveBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tabsession_archive_bytes",
				Help: "Size of the last written archive in bytes",
			},
		),
		ArchiveTabs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tabsession_archive_tabs",
				Help: "Number of tabs in the last written archive",
			},
		),

		AssetsCollected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabsession_assets_collected_total",
				Help: "Orphaned screenshots removed by garbage collection",
			},
		),
		AssetFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabsession_asset_failures_total",
				Help: "Best-effort screenshot operations that failed",
			},
			[]string{"op"},
		),

		TabsRestored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabsession_tabs_restored_total",
				Help: "Placeholder tabs materialized during restoration",
			},
		),
		RestoresRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabsession_restores_rejected_total",
				Help: "Restoration attempts rejected because one was in progress",
			},
		),
		RestoresSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabsession_records_skipped_total",
				Help: "Archived records that could not be materialized",
			},
		),

		TabsMigrated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabsession_tabs_migrated_total",
				Help: "Legacy tabs converted by result",
			},
			[]string{"result"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabsession_http_requests_total",
				Help: "Total number of debug HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabsession_http_request_duration_seconds",
				Help:    "Debug HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the Prometheus exposition handler for this registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncSnapshotsRequested counts a snapshot request
func (m *Metrics) IncSnapshotsRequested() {
	if m == nil {
		return
	}
	m.SnapshotsRequested.Inc()
}

// RecordArchiveWrite records a finished archive write
func (m *Metrics) RecordArchiveWrite(err error, tabs, size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.WriteDuration.Observe(duration.Seconds())
	if err != nil {
		m.ArchiveWrites.WithLabelValues("error").Inc()
		return
	}
	m.ArchiveWrites.WithLabelValues("ok").Inc()
	m.ArchiveBytes.Set(float64(size))
	m.ArchiveTabs.Set(float64(tabs))
}

// IncWritesSuperseded counts a write dropped in favour of a newer one
func (m *Metrics) IncWritesSuperseded() {
	if m == nil {
		return
	}
	m.WritesSuperseded.Inc()
}

// AddAssetsCollected counts removed orphan screenshots
func (m *Metrics) AddAssetsCollected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AssetsCollected.Add(float64(n))
}

// IncAssetFailure counts a failed screenshot operation
func (m *Metrics) IncAssetFailure(op string) {
	if m == nil {
		return
	}
	m.AssetFailures.WithLabelValues(op).Inc()
}

// AddTabsRestored counts materialized placeholders
func (m *Metrics) AddTabsRestored(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TabsRestored.Add(float64(n))
}

// IncRestoresRejected counts a re-entrant restoration attempt
func (m *Metrics) IncRestoresRejected() {
	if m == nil {
		return
	}
	m.RestoresRejected.Inc()
}

// IncRecordsSkipped counts a record that failed to materialize
func (m *Metrics) IncRecordsSkipped() {
	if m == nil {
		return
	}
	m.RestoresSkipped.Inc()
}

// IncTabsMigrated counts a converted legacy tab; result is "ok" or "skipped"
func (m *Metrics) IncTabsMigrated(result string) {
	if m == nil {
		return
	}
	m.TabsMigrated.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a debug HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
