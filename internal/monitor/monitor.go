package monitor

import (
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics represents all the application metrics
type Metrics struct {
	// Scrape metrics
	RunsTotal        *prometheus.CounterVec
	RunsFailed       *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RecordsExtracted *prometheus.CounterVec
	ItemsSkipped     *prometheus.CounterVec
	FieldsMissing    *prometheus.CounterVec

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge

	// Storage metrics
	StorageOperations *prometheus.CounterVec
	StorageDuration   *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	ActiveRuns prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_scraper_runs_total",
				Help: "Total number of scrape runs",
			},
			[]string{"platform", "kind"},
		),

		RunsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_scraper_runs_failed_total",
				Help: "Total number of failed scrape runs",
			},
			[]string{"platform", "error_kind"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "social_scraper_run_duration_seconds",
				Help:    "Time spent on scrape runs",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"platform", "kind"},
		),

		RecordsExtracted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_scraper_records_total",
				Help: "Total number of normalized records",
			},
			[]string{"platform"},
		),

		ItemsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_scraper_items_skipped_total",
				Help: "Total number of fanned-out items that could not be extracted",
			},
			[]string{"platform"},
		),

		FieldsMissing: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_scraper_fields_missing_total",
				Help: "Total number of schema fields not found on a page",
			},
			[]string{"platform", "kind", "field"},
		),

		Goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "social_scraper_goroutines",
			Help: "Number of goroutines",
		}),

		MemoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "social_scraper_memory_usage_bytes",
			Help: "Memory usage in bytes",
		}),

		StorageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_scraper_storage_operations_total",
				Help: "Total storage operations",
			},
			[]string{"operation", "status"},
		),

		StorageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "social_scraper_storage_duration_seconds",
				Help:    "Time spent on storage operations",
				Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
			},
			[]string{"operation"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_scraper_http_requests_total",
				Help: "Total API requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "social_scraper_http_duration_seconds",
				Help:    "Time spent serving API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "social_scraper_active_runs",
			Help: "Number of scrape runs in progress",
		}),
	}
}

// Monitor represents the monitoring system
type Monitor struct {
	metrics  *Metrics
	registry *prometheus.Registry
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor with its own metrics registry
func NewMonitor() *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:  NewMetrics(reg),
		registry: reg,
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the monitoring system
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info().Msg("Monitoring system started")
}

// Stop stops the monitoring system
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()

	m.logger.Info().Msg("Monitoring system stopped")
}

// collectSystemMetrics collects system metrics periodically
func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	m.sampleSystem()
	for {
		select {
		case <-ticker.C:
			m.sampleSystem()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) sampleSystem() {
	m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.metrics.MemoryUsage.Set(float64(memStats.Alloc))
}

// RecordRunStart records the start of a scrape run
func (m *Monitor) RecordRunStart(platform, kind string) {
	m.metrics.RunsTotal.WithLabelValues(platform, kind).Inc()
	m.metrics.ActiveRuns.Inc()
}

// RecordRunSuccess records a completed scrape run
func (m *Monitor) RecordRunSuccess(platform, kind string, duration time.Duration, records, skipped int) {
	m.metrics.RunDuration.WithLabelValues(platform, kind).Observe(duration.Seconds())
	m.metrics.RecordsExtracted.WithLabelValues(platform).Add(float64(records))
	m.metrics.ItemsSkipped.WithLabelValues(platform).Add(float64(skipped))
	m.metrics.ActiveRuns.Dec()
}

// RecordRunFailure records a failed scrape run
func (m *Monitor) RecordRunFailure(platform, kind, errorKind string, duration time.Duration) {
	m.metrics.RunsFailed.WithLabelValues(platform, errorKind).Inc()
	m.metrics.RunDuration.WithLabelValues(platform, kind).Observe(duration.Seconds())
	m.metrics.ActiveRuns.Dec()
}

// RecordFieldMissing records a schema field absent from a page
func (m *Monitor) RecordFieldMissing(platform, kind, field string) {
	m.metrics.FieldsMissing.WithLabelValues(platform, kind, field).Inc()
}

// RecordStorageOperation records a storage operation
func (m *Monitor) RecordStorageOperation(operation, status string, duration time.Duration) {
	m.metrics.StorageOperations.WithLabelValues(operation, status).Inc()
	m.metrics.StorageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// Registry returns the registry the metrics are registered with
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GetLogger returns the logger
func (m *Monitor) GetLogger() zerolog.Logger {
	return m.logger
}

// SetLogger sets the logger
func (m *Monitor) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// HealthCheck performs a health check
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}

// Middleware represents monitoring middleware for HTTP servers
type Middleware struct {
	monitor *Monitor
}

// NewMiddleware creates a new monitoring middleware
func NewMiddleware(monitor *Monitor) *Middleware {
	return &Middleware{
		monitor: monitor,
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Middleware) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.monitor.metrics.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.monitor.metrics.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns a gin middleware recording every request by route
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
