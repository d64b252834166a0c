package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

const metricsNamespace = "scholarhub"

// Auth event outcomes reported through RecordAuthEvent.
const (
	AuthOutcomeSuccess  = "success"
	AuthOutcomeRejected = "rejected"
)

// durationTally keeps a count and a nanosecond total so snapshots can report
// a mean without reading the histograms back.
type durationTally struct {
	count uint64
	total uint64
}

func (t *durationTally) add(d time.Duration) {
	atomic.AddUint64(&t.count, 1)
	if d > 0 {
		atomic.AddUint64(&t.total, uint64(d))
	}
}

func (t *durationTally) read() (uint64, float64) {
	count := atomic.LoadUint64(&t.count)
	if count == 0 {
		return 0, 0
	}
	total := atomic.LoadUint64(&t.total)
	return count, float64(total) / float64(count) / float64(time.Millisecond)
}

// MetricsService owns the Prometheus registry behind /metrics and the
// in-process tallies shown on the admin dashboard.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	catalogDuration prometheus.Observer
	catalogResults  prometheus.Observer
	exportJobs      *prometheus.CounterVec
	authEvents      *prometheus.CounterVec

	requests  durationTally
	catalog   durationTally
	cacheHit  uint64
	cacheMiss uint64

	authMu     sync.Mutex
	authCounts map[string]uint64
}

// NewMetricsService registers the service collectors on a private registry.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry:   prometheus.NewRegistry(),
		authCounts: map[string]uint64{},
	}

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "catalog_cache",
		Name:      "lookups_total",
		Help:      "Catalog cache lookups by result",
	}, []string{"result"})
	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "catalog_cache",
		Name:      "read_seconds",
		Help:      "Latency of catalog cache reads",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})
	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "catalog_cache",
		Name:      "write_seconds",
		Help:      "Latency of catalog cache writes",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})
	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "catalog_cache",
		Name:      "hit_ratio",
		Help:      "Hits over total catalog cache lookups since start",
	})

	catalogDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "catalog",
		Name:      "query_duration_seconds",
		Help:      "Time spent filtering, sorting and aggregating the catalog",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	catalogResults := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "catalog",
		Name:      "query_results",
		Help:      "Scholarships matched per catalog query",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	m.exportJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "exports",
		Name:      "jobs_total",
		Help:      "Export jobs by format and terminal status",
	}, []string{"format", "status"})
	m.authEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Logins, signups and token refreshes by outcome",
	}, []string{"event", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	m.registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLookups, cacheLatency, cacheWrite, m.cacheHitRatio,
		catalogDuration, catalogResults,
		m.exportJobs, m.authEvents, goroutines,
	)
	m.cacheLatency = cacheLatency
	m.cacheWrite = cacheWrite
	m.catalogDuration = catalogDuration
	m.catalogResults = catalogResults
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request. path is the route template,
// not the raw URL, to keep label cardinality bounded.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
	m.requests.add(duration)
}

// RecordCacheOperation records a catalog cache read and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHit, 1)
	} else {
		atomic.AddUint64(&m.cacheMiss, 1)
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheHitRatio.Set(m.hitRatio())
}

// ObserveCacheWrite tracks the duration of a catalog cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveCatalogQuery records the engine run time and match count of one catalog query.
func (m *MetricsService) ObserveCatalogQuery(duration time.Duration, matched int) {
	if m == nil {
		return
	}
	m.catalogDuration.Observe(duration.Seconds())
	m.catalogResults.Observe(float64(matched))
	m.catalog.add(duration)
}

// RecordExportJob counts an export job reaching a terminal status.
func (m *MetricsService) RecordExportJob(format, status string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(format, status).Inc()
}

// RecordAuthEvent counts a login, register or refresh attempt.
func (m *MetricsService) RecordAuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event, outcome).Inc()
	m.authMu.Lock()
	m.authCounts[event+":"+outcome]++
	m.authMu.Unlock()
}

func (m *MetricsService) hitRatio() float64 {
	hits := atomic.LoadUint64(&m.cacheHit)
	total := hits + atomic.LoadUint64(&m.cacheMiss)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Snapshot returns aggregated metrics suitable for analytics endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests, avgRequestMs := m.requests.read()
	catalog, avgCatalogMs := m.catalog.read()

	var auth map[string]uint64
	m.authMu.Lock()
	if len(m.authCounts) > 0 {
		auth = make(map[string]uint64, len(m.authCounts))
		for k, v := range m.authCounts {
			auth[k] = v
		}
	}
	m.authMu.Unlock()

	return models.SystemMetrics{
		CacheHitRatio:            m.hitRatio(),
		CacheHits:                atomic.LoadUint64(&m.cacheHit),
		CacheMisses:              atomic.LoadUint64(&m.cacheMiss),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CatalogQueries:           catalog,
		AverageCatalogQueryMs:    avgCatalogMs,
		AuthEvents:               auth,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
