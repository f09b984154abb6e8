package service

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/section-swap-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the swap engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	searchTotal     *prometheus.CounterVec
	searchDuration  prometheus.Observer
	rotationLength  prometheus.Observer
	poolSize        prometheus.Observer
	commitTotal     *prometheus.CounterVec
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	searchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_searches_total",
		Help: "Swap searches by outcome",
	}, []string{"result"})

	searchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_search_duration_seconds",
		Help:    "Duration of swap searches",
		Buckets: prometheus.DefBuckets,
	})

	rotationLength := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_rotation_length",
		Help:    "Step count of returned rotation plans",
		Buckets: []float64{2, 3, 4, 5},
	})

	poolSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_pool_size",
		Help:    "Eligible candidate pool size per search",
		Buckets: prometheus.ExponentialBuckets(10, 2, 8),
	})

	commitTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_commits_total",
		Help: "Committed swaps by plan type",
	}, []string{"plan_type"})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "match_flag_cache_hit_ratio",
		Help: "Ratio of match-flag cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_flag_cache_hits_total",
		Help: "Total match-flag cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_flag_cache_misses_total",
		Help: "Total match-flag cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, searchTotal, searchDuration, rotationLength, poolSize, commitTotal, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		searchTotal:     searchTotal,
		searchDuration:  searchDuration,
		rotationLength:  rotationLength,
		poolSize:        poolSize,
		commitTotal:     commitTotal,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSwapSearch records the outcome of one resolver invocation.
func (m *MetricsService) ObserveSwapSearch(plan *models.SwapPlan, poolSize int, duration time.Duration) {
	if m == nil || plan == nil {
		return
	}
	m.searchTotal.WithLabelValues(strings.ToLower(string(plan.Type))).Inc()
	m.searchDuration.Observe(duration.Seconds())
	m.poolSize.Observe(float64(poolSize))
	if plan.Type == models.SwapPlanRotation {
		m.rotationLength.Observe(float64(len(plan.Steps)))
	}
}

// ObserveSwapCommit counts executed plans.
func (m *MetricsService) ObserveSwapCommit(planType models.SwapPlanType) {
	if m == nil {
		return
	}
	m.commitTotal.WithLabelValues(strings.ToLower(string(planType))).Inc()
}

// RecordCacheOperation records match-flag cache hit/miss and updates the
// running ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}
