package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes used as metric labels.
const (
	generationResultSuccess  = "success"
	generationResultConflict = "conflict"
	generationResultEmpty    = "no_assignments"
	generationResultBusy     = "busy"
	generationResultError    = "error"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	generationDuration prometheus.Histogram
	generationTotal    *prometheus.CounterVec
	slotsPlaced        prometheus.Counter
	shortfalls         prometheus.Counter
	strategyTotal      *prometheus.CounterVec
	validationIssues   *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	generationCount      uint64
	shortfallCount       uint64
}

// MetricsSnapshot is a JSON friendly summary of the process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	GenerationsTotal         uint64    `json:"generationsTotal"`
	ShortfallsTotal          uint64    `json:"shortfallsTotal"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
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

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Duration of timetable generation runs",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	generationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_generation_total",
		Help: "Timetable generation runs by result",
	}, []string{"result"})

	slotsPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_slots_placed_total",
		Help: "Sessions placed by the generator",
	})

	shortfalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_placement_shortfalls_total",
		Help: "Sessions the generator could not place",
	})

	strategyTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_placement_strategy_total",
		Help: "Placed sessions by the strategy that found their slot",
	}, []string{"strategy"})

	validationIssues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_validation_issues_total",
		Help: "Validation conflicts and warnings by type",
	}, []string{"type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationDuration, generationTotal, slotsPlaced, shortfalls, strategyTotal, validationIssues, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationDuration: generationDuration,
		generationTotal:    generationTotal,
		slotsPlaced:        slotsPlaced,
		shortfalls:         shortfalls,
		strategyTotal:      strategyTotal,
		validationIssues:   validationIssues,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveGeneration records the outcome of one generation run.
func (m *MetricsService) ObserveGeneration(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	m.generationTotal.WithLabelValues(result).Inc()
	atomic.AddUint64(&m.generationCount, 1)
}

// ObservePlacement records how the sessions of a run were placed.
func (m *MetricsService) ObservePlacement(placed, shortfalls int, strategyUsage map[string]int) {
	if m == nil {
		return
	}
	m.slotsPlaced.Add(float64(placed))
	m.shortfalls.Add(float64(shortfalls))
	atomic.AddUint64(&m.shortfallCount, uint64(shortfalls))
	for strategy, count := range strategyUsage {
		m.strategyTotal.WithLabelValues(strategy).Add(float64(count))
	}
}

// ObserveValidationIssue counts a validator finding.
func (m *MetricsService) ObserveValidationIssue(issueType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.validationIssues.WithLabelValues(issueType).Add(float64(count))
}

// Snapshot returns aggregated metrics suitable for API consumption.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		GenerationsTotal:         atomic.LoadUint64(&m.generationCount),
		ShortfallsTotal:          atomic.LoadUint64(&m.shortfallCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
