package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, cache and scheduling outcomes.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	bookingsCreated prometheus.Counter
	conflicts       *prometheus.CounterVec
	shortfallSeats  prometheus.Counter
	seatsAssigned   prometheus.Counter
	seatsUnassigned prometheus.Counter
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	bookingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_bookings_created_total",
		Help: "Booking rows written by create and replace operations",
	})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_booking_conflicts_total",
		Help: "Booking requests rejected because of a venue time conflict",
	}, []string{"operation"})

	shortfallSeats := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_allocation_shortfall_seats_total",
		Help: "Seats of demand left uncovered by committed allocations",
	})

	seatsAssigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_seats_assigned_total",
		Help: "Seats written by seat assignment runs",
	})

	seatsUnassigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_seats_unassigned_total",
		Help: "Registered students left without a seat by assignment runs",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheLookups, bookingsCreated, conflicts, shortfallSeats, seatsAssigned, seatsUnassigned, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheLookups:    cacheLookups,
		bookingsCreated: bookingsCreated,
		conflicts:       conflicts,
		shortfallSeats:  shortfallSeats,
		seatsAssigned:   seatsAssigned,
		seatsUnassigned: seatsUnassigned,
	}
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordBookingsCreated counts committed booking rows and any shortfall they leave.
func (m *MetricsService) RecordBookingsCreated(rows, shortfall int) {
	if m == nil {
		return
	}
	m.bookingsCreated.Add(float64(rows))
	if shortfall > 0 {
		m.shortfallSeats.Add(float64(shortfall))
	}
}

// RecordConflict counts a rejected booking write.
func (m *MetricsService) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

// RecordSeatAssignment counts the outcome of a seat assignment run.
func (m *MetricsService) RecordSeatAssignment(assigned, unassigned int) {
	if m == nil {
		return
	}
	m.seatsAssigned.Add(float64(assigned))
	m.seatsUnassigned.Add(float64(unassigned))
}
