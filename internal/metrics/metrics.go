package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	releases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "releases_total",
			Help:      "Release attempts by outcome.",
		},
		[]string{"outcome"},
	)

	exportJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "export_jobs_total",
			Help:      "Export job transitions by status.",
		},
		[]string{"status"},
	)

	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "cache_operations_total",
			Help:      "View cache lookups by result (hit/miss).",
		},
		[]string{"result"},
	)

	revenue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "revenue_total",
			Help:      "Accumulated billed cost across closed reservations.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, releases, exportJobs, cacheOps, revenue)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBooking counts a booking attempt outcome (created, no_capacity, duplicate, error).
func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

// IncRelease counts a release attempt outcome (closed, none, error).
func IncRelease(outcome string) {
	releases.WithLabelValues(outcome).Inc()
}

// IncExportJob counts an export job status transition.
func IncExportJob(status string) {
	exportJobs.WithLabelValues(status).Inc()
}

// IncCache counts a cache lookup result.
func IncCache(result string) {
	cacheOps.WithLabelValues(result).Inc()
}

// AddRevenue accumulates billed cost.
func AddRevenue(amount float64) {
	if amount > 0 {
		revenue.Add(amount)
	}
}
