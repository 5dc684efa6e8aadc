package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracker"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// IDsAllocated counts identifiers minted by kind (batch, carton, serial).
	IDsAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ids_allocated_total",
			Help:      "Identifiers minted by kind",
		},
		[]string{"kind"},
	)

	// AllocationFailures counts rejected allocations by kind and reason
	// (duplicate, validation, unavailable).
	AllocationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_failures_total",
			Help:      "Rejected identifier allocations",
		},
		[]string{"kind", "reason"},
	)

	AllocationLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_lock_wait_seconds",
			Help:      "Time spent waiting for allocation scope locks",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	LifecycleRegressions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_regressions_total",
			Help:      "Stage writes that moved a device backwards",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Redis read cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	StageFeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_feed_clients",
			Help:      "Connected lifecycle websocket clients",
		},
	)
)
