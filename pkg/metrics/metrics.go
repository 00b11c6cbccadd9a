package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagery_cache_hits_total",
		Help: "Total number of content cache hits per tier",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagery_cache_misses_total",
		Help: "Total number of content cache misses that went to the network",
	})

	CacheStores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagery_cache_stores_total",
		Help: "Total number of disk tier store operations",
	})

	DiskErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagery_disk_errors_total",
		Help: "Total number of disk tier errors",
	}, []string{"operation"})

	UpstreamRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagery_upstream_requests_total",
		Help: "Total number of upstream tile requests",
	})

	UpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imagery_upstream_latency_seconds",
		Help:    "Latency of upstream tile fetches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	SoftMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagery_soft_misses_total",
		Help: "Total number of empty or placeholder tiles",
	})

	DegradedRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagery_degraded_retries_total",
		Help: "Total number of retries at a coarser zoom level",
	})

	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagery_fetch_failures_total",
		Help: "Total number of tiles whose retry ladder was exhausted",
	})

	Evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagery_evictions_total",
		Help: "Total number of tiles removed from the live set",
	}, []string{"reason"})

	LiveTiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imagery_live_tiles",
		Help: "Number of tiles in the live set",
	})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imagery_in_flight_requests",
		Help: "Number of tile requests awaiting completion",
	})

	LayoutPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagery_layout_passes_total",
		Help: "Total number of layout passes",
	})
)
