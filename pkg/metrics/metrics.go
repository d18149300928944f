package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultExact    = "exact"
	ResultOverzoom = "overzoom"
	ResultMissing  = "missing"
	ResultFailed   = "failed"
)

var (
	TilesRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_requests_total",
		Help: "Total number of tile requests by outcome",
	}, []string{"result"})

	TilesZoomDelta = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_zoom_delta",
		Help:    "Zoom levels between a requested tile and the ancestor that served it",
		Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
	})

	TilesReconstructLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_reconstruct_latency_seconds",
		Help:    "Latency of crop and rescale of ancestor tiles in seconds",
		Buckets: prometheus.DefBuckets,
	})

	SourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_source_errors_total",
		Help: "Total number of tile source errors by backend",
	}, []string{"backend"})

	TilesUpstreamRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_upstream_requests_total",
		Help: "Total number of upstream (remote template) requests",
	})

	TilesUpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_upstream_latency_seconds",
		Help:    "Latency of upstream tile fetches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation"})

	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	}, []string{"operation"})
)
