// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vimestats_upstream_requests_total",
		Help: "Upstream API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vimestats_upstream_request_duration_seconds",
		Help:    "Duration of upstream API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vimestats_player_cache_lookups_total",
		Help: "Player cache lookups by result (hit, miss, expired)",
	}, []string{"result"})

	CacheEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vimestats_player_cache_evicted_total",
		Help: "Player cache entries removed by sweeps",
	})

	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vimestats_directory_stale_responses_total",
		Help: "Directory responses discarded because a newer request was dispatched",
	})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vimestats_live_connections",
		Help: "Open live directory WebSocket connections",
	})

	WarmupProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vimestats_warmup_processed_total",
		Help: "Warm-up nicknames processed by result",
	}, []string{"result"})
)
