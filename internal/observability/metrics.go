package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsValidated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "locshare", Name: "readings_validated_total", Help: "Readings that passed validation"})
	ReadingsDropped   = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "locshare", Name: "readings_dropped_total", Help: "Readings rejected by validation"},
		[]string{"code"},
	)

	BroadcastsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "locshare", Name: "broadcasts_total", Help: "Location broadcasts attempted"})
	BroadcastsFailed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "locshare", Name: "broadcasts_failed_total", Help: "Location broadcasts that returned an error"})
	EventsPublished  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "locshare", Name: "events_published_total", Help: "Location events published to the queue"})

	CacheHits      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "locshare", Name: "cache_hits_total", Help: "Cache reads served from a fresh entry"})
	CacheMisses    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "locshare", Name: "cache_misses_total", Help: "Cache reads with no usable entry"})
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{Namespace: "locshare", Name: "cache_evictions_total", Help: "Entries removed on expired or corrupt reads"})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "locshare", Name: "active_subscriptions", Help: "Open friend location subscriptions"})
)
