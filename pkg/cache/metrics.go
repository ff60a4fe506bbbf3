package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	// CacheHits tracks cache hits by namespace (content, video, redirect).
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentful_proxy_cache_hits_total",
		Help: "Total cache hits by namespace",
	}, []string{"namespace"})

	// CacheMisses tracks cache misses by namespace.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentful_proxy_cache_misses_total",
		Help: "Total cache misses by namespace",
	}, []string{"namespace"})

	// CacheErrors tracks cache operation errors by operation type.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentful_proxy_cache_errors_total",
		Help: "Total cache operation errors by operation",
	}, []string{"operation"})

	// CacheWriteBytes tracks the size of written cache values.
	CacheWriteBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contentful_proxy_cache_write_bytes_total",
		Help: "Total bytes written to the cache",
	})
)
