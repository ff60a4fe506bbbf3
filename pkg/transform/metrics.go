package transform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pipeline operations.
var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contentful_proxy_pipeline_stage_duration_seconds",
		Help:    "Transformation stage duration in seconds by stage",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"stage"})

	flattenFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contentful_proxy_flatten_fallbacks_total",
		Help: "Field values no shape recognizer matched, passed through unchanged",
	})

	videoResolves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentful_proxy_video_resolves_total",
		Help: "Vimeo id resolutions by source (cache or api)",
	}, []string{"source"})
)
