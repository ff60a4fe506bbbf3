// Package metrics provides the centralized Prometheus metrics registry for
// the Contentful proxy. All metrics are defined in their respective packages
// (cache, contentful, content, transform, mirror) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - contentful_proxy_cache_hits_total{namespace} (Counter): Cache hits by key namespace
//   - contentful_proxy_cache_misses_total{namespace} (Counter): Cache misses by key namespace
//   - contentful_proxy_cache_errors_total{operation} (Counter): Cache operation errors
//   - contentful_proxy_cache_write_bytes_total (Counter): Bytes written to cache
//
// Upstream Metrics (pkg/contentful):
//   - contentful_proxy_upstream_requests_total{item_type, status} (Counter): Upstream requests by item type and HTTP status
//   - contentful_proxy_upstream_request_duration_seconds{item_type} (Histogram): Upstream request duration
//   - contentful_proxy_upstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/contentful):
//   - contentful_proxy_retries_total{error_class} (Counter): Retry attempts by error class
//   - contentful_proxy_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - contentful_proxy_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Content Metrics (pkg/content):
//   - contentful_proxy_content_fetches_total{item_type, source} (Counter): Content fetches served from cache vs upstream
//
// Pipeline Metrics (pkg/transform):
//   - contentful_proxy_pipeline_stage_duration_seconds{stage} (Histogram): Per-stage transformation duration
//   - contentful_proxy_flatten_fallbacks_total (Counter): Field values no flattening rule recognized
//   - contentful_proxy_video_resolves_total{source} (Counter): Video resolutions by source (cache, api)
//
// Mirror Metrics (pkg/mirror):
//   - contentful_proxy_mirror_resolves_total{source} (Counter): Mirror resolutions by source (redirect_cache, record, fetch)
//
// Example Prometheus Queries:
//
//   # Content Cache Hit Rate
//   sum(rate(contentful_proxy_content_fetches_total{source="cache"}[5m])) /
//   sum(rate(contentful_proxy_content_fetches_total[5m]))
//
//   # Upstream Error Rate
//   rate(contentful_proxy_upstream_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(contentful_proxy_upstream_request_duration_seconds_bucket[5m]))
//
//   # Slowest Pipeline Stage
//   topk(1, sum by (stage) (rate(contentful_proxy_pipeline_stage_duration_seconds_sum[5m])))
