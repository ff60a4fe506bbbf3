// Package content implements the cache-aside read path: transformed
// Contentful responses are served from Redis and only fetched and run
// through the pipeline on a miss.
package content

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/cache"
	"github.com/stanwood/contentful-proxy/pkg/contentful"
	"github.com/stanwood/contentful-proxy/pkg/logging"
)

var fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "contentful_proxy_content_fetches_total",
	Help: "Total content fetches by item type and source (cache or upstream)",
}, []string{"item_type", "source"})

// Upstream fetches raw response envelopes from the Delivery API.
type Upstream interface {
	Get(ctx context.Context, itemType, itemID string, query url.Values) (map[string]any, error)
}

// Store is the cache layer for serialized transformed responses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Transformer runs the response transformation pipeline.
type Transformer interface {
	Run(ctx context.Context, content map[string]any) map[string]any
}

// Result is a serialized response ready to hand to the HTTP layer.
type Result struct {
	JSON []byte
	ETag string
}

// Service serves transformed Contentful content.
type Service struct {
	upstream Upstream
	store    Store
	pipeline Transformer
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewService creates a content service. ttl bounds how long transformed
// responses stay cached.
func NewService(upstream Upstream, store Store, pipeline Transformer, ttl time.Duration) *Service {
	return &Service{
		upstream: upstream,
		store:    store,
		pipeline: pipeline,
		ttl:      ttl,
		logger:   logging.NewLogger("content-service"),
	}
}

// Fetch returns the transformed response for one item type, optionally
// narrowed to a single item id. Cached responses are returned verbatim;
// on a miss the upstream envelope is transformed, cached and returned.
//
// An item type the upstream does not recognize surfaces as ErrNotFound.
func (s *Service) Fetch(ctx context.Context, itemType, itemID string, query url.Values) (*Result, error) {
	key := cache.ContentKey{ItemType: itemType, ItemID: itemID, Query: query}.String()

	cached, err := s.store.Get(ctx, key)
	if err == nil {
		fetchesTotal.WithLabelValues(itemType, "cache").Inc()
		return &Result{JSON: []byte(cached), ETag: etagFor([]byte(cached))}, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// A broken cache degrades to upstream fetches, it does not fail reads.
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("Cache read failed")
	}

	envelope, err := s.upstream.Get(ctx, itemType, itemID, query)
	if err != nil {
		if errors.Is(err, contentful.ErrUnknownItemType) {
			return nil, fmt.Errorf("%w: %s", contentful.ErrNotFound, itemType)
		}
		return nil, err
	}
	fetchesTotal.WithLabelValues(itemType, "upstream").Inc()

	transformed := s.pipeline.Run(ctx, envelope)

	body, err := json.Marshal(transformed)
	if err != nil {
		return nil, fmt.Errorf("serialize transformed response: %w", err)
	}

	if err := s.store.Set(ctx, key, string(body), s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("Cache write failed")
	}

	return &Result{JSON: body, ETag: etagFor(body)}, nil
}

// etagFor derives the response ETag from the serialized body.
func etagFor(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}
