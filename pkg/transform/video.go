package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/cache"
	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// videoExpirySafetyMargin is subtracted from the signed-URL lifetime so a
// cached payload always expires before its download links do.
const videoExpirySafetyMargin = 120 * time.Second

// VideoCache is the cache surface the video resolver needs.
type VideoCache interface {
	Get(ctx context.Context, key string) (string, error)
	MGet(ctx context.Context, keys []string) ([]string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// VideoResolver resolves a video id into its raw download-variant JSON array.
type VideoResolver interface {
	Downloads(ctx context.Context, videoID string) (json.RawMessage, error)
}

// ResolveVideos replaces Vimeo video ids in item fields with resolved,
// time-limited download variants, backed by the video cache. The original id
// is preserved under "vimeo" so consumers can tell resolved from raw.
type ResolveVideos struct {
	cache    VideoCache
	resolver VideoResolver
	now      func() time.Time
	logger   zerolog.Logger
}

// NewResolveVideos creates the stage.
func NewResolveVideos(videoCache VideoCache, resolver VideoResolver) *ResolveVideos {
	return &ResolveVideos{
		cache:    videoCache,
		resolver: resolver,
		now:      time.Now,
		logger:   logging.NewLogger("resolve-videos"),
	}
}

// Name implements Stage.
func (t *ResolveVideos) Name() string { return "resolve_videos" }

// Apply batches one cache lookup across all video ids in the response, then
// substitutes each item's fields.video with the resolved payload, calling the
// Vimeo API for the misses. A failed resolution leaves that item's field
// unchanged; it never aborts the rest of the response.
func (t *ResolveVideos) Apply(ctx context.Context, content map[string]any) map[string]any {
	items, ok := content["items"].([]any)
	if !ok {
		return content
	}

	resolved := t.lookupBatch(ctx, videoIDs(items))

	for _, item := range items {
		fields, ok := dig(item, "fields")
		if !ok {
			continue
		}
		fieldsMap, ok := fields.(map[string]any)
		if !ok {
			continue
		}
		videoID, ok := fieldsMap["video"].(string)
		if !ok || videoID == "" {
			continue
		}

		payload, ok := resolved[videoID]
		if !ok {
			raw, err := t.resolveAndCache(ctx, videoID)
			if err != nil {
				t.logger.Error().Err(err).Str("video_id", videoID).Msg("Failed to resolve video")
				continue
			}
			payload = raw
			resolved[videoID] = payload
			videoResolves.WithLabelValues("api").Inc()
		} else {
			videoResolves.WithLabelValues("cache").Inc()
		}

		var variants any
		if err := json.Unmarshal([]byte(payload), &variants); err != nil {
			t.logger.Error().Err(err).Str("video_id", videoID).Msg("Malformed cached video payload")
			continue
		}

		fieldsMap["video"] = variants
		fieldsMap["vimeo"] = videoID
	}

	return content
}

// videoIDs collects the distinct video ids present in items, in order.
func videoIDs(items []any) []string {
	seen := map[string]bool{}
	var ids []string
	for _, item := range items {
		id, ok := digString(item, "fields", "video")
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// lookupBatch fetches cached payloads for all ids in one multi-get, falling
// back to per-id lookups when the batch call fails.
func (t *ResolveVideos) lookupBatch(ctx context.Context, ids []string) map[string]string {
	resolved := map[string]string{}
	if len(ids) == 0 {
		return resolved
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.VideoKey(id)
	}

	values, err := t.cache.MGet(ctx, keys)
	if err == nil {
		for i, value := range values {
			if value != "" {
				resolved[ids[i]] = value
			}
		}
		return resolved
	}

	t.logger.Warn().Err(err).Msg("Video cache multi-get failed, falling back to single lookups")

	for _, id := range ids {
		value, err := t.cache.Get(ctx, cache.VideoKey(id))
		if err != nil {
			continue
		}
		resolved[id] = value
	}
	return resolved
}

// resolveAndCache calls the Vimeo API and caches the raw payload with a TTL
// derived from the first variant's expiry. Cache write failures are logged;
// the freshly resolved payload is still used.
func (t *ResolveVideos) resolveAndCache(ctx context.Context, videoID string) (string, error) {
	raw, err := t.resolver.Downloads(ctx, videoID)
	if err != nil {
		return "", err
	}

	ttl, err := downloadTTL(raw, t.now())
	if err != nil {
		t.logger.Warn().Err(err).Str("video_id", videoID).Msg("Cannot derive video cache TTL, skipping cache write")
		return string(raw), nil
	}
	// A non-positive TTL means the links are inside the safety margin
	// already; caching them would serve dead URLs past their expiry.
	if ttl <= 0 {
		t.logger.Warn().Str("video_id", videoID).Dur("ttl", ttl).Msg("Video links expire within safety margin, skipping cache write")
		return string(raw), nil
	}

	if err := t.cache.Set(ctx, cache.VideoKey(videoID), string(raw), ttl); err != nil {
		t.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to cache video payload")
	}

	return string(raw), nil
}

// downloadTTL computes the cache TTL for a raw download-variant array:
// the first variant's expiry minus now, minus a two-minute safety margin.
func downloadTTL(raw json.RawMessage, now time.Time) (time.Duration, error) {
	var variants []struct {
		Expires string `json:"expires"`
	}
	if err := json.Unmarshal(raw, &variants); err != nil {
		return 0, fmt.Errorf("decode download variants: %w", err)
	}
	if len(variants) == 0 {
		return 0, fmt.Errorf("no download variants")
	}

	expires, err := time.Parse(time.RFC3339, variants[0].Expires)
	if err != nil {
		return 0, fmt.Errorf("parse expires %q: %w", variants[0].Expires, err)
	}

	return expires.Sub(now).Truncate(time.Second) - videoExpirySafetyMargin, nil
}
