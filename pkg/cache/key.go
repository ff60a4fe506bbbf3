package cache

import (
	"fmt"
	"net/url"
)

// Prefix namespaces for the individual cache users.
const (
	// ContentPrefix namespaces transformed Contentful responses.
	ContentPrefix = "contentful"

	// VideoPrefix namespaces resolved Vimeo download payloads.
	VideoPrefix = "VIMEO_CACHE"

	// RedirectPrefix namespaces asset-mirror redirect targets.
	RedirectPrefix = "file_redirect"
)

// ContentKey identifies a cached, fully transformed Contentful response.
type ContentKey struct {
	// ItemType is the Contentful collection ("entries", "assets", "content_types").
	ItemType string

	// ItemID is the single-item id, empty for collection queries.
	ItemID string

	// Query holds the upstream query parameters.
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: contentful:{item_type}:{item_id}?{sorted query}
//
// url.Values.Encode sorts by key, so two logically identical queries always
// collide on the same key regardless of parameter order.
func (k ContentKey) String() string {
	return fmt.Sprintf("%s:%s:%s?%s", ContentPrefix, k.ItemType, k.ItemID, k.Query.Encode())
}

// VideoKey returns the cache key for a resolved Vimeo video id.
func VideoKey(videoID string) string {
	return fmt.Sprintf("%s:%s", VideoPrefix, videoID)
}

// RedirectKey returns the cache key for an asset-mirror request path
// (path plus query string, exactly as received).
func RedirectKey(pathWithQuery string) string {
	return fmt.Sprintf("%s:%s", RedirectPrefix, pathWithQuery)
}
