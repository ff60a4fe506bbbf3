package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stanwood/contentful-proxy/internal/testutil"
	"github.com/stanwood/contentful-proxy/pkg/cache"
	"github.com/stanwood/contentful-proxy/pkg/content"
	"github.com/stanwood/contentful-proxy/pkg/contentful"
	"github.com/stanwood/contentful-proxy/pkg/transform"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

const entriesEnvelope = `{
	"sys": {"type": "Array"},
	"total": 1,
	"items": [
		{
			"sys": {"id": "article1", "type": "Entry"},
			"fields": {
				"title": "Integration",
				"hero": {"sys": {"type": "Link", "linkType": "Asset", "id": "asset1"}}
			}
		}
	],
	"includes": {
		"Asset": [
			{
				"sys": {"id": "asset1", "type": "Asset"},
				"fields": {
					"title": "Hero",
					"file": {
						"url": "https://images.example.com/v1/abc/hero.png",
						"contentType": "image/png",
						"details": {"image": {"width": 1200, "height": 630}}
					}
				}
			}
		]
	}
}`

// TestFullContentFlow covers the complete read path: cache miss, upstream
// fetch, transformation, cache write, and a second request served from Redis.
func TestFullContentFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mockContentful := testutil.NewMockContentful()
	defer mockContentful.Close()

	mockContentful.SetEntriesResponse("space1", "master", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       entriesEnvelope,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	upstream, err := contentful.New(contentful.Config{
		Space:   "space1",
		Token:   "token1",
		BaseURL: mockContentful.URL(),
	})
	if err != nil {
		t.Fatalf("Failed to create Contentful client: %v", err)
	}

	cacheManager := cache.NewManager(redisClient)

	pipeline := transform.NewPipeline(
		transform.NewReplaceAssetLinks("https://proxy.test"),
		transform.NewResolveIncludes(),
		transform.NewFlattenFields(),
		transform.RemoveIncludes{},
		transform.RemoveRootSys{},
	)

	service := content.NewService(upstream, cacheManager, pipeline, time.Hour)

	ctx := context.Background()

	// First request: upstream fetch plus transformation.
	first, err := service.Fetch(ctx, "entries", "", nil)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	if mockContentful.GetRequestCount() != 1 {
		t.Errorf("Upstream requests = %d, want 1", mockContentful.GetRequestCount())
	}

	var decoded map[string]any
	if err := json.Unmarshal(first.JSON, &decoded); err != nil {
		t.Fatalf("Transformed response is not valid JSON: %v", err)
	}

	if _, ok := decoded["includes"]; ok {
		t.Error("Includes survived transformation")
	}
	if _, ok := decoded["sys"]; ok {
		t.Error("Root sys survived transformation")
	}

	items := decoded["items"].([]any)
	item := items[0].(map[string]any)
	if item["id"] != "article1" {
		t.Errorf("Item id = %v", item["id"])
	}

	hero := item["hero"].(map[string]any)
	wantURL := "https://proxy.test/contentful/file_cache/images.example.com/abc/hero.png"
	if hero["url"] != wantURL {
		t.Errorf("Hero url = %v, want %v", hero["url"], wantURL)
	}

	// Second request: served from Redis, upstream untouched.
	second, err := service.Fetch(ctx, "entries", "", nil)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if mockContentful.GetRequestCount() != 1 {
		t.Errorf("Upstream requests after cache hit = %d, want 1", mockContentful.GetRequestCount())
	}
	if second.ETag != first.ETag {
		t.Errorf("ETag changed across cache hit: %q vs %q", second.ETag, first.ETag)
	}
	if string(second.JSON) != string(first.JSON) {
		t.Error("Cached response differs from transformed response")
	}

	// The cached entry carries the configured TTL.
	key := cache.ContentKey{ItemType: "entries"}.String()
	ttl, err := redisClient.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("TTL lookup failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("Cached TTL = %v, want within (0, 1h]", ttl)
	}
}

// TestSingleEntryFetch verifies single entries go through the collection
// endpoint with a sys.id filter so includes stay available for resolution.
func TestSingleEntryFetch(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mockContentful := testutil.NewMockContentful()
	defer mockContentful.Close()

	mockContentful.SetEntriesResponse("space1", "master", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       entriesEnvelope,
	})

	upstream, err := contentful.New(contentful.Config{
		Space:   "space1",
		Token:   "token1",
		BaseURL: mockContentful.URL(),
	})
	if err != nil {
		t.Fatalf("Failed to create Contentful client: %v", err)
	}

	service := content.NewService(
		upstream,
		cache.NewManager(redisClient),
		transform.NewPipeline(
			transform.NewResolveIncludes(),
			transform.NewFlattenFields(),
			transform.RemoveIncludes{},
			transform.RemoveRootSys{},
		),
		time.Hour,
	)

	if _, err := service.Fetch(context.Background(), "entries", "article1", nil); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if mockContentful.LastQuery != "sys.id=article1" {
		t.Errorf("Upstream query = %q, want sys.id filter", mockContentful.LastQuery)
	}
	if mockContentful.LastAuth != "Bearer token1" {
		t.Errorf("Authorization = %q", mockContentful.LastAuth)
	}
}
