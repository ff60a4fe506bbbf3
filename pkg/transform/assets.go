package transform

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// ReplaceAssetLinks rewrites asset file URLs to point at the proxy's
// file-mirroring endpoint, so clients fetch binaries through the mirror
// instead of the CMS CDN.
type ReplaceAssetLinks struct {
	proxyHostname string
	logger        zerolog.Logger
}

// NewReplaceAssetLinks creates the stage. proxyHostname is the externally
// visible base URL of this proxy, without a trailing slash.
func NewReplaceAssetLinks(proxyHostname string) *ReplaceAssetLinks {
	return &ReplaceAssetLinks{
		proxyHostname: strings.TrimRight(proxyHostname, "/"),
		logger:        logging.NewLogger("replace-asset-links"),
	}
}

// Name implements Stage.
func (t *ReplaceAssetLinks) Name() string { return "replace_asset_links" }

// Apply rewrites fields.file.url for every asset in includes.Asset and for
// every item whose sys.type is Asset. A malformed single asset is skipped;
// it never aborts the rest of the response.
func (t *ReplaceAssetLinks) Apply(ctx context.Context, content map[string]any) map[string]any {
	if assets, ok := dig(content, "includes", "Asset"); ok {
		if list, ok := assets.([]any); ok {
			for _, asset := range list {
				t.rewriteAsset(asset)
			}
		}
	}

	if items, ok := content["items"].([]any); ok {
		for _, item := range items {
			if sysType, _ := digString(item, "sys", "type"); sysType == "Asset" {
				t.rewriteAsset(item)
			}
		}
	}

	return content
}

func (t *ReplaceAssetLinks) rewriteAsset(asset any) {
	file, ok := dig(asset, "fields", "file")
	if !ok {
		return
	}
	fileMap, ok := file.(map[string]any)
	if !ok {
		return
	}
	rawURL, ok := fileMap["url"].(string)
	if !ok {
		return
	}

	rewritten, ok := t.transformURL(rawURL)
	if !ok {
		t.logger.Warn().Str("file_url", rawURL).Msg("Failed to rewrite asset URL")
		return
	}
	fileMap["url"] = rewritten
}

// transformURL maps an upstream asset URL to the mirror endpoint:
//
//	https://images.example.com/v1/abc/photo.png
//	-> {proxy}/contentful/file_cache/images.example.com/abc/photo.png
//
// The leading path segment is the CMS's version/shard prefix and is dropped
// before remirroring.
func (t *ReplaceAssetLinks) transformURL(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return "", false
	}

	// A single-segment path has nothing left once the prefix is dropped;
	// such URLs keep their original form instead of mapping to an empty
	// mirror path.
	segments := strings.Split(strings.TrimPrefix(parsed.Path, "/"), "/")
	if len(segments) < 2 {
		return "", false
	}
	path := strings.Join(segments[1:], "/")

	return fmt.Sprintf("%s/contentful/file_cache/%s/%s", t.proxyHostname, parsed.Hostname(), path), true
}
