package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stanwood/contentful-proxy/pkg/content"
	"github.com/stanwood/contentful-proxy/pkg/contentful"
	"github.com/stanwood/contentful-proxy/pkg/mirror"
)

type stubContent struct {
	result   *content.Result
	err      error
	itemType string
	itemID   string
	query    url.Values
}

func (s *stubContent) Fetch(ctx context.Context, itemType, itemID string, query url.Values) (*content.Result, error) {
	s.itemType = itemType
	s.itemID = itemID
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubUpstream struct {
	envelope map[string]any
	err      error
}

func (s *stubUpstream) Get(ctx context.Context, itemType, itemID string, query url.Values) (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.envelope, nil
}

type stubMirror struct {
	redirectURL string
	err         error
	host        string
	path        string
	rawQuery    string
}

func (s *stubMirror) Resolve(ctx context.Context, sourceHost, filePath, rawQuery string) (string, error) {
	s.host = sourceHost
	s.path = filePath
	s.rawQuery = rawQuery
	if s.err != nil {
		return "", s.err
	}
	return s.redirectURL, nil
}

type stubCleaner struct {
	removed   int
	err       error
	retention time.Duration
}

func (s *stubCleaner) RemoveOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	s.retention = retention
	return s.removed, s.err
}

type stubManagement struct {
	endpoint string
	method   string
}

func (s *stubManagement) Forward(w http.ResponseWriter, r *http.Request, endpoint string) {
	s.endpoint = endpoint
	s.method = r.Method
	w.WriteHeader(http.StatusOK)
}

func serve(s *server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		req.Header[key] = values
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newServer(&stubContent{}, &stubUpstream{}, nil, nil, nil, 0)

	w := serve(s, "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestContentEndpoint(t *testing.T) {
	fetcher := &stubContent{result: &content.Result{JSON: []byte(`{"items":[]}`), ETag: "abc123"}}
	s := newServer(fetcher, &stubUpstream{}, nil, nil, nil, 0)

	w := serve(s, "GET", "/contentful/entries/e1?locale=de", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fetcher.itemType != "entries" || fetcher.itemID != "e1" {
		t.Errorf("fetched %s/%s", fetcher.itemType, fetcher.itemID)
	}
	if fetcher.query.Get("locale") != "de" {
		t.Errorf("query = %v", fetcher.query)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}
	if got := w.Header().Get("ETag"); got != `"abc123"` {
		t.Errorf("etag = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("cors header = %q", got)
	}
	if w.Body.String() != `{"items":[]}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestContentEndpoint_CollectionAndRoot(t *testing.T) {
	for _, target := range []string{"/contentful/entries", "/contentful/", "/contentful"} {
		t.Run(target, func(t *testing.T) {
			fetcher := &stubContent{result: &content.Result{JSON: []byte(`{}`), ETag: "x"}}
			s := newServer(fetcher, &stubUpstream{}, nil, nil, nil, 0)

			if w := serve(s, "GET", target, nil); w.Code != http.StatusOK {
				t.Errorf("status = %d", w.Code)
			}
			if fetcher.itemID != "" {
				t.Errorf("item id = %q, want empty", fetcher.itemID)
			}
		})
	}
}

func TestContentEndpoint_NotModified(t *testing.T) {
	fetcher := &stubContent{result: &content.Result{JSON: []byte(`{}`), ETag: "abc123"}}
	s := newServer(fetcher, &stubUpstream{}, nil, nil, nil, 0)

	header := http.Header{"If-None-Match": {`"abc123"`}}
	w := serve(s, "GET", "/contentful/entries", header)

	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestContentEndpoint_NotFound(t *testing.T) {
	fetcher := &stubContent{err: fmt.Errorf("%w: bogus", contentful.ErrNotFound)}
	s := newServer(fetcher, &stubUpstream{}, nil, nil, nil, 0)

	if w := serve(s, "GET", "/contentful/bogus", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestContentEndpoint_UpstreamFailure(t *testing.T) {
	fetcher := &stubContent{err: errors.New("boom")}
	s := newServer(fetcher, &stubUpstream{}, nil, nil, nil, 0)

	if w := serve(s, "GET", "/contentful/entries", nil); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	upstream := &stubUpstream{envelope: map[string]any{
		"sys": map[string]any{"id": "a1", "type": "Asset"},
		"fields": map[string]any{
			"file": map[string]any{
				"url":         "https://images.example.com/v1/abc/photo.png",
				"contentType": "image/png",
			},
		},
	}}
	s := newServer(&stubContent{}, upstream, nil, nil, nil, 0)

	w := serve(s, "GET", "/contentful/download/a1", nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://images.example.com/v1/abc/photo.png" {
		t.Errorf("location = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content type = %q", got)
	}
}

func TestDownloadEndpoint_NotFound(t *testing.T) {
	upstream := &stubUpstream{err: fmt.Errorf("%w: assets/a1", contentful.ErrNotFound)}
	s := newServer(&stubContent{}, upstream, nil, nil, nil, 0)

	if w := serve(s, "GET", "/contentful/download/a1", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDownloadEndpoint_MalformedAsset(t *testing.T) {
	upstream := &stubUpstream{envelope: map[string]any{"fields": map[string]any{}}}
	s := newServer(&stubContent{}, upstream, nil, nil, nil, 0)

	if w := serve(s, "GET", "/contentful/download/a1", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFileCacheEndpoint(t *testing.T) {
	m := &stubMirror{redirectURL: "https://files.proxy.test/img.test/abc/photo.png/photo.png"}
	s := newServer(&stubContent{}, &stubUpstream{}, m, nil, nil, 0)

	w := serve(s, "GET", "/contentful/file_cache/img.test/abc/photo.png?w=100", nil)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if got := w.Header().Get("Location"); got != m.redirectURL {
		t.Errorf("location = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("cache control = %q", got)
	}
	if m.host != "img.test" || m.path != "abc/photo.png" || m.rawQuery != "w=100" {
		t.Errorf("resolved %s/%s?%s", m.host, m.path, m.rawQuery)
	}
}

func TestFileCacheEndpoint_SourceNotFound(t *testing.T) {
	m := &stubMirror{err: fmt.Errorf("%w: x", mirror.ErrSourceNotFound)}
	s := newServer(&stubContent{}, &stubUpstream{}, m, nil, nil, 0)

	if w := serve(s, "GET", "/contentful/file_cache/img.test/missing.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFileCacheEndpoint_MirrorDisabled(t *testing.T) {
	s := newServer(&stubContent{}, &stubUpstream{}, nil, nil, nil, 0)

	if w := serve(s, "GET", "/contentful/file_cache/img.test/a.png", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestManageEndpoint(t *testing.T) {
	management := &stubManagement{}
	s := newServer(&stubContent{}, &stubUpstream{}, nil, nil, management, 0)

	if w := serve(s, "PUT", "/contentful/manage/entries/e1/published", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if management.endpoint != "entries/e1/published" {
		t.Errorf("endpoint = %q, want nested path preserved", management.endpoint)
	}
	if management.method != "PUT" {
		t.Errorf("method = %q, want non-GET methods routed", management.method)
	}
}

func TestManageEndpoint_Disabled(t *testing.T) {
	s := newServer(&stubContent{}, &stubUpstream{}, nil, nil, nil, 0)

	if w := serve(s, "POST", "/contentful/manage/entries", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	cleaner := &stubCleaner{removed: 3}
	s := newServer(&stubContent{}, &stubUpstream{}, nil, cleaner, nil, 30*24*time.Hour)

	w := serve(s, "GET", "/cron/clean-up-files", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != `{"removed":3}` {
		t.Errorf("body = %q", w.Body.String())
	}
	if cleaner.retention != 30*24*time.Hour {
		t.Errorf("retention = %v", cleaner.retention)
	}
}

func TestCleanupEndpoint_Failure(t *testing.T) {
	cleaner := &stubCleaner{err: errors.New("scan failed")}
	s := newServer(&stubContent{}, &stubUpstream{}, nil, cleaner, nil, time.Hour)

	if w := serve(s, "GET", "/cron/clean-up-files", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(&stubContent{}, &stubUpstream{}, nil, nil, nil, 0)

	if w := serve(s, "GET", "/metrics", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
