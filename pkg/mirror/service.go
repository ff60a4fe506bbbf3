// Package mirror copies remote Contentful assets into the object store on
// first access and serves redirects to the stored copies afterwards.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/cache"
	"github.com/stanwood/contentful-proxy/pkg/files"
	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// ErrSourceNotFound indicates the remote host has no such file.
var ErrSourceNotFound = errors.New("source file not found")

var resolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "contentful_proxy_mirror_resolves_total",
	Help: "Total mirror resolutions by source (redirect_cache, record or fetch)",
}, []string{"source"})

// ObjectStore persists mirrored asset bytes.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// RecordStore persists mirror bookkeeping records.
type RecordStore interface {
	Get(ctx context.Context, remoteURL string) (*files.Record, error)
	Put(ctx context.Context, record *files.Record) error
	Delete(ctx context.Context, remoteURL string) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]files.Record, error)
}

// RedirectCache is the fast redirect layer in front of the record store.
type RedirectCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Config holds the mirror service configuration.
type Config struct {
	// FetchTimeout bounds the download of a source file. Defaults to 60s.
	FetchTimeout time.Duration
}

// Service resolves mirrored asset URLs.
type Service struct {
	objects    ObjectStore
	records    RecordStore
	redirects  RedirectCache
	httpClient *http.Client
	scheme     string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a mirror service.
func NewService(objects ObjectStore, records RecordStore, redirects RedirectCache, cfg Config) *Service {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Service{
		objects:    objects,
		records:    records,
		redirects:  redirects,
		httpClient: &http.Client{Timeout: timeout},
		scheme:     "https",
		now:        time.Now,
		logger:     logging.NewLogger("mirror-service"),
	}
}

// Resolve returns the public URL for one source file, mirroring it on first
// access. The layers are consulted cheapest first: redirect cache, record
// store, then a fetch from the source host.
func (s *Service) Resolve(ctx context.Context, sourceHost, filePath, rawQuery string) (string, error) {
	filePathWithParams := filePath
	if rawQuery != "" {
		filePathWithParams = filePath + "?" + rawQuery
	}

	remoteURL := fmt.Sprintf("%s://%s/%s", s.scheme, sourceHost, filePathWithParams)
	redirectKey := cache.RedirectKey(sourceHost + "/" + filePathWithParams)

	if redirectURL, err := s.redirects.Get(ctx, redirectKey); err == nil {
		resolvesTotal.WithLabelValues("redirect_cache").Inc()
		return redirectURL, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("cache_key", redirectKey).Msg("Redirect cache read failed")
	}

	record, err := s.records.Get(ctx, remoteURL)
	if err == nil {
		resolvesTotal.WithLabelValues("record").Inc()
		s.cacheRedirect(ctx, redirectKey, record.PublicURL)
		return record.PublicURL, nil
	}
	if !errors.Is(err, files.ErrRecordNotFound) {
		return "", err
	}

	s.logger.Debug().Str("file_url", remoteURL).Msg("File not mirrored yet")

	data, contentType, err := s.fetch(ctx, remoteURL)
	if err != nil {
		return "", err
	}

	// The object name mirrors the source layout so one host's files share
	// a folder, with the query-bearing path kept distinct per variant.
	fileName := path.Base(filePath)
	objectName := sourceHost + "/" + filePathWithParams + "/" + fileName

	publicURL, err := s.objects.Put(ctx, objectName, data, contentType)
	if err != nil {
		return "", err
	}

	err = s.records.Put(ctx, &files.Record{
		RemoteURL:   remoteURL,
		PublicURL:   publicURL,
		ObjectName:  objectName,
		RedirectKey: redirectKey,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		// The copy is stored and servable; a lost record only means a
		// re-upload on some later miss.
		s.logger.Warn().Err(err).Str("file_url", remoteURL).Msg("File record write failed")
	}

	s.cacheRedirect(ctx, redirectKey, publicURL)
	resolvesTotal.WithLabelValues("fetch").Inc()
	return publicURL, nil
}

func (s *Service) cacheRedirect(ctx context.Context, key, redirectURL string) {
	// Redirects have no expiry; cleanup removes them with the record.
	if err := s.redirects.Set(ctx, key, redirectURL, 0); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("Redirect cache write failed")
	}
}

func (s *Service) fetch(ctx context.Context, remoteURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("%w: %s", ErrSourceNotFound, remoteURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", remoteURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", remoteURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}
