package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/content"
	"github.com/stanwood/contentful-proxy/pkg/contentful"
	"github.com/stanwood/contentful-proxy/pkg/logging"
	"github.com/stanwood/contentful-proxy/pkg/mirror"
)

type contentFetcher interface {
	Fetch(ctx context.Context, itemType, itemID string, query url.Values) (*content.Result, error)
}

type assetFetcher interface {
	Get(ctx context.Context, itemType, itemID string, query url.Values) (map[string]any, error)
}

type mirrorResolver interface {
	Resolve(ctx context.Context, sourceHost, filePath, rawQuery string) (string, error)
}

type cleanupRunner interface {
	RemoveOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

type managementForwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, endpoint string)
}

// server holds the HTTP handlers and their dependencies. The mirror and
// management parts may be nil when their backing config is absent.
type server struct {
	router     *mux.Router
	content    contentFetcher
	upstream   assetFetcher
	mirror     mirrorResolver
	cleaner    cleanupRunner
	management managementForwarder
	retention  time.Duration
	logger     zerolog.Logger
}

func newServer(contentSvc contentFetcher, upstream assetFetcher, mirrorSvc mirrorResolver, cleaner cleanupRunner, management managementForwarder, retention time.Duration) *server {
	s := &server{
		router:     mux.NewRouter(),
		content:    contentSvc,
		upstream:   upstream,
		mirror:     mirrorSvc,
		cleaner:    cleaner,
		management: management,
		retention:  retention,
		logger:     logging.NewLogger("http"),
	}
	s.routes()
	return s
}

func (s *server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/cron/clean-up-files", s.handleCleanup).Methods(http.MethodGet)

	c := s.router.PathPrefix("/contentful").Subrouter()
	c.HandleFunc("/download/{asset_id}", s.handleDownload).Methods(http.MethodGet)
	c.HandleFunc("/file_cache/{source_host}/{file_path:.+}", s.handleFileCache).Methods(http.MethodGet)
	c.HandleFunc("/manage/{endpoint:.*}", s.handleManage)
	c.HandleFunc("/{item_type}/{item_id}", s.handleContent).Methods(http.MethodGet)
	c.HandleFunc("/{item_type}", s.handleContent).Methods(http.MethodGet)
	c.HandleFunc("/", s.handleContent).Methods(http.MethodGet)
	c.HandleFunc("", s.handleContent).Methods(http.MethodGet)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleContent serves transformed content for /contentful, /contentful/{type}
// and /contentful/{type}/{id}.
func (s *server) handleContent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	itemType := vars["item_type"]
	itemID := vars["item_id"]

	result, err := s.content.Fetch(r.Context(), itemType, itemID, r.URL.Query())
	if err != nil {
		if errors.Is(err, contentful.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Str("item_type", itemType).Msg("Content fetch failed")
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}

	etag := `"` + result.ETag + `"`
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(result.JSON)
}

// handleDownload redirects to the raw file behind one asset.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	envelope, err := s.upstream.Get(r.Context(), "assets", assetID, nil)
	if err != nil {
		if errors.Is(err, contentful.ErrNotFound) {
			http.Error(w, "Asset not found", http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Str("asset_id", assetID).Msg("Asset fetch failed")
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}

	file, ok := assetFile(envelope)
	if !ok {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	fileURL, _ := file["url"].(string)
	if fileURL == "" {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	if contentType, ok := file["contentType"].(string); ok && contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.Redirect(w, r, fileURL, http.StatusFound)
}

// handleFileCache redirects to the mirrored copy of one source file.
func (s *server) handleFileCache(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		http.Error(w, "file mirror not configured", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(r)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")

	redirectURL, err := s.mirror.Resolve(r.Context(), vars["source_host"], vars["file_path"], r.URL.RawQuery)
	if err != nil {
		if errors.Is(err, mirror.ErrSourceNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Str("file_url", vars["file_path"]).Msg("Mirror resolve failed")
		http.Error(w, "mirror request failed", http.StatusBadGateway)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// handleManage forwards write-side requests to the Management API.
func (s *server) handleManage(w http.ResponseWriter, r *http.Request) {
	if s.management == nil {
		http.Error(w, "management proxy not configured", http.StatusServiceUnavailable)
		return
	}
	s.management.Forward(w, r, mux.Vars(r)["endpoint"])
}

// handleCleanup removes mirrored files past retention. Wired to a cron
// trigger, not meant for public exposure.
func (s *server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if s.cleaner == nil {
		http.Error(w, "file mirror not configured", http.StatusServiceUnavailable)
		return
	}

	removed, err := s.cleaner.RemoveOlderThan(r.Context(), s.retention)
	if err != nil {
		s.logger.Error().Err(err).Msg("Cleanup failed")
		http.Error(w, "cleanup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"removed":%d}`, removed)
}

// assetFile digs fields.file out of a raw asset envelope.
func assetFile(envelope map[string]any) (map[string]any, bool) {
	fields, ok := envelope["fields"].(map[string]any)
	if !ok {
		return nil, false
	}
	file, ok := fields["file"].(map[string]any)
	return file, ok
}
