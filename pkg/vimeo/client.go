// Package vimeo provides the minimal Vimeo API client used to resolve video
// ids into time-limited download links.
package vimeo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// DefaultBaseURL is the Vimeo API endpoint.
const DefaultBaseURL = "https://api.vimeo.com"

// Download is one quality variant of a resolved video. Link and Expires are
// the fields the proxy depends on; the remainder rides along unchanged.
type Download struct {
	Quality string `json:"quality,omitempty"`
	Type    string `json:"type,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Expires string `json:"expires"`
	Link    string `json:"link"`
	Size    int64  `json:"size,omitempty"`
}

// Config holds the client configuration.
type Config struct {
	// Token is the Vimeo API bearer token.
	Token string

	// BaseURL overrides the API endpoint (for testing).
	BaseURL string

	// Timeout bounds each API call. Defaults to 60s.
	Timeout time.Duration

	// MaxAttempts bounds transient-failure retries. Defaults to 3.
	MaxAttempts int
}

// Client calls the Vimeo API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	maxAttempts int
	logger      zerolog.Logger
}

// New creates a new Vimeo client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     cfg.BaseURL,
		token:       cfg.Token,
		maxAttempts: cfg.MaxAttempts,
		logger:      logging.NewLogger("vimeo-client"),
	}, nil
}

// Downloads resolves a video id into its download variants, returned as the
// raw JSON array from the API so callers can cache it verbatim.
func (c *Client) Downloads(ctx context.Context, videoID string) (json.RawMessage, error) {
	requestURL := fmt.Sprintf("%s/videos/%s?fields=download", c.baseURL, videoID)

	var body []byte
	var lastErr error

	backoff := time.Second
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, lastErr = c.fetch(ctx, requestURL)
		if lastErr == nil {
			break
		}

		c.logger.Warn().
			Err(lastErr).
			Str("video_id", videoID).
			Int("attempt", attempt).
			Msg("Vimeo request failed")

		// 4xx responses are semantic failures, not transient ones.
		var se *statusError
		if errors.As(lastErr, &se) && se.status >= 400 && se.status < 500 {
			return nil, lastErr
		}

		if attempt >= c.maxAttempts {
			return nil, fmt.Errorf("vimeo request failed after %d attempts: %w", c.maxAttempts, lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	var payload struct {
		Download json.RawMessage `json:"download"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode vimeo response: %w", err)
	}
	if len(payload.Download) == 0 {
		return nil, fmt.Errorf("vimeo response for %s has no download variants", videoID)
	}

	return payload.Download, nil
}

func (c *Client) fetch(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("vimeo status %d", e.status)
}
