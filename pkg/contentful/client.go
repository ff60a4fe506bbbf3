// Package contentful provides the upstream Contentful Delivery API client
// with error classification, bounded retries and request metrics.
package contentful

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// Prometheus metrics for upstream requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentful_proxy_upstream_requests_total",
		Help: "Total upstream Contentful requests by item type and status",
	}, []string{"item_type", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contentful_proxy_upstream_request_duration_seconds",
		Help:    "Upstream Contentful request duration in seconds by item type",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"item_type"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentful_proxy_upstream_errors_total",
		Help: "Total upstream Contentful errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the Contentful Delivery API endpoint.
const DefaultBaseURL = "https://cdn.contentful.com"

// itemPaths maps public item types to their upstream collection path.
// An item type outside this table is a caller mistake, not an upstream fault.
var itemPaths = map[string]string{
	"entries":       "entries",
	"assets":        "assets",
	"content_types": "content_types",
	"":              "", // space root
}

// Config holds the client configuration.
type Config struct {
	// Space is the Contentful space id.
	Space string

	// Token is the Delivery API access token.
	Token string

	// Environment defaults to "master".
	Environment string

	// BaseURL overrides the Delivery API endpoint (for testing).
	BaseURL string

	// Timeout bounds each upstream call. Defaults to 60s.
	Timeout time.Duration

	// Retry configures the backoff policy. Zero value uses defaults.
	Retry RetryConfig
}

// Client is the Contentful Delivery API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	space      string
	env        string
	token      string
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates a new Contentful client.
func New(cfg Config) (*Client, error) {
	if cfg.Space == "" {
		return nil, fmt.Errorf("space is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.Environment == "" {
		cfg.Environment = "master"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		space:   cfg.Space,
		env:     cfg.Environment,
		token:   cfg.Token,
		retry:   cfg.Retry,
		logger:  logging.NewLogger("contentful-client"),
	}, nil
}

// Get fetches a raw response envelope from the Delivery API.
//
// itemType selects the collection ("entries", "assets", "content_types" or ""
// for the space root). With a non-empty itemID a single item is addressed;
// entries are fetched through the collection endpoint with a sys.id filter so
// the response still carries its includes, which the link resolver depends on.
//
// Returns ErrUnknownItemType for types outside the table (without contacting
// upstream) and ErrNotFound for upstream 404s.
func (c *Client) Get(ctx context.Context, itemType, itemID string, query url.Values) (map[string]any, error) {
	path, ok := itemPaths[itemType]
	if !ok {
		c.logger.Warn().Str("item_type", itemType).Msg("Unexpected item type")
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, itemType)
	}

	q := url.Values{}
	for key, values := range query {
		q[key] = values
	}

	if itemID != "" {
		if itemType == "entries" {
			q.Set("sys.id", itemID)
		} else {
			path = path + "/" + itemID
		}
	}

	requestURL := fmt.Sprintf("%s/spaces/%s/environments/%s/%s", c.baseURL, c.space, c.env, path)
	if encoded := q.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(itemType).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte

	err := retryWithBackoff(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error().Err(err).Str("item_type", itemType).Msg("Upstream request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(itemType, "network_error").Inc()
			return err
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(itemType, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			errClass := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("item_type", itemType).
				Int("status_code", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Upstream request error")

			return &UpstreamError{
				StatusCode: resp.StatusCode,
				Class:      errClass,
				Message:    resp.Status,
			}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		return nil
	})
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, itemType, itemID)
		}
		return nil, err
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}

	return envelope, nil
}
