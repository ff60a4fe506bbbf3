package contentful

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// DefaultManagementBaseURL is the Contentful Management API endpoint.
const DefaultManagementBaseURL = "https://api.contentful.com"

// ManagementConfig holds the management proxy configuration.
type ManagementConfig struct {
	// Space is the Contentful space id, prepended to endpoints that do not
	// address a space themselves.
	Space string

	// Token is the Management API access token.
	Token string

	// BaseURL overrides the Management API endpoint (for testing).
	BaseURL string

	// Timeout bounds each forwarded call. Defaults to 60s.
	Timeout time.Duration
}

// ManagementProxy forwards requests verbatim to the Contentful Management
// API, swapping the caller's authorization for the management token. Bodies,
// methods, query strings and response status pass through unchanged.
type ManagementProxy struct {
	httpClient *http.Client
	baseURL    string
	space      string
	token      string
	logger     zerolog.Logger
}

// NewManagementProxy creates a management pass-through proxy.
func NewManagementProxy(cfg ManagementConfig) (*ManagementProxy, error) {
	if cfg.Space == "" {
		return nil, fmt.Errorf("space is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultManagementBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &ManagementProxy{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		space:   cfg.Space,
		token:   cfg.Token,
		logger:  logging.NewLogger("management-proxy"),
	}, nil
}

// Forward proxies one request to the Management API. An endpoint that does
// not already address a space is scoped to the configured one. OPTIONS
// requests are answered locally as CORS preflights and never forwarded.
func (p *ManagementProxy) Forward(w http.ResponseWriter, r *http.Request, endpoint string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
			w.Header().Set("Access-Control-Allow-Headers", requested)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	target := endpoint
	if !strings.HasPrefix(target, "spaces") {
		target = "spaces/" + p.space + "/" + target
	}

	requestURL := p.baseURL + "/" + target
	if r.URL.RawQuery != "" {
		requestURL += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, requestURL, r.Body)
	if err != nil {
		http.Error(w, "invalid management request", http.StatusBadRequest)
		return
	}

	req.Header = r.Header.Clone()
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Management request failed")
		http.Error(w, "management request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	// Content-Length is dropped; the body is re-chunked on the way out.
	for key, values := range resp.Header {
		if strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Management response copy failed")
	}
}
