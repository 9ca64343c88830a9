package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default CORE v3 API base URL.
	DefaultBaseURL = "https://api.core.ac.uk/v3"

	// DefaultRateLimit is the default rate limit. Registered CORE keys
	// allow 10 requests per 10 seconds.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout. CORE responses carry
	// extracted full text and can be large.
	DefaultTimeout = 60 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "CORE"
)

// Config holds configuration for the CORE client.
type Config struct {
	// BaseURL is the CORE API base URL.
	BaseURL string

	// APIKey is the CORE API key, sent as a Bearer token.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// Enabled indicates whether this source participates in acquisition.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements the papersources.FullTextFetcher interface for CORE.
// CORE is the only waterfall source that returns extracted full text
// directly rather than just a PDF location.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements FullTextFetcher interface.
var _ papersources.FullTextFetcher = (*Client)(nil)

// New creates a new CORE client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	}
	if cfg.APIKey != "" {
		httpCfg.APIKey = "Bearer " + cfg.APIKey
		httpCfg.APIKeyHeader = "Authorization"
	}

	return &Client{
		config:     cfg,
		httpClient: papersources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new CORE client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCORE
}

// FetchByIdentifier locates a work by DOI or title and returns its extracted
// full text and PDF download link. Unsupported identifier kinds return
// domain.ErrNoIdentifier.
func (c *Client) FetchByIdentifier(ctx context.Context, id papersources.Identifier) (*papersources.FullTextResult, error) {
	if id.Value == "" {
		return nil, domain.ErrNoIdentifier
	}

	var query string
	switch id.Kind {
	case papersources.IdentifierDOI:
		doi := strings.TrimPrefix(strings.TrimSpace(id.Value), "doi:")
		query = fmt.Sprintf(`doi:"%s"`, doi)
	case papersources.IdentifierTitle:
		query = fmt.Sprintf(`title:"%s"`, id.Value)
	default:
		return nil, domain.ErrNoIdentifier
	}

	work, err := c.searchOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if work == nil {
		return nil, domain.NewNotFoundError("paper", id.Value)
	}

	result := &papersources.FullTextResult{
		Text:     work.FullText,
		Abstract: work.Abstract,
		PDFURL:   work.DownloadURL,
	}
	if !result.HasContent() {
		return nil, domain.NewNotFoundError("full text", id.Value)
	}

	return result, nil
}

// searchOne runs a works search and returns the first hit, or nil when the
// query matches nothing.
func (c *Client) searchOne(ctx context.Context, query string) (*Work, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("search", "works")
	q := searchURL.Query()
	q.Set("q", query)
	q.Set("limit", "1")
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Full-text payloads can be large; allow up to 50MB.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 50<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(searchResp.Results) == 0 {
		return nil, nil
	}
	return &searchResp.Results[0], nil
}
