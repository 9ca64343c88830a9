package unpaywall

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
	// DefaultBaseURL is the default Unpaywall API base URL.
	DefaultBaseURL = "https://api.unpaywall.org/v2"

	// DefaultRateLimit is the default rate limit (10 requests per second,
	// well under the 100k requests/day courtesy limit).
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "Unpaywall"
)

// Config holds configuration for the Unpaywall client.
type Config struct {
	// BaseURL is the Unpaywall API base URL.
	BaseURL string

	// Email identifies the caller; Unpaywall requires it on every request.
	Email string

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

// Client implements the papersources.FullTextFetcher interface for Unpaywall.
// Unpaywall is lookup-only: it resolves DOIs to open-access PDF locations and
// has no search surface.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements FullTextFetcher interface.
var _ papersources.FullTextFetcher = (*Client)(nil)

// New creates a new Unpaywall client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new Unpaywall client with a custom HTTP client.
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
	return domain.SourceTypeUnpaywall
}

// FetchByIdentifier resolves a DOI to its best open-access PDF location.
// Unpaywall only understands DOIs; any other identifier kind returns
// domain.ErrNoIdentifier so the caller can try the next source.
func (c *Client) FetchByIdentifier(ctx context.Context, id papersources.Identifier) (*papersources.FullTextResult, error) {
	if id.Kind != papersources.IdentifierDOI || id.Value == "" {
		return nil, domain.ErrNoIdentifier
	}

	doi := strings.TrimPrefix(strings.TrimSpace(id.Value), "doi:")

	requestURL, err := c.buildArticleURL(doi)
	if err != nil {
		return nil, fmt.Errorf("building article URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("paper", doi)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var article ArticleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&article); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	pdfURL := bestPDFURL(article)
	if pdfURL == "" {
		return nil, domain.NewNotFoundError("open access pdf", doi)
	}

	return &papersources.FullTextResult{
		PDFURL: pdfURL,
	}, nil
}

// buildArticleURL constructs the per-DOI lookup URL with the email parameter.
func (c *Client) buildArticleURL(doi string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	articleURL := baseURL.JoinPath(doi)

	q := articleURL.Query()
	q.Set("email", c.config.Email)
	articleURL.RawQuery = q.Encode()

	return articleURL.String(), nil
}

// bestPDFURL picks the best direct PDF URL from an article response.
// best_oa_location wins; otherwise the first location with a PDF URL is used.
func bestPDFURL(article ArticleResponse) string {
	if !article.IsOA {
		return ""
	}
	if article.BestOALocation != nil && article.BestOALocation.URLForPDF != "" {
		return article.BestOALocation.URLForPDF
	}
	for _, loc := range article.OALocations {
		if loc.URLForPDF != "" {
			return loc.URLForPDF
		}
	}
	return ""
}
