package unpaywall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL:   serverURL,
		Email:     "slr@example.com",
		Enabled:   true,
		RateLimit: 100,
		BurstSize: 10,
	})
}

func TestNew(t *testing.T) {
	t.Run("applies default configuration", func(t *testing.T) {
		client := New(Config{Email: "slr@example.com", Enabled: true})

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
	})

	t.Run("reports source type", func(t *testing.T) {
		client := New(Config{Email: "slr@example.com"})
		assert.Equal(t, domain.SourceTypeUnpaywall, client.SourceType())
	})
}

func TestClient_FetchByIdentifier(t *testing.T) {
	t.Run("returns best open access pdf", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Contains(t, r.URL.Path, "10.1234/example")
			assert.Equal(t, "slr@example.com", r.URL.Query().Get("email"))

			json.NewEncoder(w).Encode(ArticleResponse{
				DOI:      "10.1234/example",
				Title:    "An Open Access Paper",
				IsOA:     true,
				OAStatus: "gold",
				BestOALocation: &OALocation{
					URL:       "https://journal.example.com/article",
					URLForPDF: "https://journal.example.com/article.pdf",
					HostType:  "publisher",
					Version:   "publishedVersion",
				},
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.1234/example",
		})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "https://journal.example.com/article.pdf", result.PDFURL)
	})

	t.Run("falls back to repository location pdf", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ArticleResponse{
				DOI:  "10.1234/green",
				IsOA: true,
				BestOALocation: &OALocation{
					URL:      "https://journal.example.com/article",
					HostType: "publisher",
				},
				OALocations: []OALocation{
					{URL: "https://journal.example.com/article", HostType: "publisher"},
					{URLForPDF: "https://repo.example.edu/paper.pdf", HostType: "repository"},
				},
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.1234/green",
		})

		require.NoError(t, err)
		assert.Equal(t, "https://repo.example.edu/paper.pdf", result.PDFURL)
	})

	t.Run("strips doi prefix from identifier", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotContains(t, r.URL.Path, "doi:")
			json.NewEncoder(w).Encode(ArticleResponse{
				DOI:            "10.1234/prefixed",
				IsOA:           true,
				BestOALocation: &OALocation{URLForPDF: "https://example.com/p.pdf"},
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "doi:10.1234/prefixed",
		})

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/p.pdf", result.PDFURL)
	})

	t.Run("rejects non-DOI identifiers", func(t *testing.T) {
		client := newTestClient("http://unused.invalid")

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierArXiv,
			Value: "2306.12345",
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNoIdentifier)
	})

	t.Run("returns not found for closed access articles", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ArticleResponse{
				DOI:      "10.1234/closed",
				IsOA:     false,
				OAStatus: "closed",
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.1234/closed",
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returns not found for unknown DOI", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ErrorResponse{Error: true, Message: "Invalid DOI"})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.9999/missing",
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		var notFoundErr *domain.NotFoundError
		assert.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("wraps API errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		_, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "not-a-doi",
		})

		require.Error(t, err)
		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	})
}
