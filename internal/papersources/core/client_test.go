package core

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
		APIKey:    "test-key",
		Enabled:   true,
		RateLimit: 100,
		BurstSize: 10,
	})
}

func TestNew(t *testing.T) {
	t.Run("applies default configuration", func(t *testing.T) {
		client := New(Config{APIKey: "k", Enabled: true})

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
	})

	t.Run("reports source type", func(t *testing.T) {
		client := New(Config{APIKey: "k"})
		assert.Equal(t, domain.SourceTypeCORE, client.SourceType())
	})
}

func TestClient_FetchByIdentifier(t *testing.T) {
	t.Run("returns extracted full text by DOI", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/search/works")
			assert.Equal(t, `doi:"10.1234/example"`, r.URL.Query().Get("q"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(SearchResponse{
				TotalHits: 1,
				Results: []Work{
					{
						ID:          12345,
						DOI:         "10.1234/example",
						Title:       "Aggregated Paper",
						Abstract:    "The abstract.",
						FullText:    "Introduction. Methods. Results. Discussion.",
						DownloadURL: "https://core.ac.uk/download/12345.pdf",
					},
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
		assert.Equal(t, "Introduction. Methods. Results. Discussion.", result.Text)
		assert.Equal(t, "The abstract.", result.Abstract)
		assert.Equal(t, "https://core.ac.uk/download/12345.pdf", result.PDFURL)
	})

	t.Run("searches by title", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, `title:"A Known Title"`, r.URL.Query().Get("q"))

			json.NewEncoder(w).Encode(SearchResponse{
				TotalHits: 1,
				Results:   []Work{{ID: 1, Title: "A Known Title", DownloadURL: "https://core.ac.uk/download/1.pdf"}},
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierTitle,
			Value: "A Known Title",
		})

		require.NoError(t, err)
		assert.Equal(t, "https://core.ac.uk/download/1.pdf", result.PDFURL)
	})

	t.Run("rejects unsupported identifier kinds", func(t *testing.T) {
		client := newTestClient("http://unused.invalid")

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierPubMed,
			Value: "12345678",
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNoIdentifier)
	})

	t.Run("returns not found when nothing matches", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(SearchResponse{TotalHits: 0, Results: []Work{}})
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
	})

	t.Run("returns not found when work has no content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(SearchResponse{
				TotalHits: 1,
				Results:   []Work{{ID: 7, Title: "Metadata Only"}},
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.1234/metadata-only",
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("wraps API errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(ErrorResponse{Message: "invalid api key"})
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		_, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.1234/example",
		})

		require.Error(t, err)
		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})
}
