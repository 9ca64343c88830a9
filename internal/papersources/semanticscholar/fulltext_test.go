package semanticscholar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

func newFullTextServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.Contains(r.URL.Path, "/citations"):
			json.NewEncoder(w).Encode(CitationsResponse{
				Data: []CitationEntry{
					{
						Contexts:    []string{"As shown in [12], the method improves recall.", "Building on [12]..."},
						CitingPaper: &PaperStub{PaperID: "cite1", Title: "A Citing Paper"},
					},
					{
						Contexts:    []string{"We adopt the protocol of [12]."},
						CitingPaper: &PaperStub{PaperID: "cite2", Title: "Another Citing Paper"},
					},
				},
			})
		case strings.Contains(r.URL.Path, "/references"):
			json.NewEncoder(w).Encode(ReferencesResponse{
				Data: []ReferenceEntry{
					{CitedPaper: &PaperStub{PaperID: "ref1", Title: "Foundational Work"}},
					{CitedPaper: &PaperStub{Title: "Untitled Ref"}},
					{CitedPaper: nil},
				},
			})
		case strings.Contains(r.URL.Path, "/papers/forpaper/"):
			json.NewEncoder(w).Encode(RecommendationsResponse{
				RecommendedPapers: []PaperStub{
					{PaperID: "rec1", Title: "Related Study One"},
					{PaperID: "rec2", Title: "Related Study Two"},
				},
			})
		case strings.Contains(r.URL.Path, "/paper/search/match"):
			json.NewEncoder(w).Encode(SearchResponse{
				Data: []PaperResult{{PaperID: "matched123", Title: "Matched By Title"}},
			})
		case strings.Contains(r.URL.Path, "/paper/"):
			json.NewEncoder(w).Encode(PaperResult{
				PaperID:       "abc123",
				Title:         "Target Paper",
				Abstract:      "The target abstract.",
				TLDR:          &TLDR{Text: "Short summary."},
				CitationCount: 42,
				IsOpenAccess:  true,
				OpenAccessPDF: &OpenAccessPDF{URL: "https://example.com/target.pdf", Status: "GOLD"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newFullTextClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:            serverURL,
		RecommendationsURL: serverURL,
		Enabled:            true,
		RateLimit:          100,
		BurstSize:          10,
	}, nil)
}

func TestClient_FetchByIdentifier(t *testing.T) {
	t.Run("fetches full-text signals by DOI", func(t *testing.T) {
		server := newFullTextServer(t)
		defer server.Close()

		client := newFullTextClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.1234/target",
		})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "https://example.com/target.pdf", result.PDFURL)
		assert.Equal(t, "The target abstract.", result.Abstract)
		assert.Equal(t, "Short summary.", result.TLDR)
		assert.Equal(t, 42, result.CitationCount)
		assert.Equal(t, []string{
			"As shown in [12], the method improves recall.",
			"Building on [12]...",
			"We adopt the protocol of [12].",
		}, result.CitationContexts)
		assert.Equal(t, []string{"Foundational Work", "Untitled Ref"}, result.ReferenceTitles)
		assert.Equal(t, []string{"Related Study One", "Related Study Two"}, result.RelatedTitles)
		assert.True(t, result.HasContent())
	})

	t.Run("prefixes identifiers by kind", func(t *testing.T) {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.EscapedPath())
			json.NewEncoder(w).Encode(PaperResult{PaperID: "abc123", Title: "T"})
		}))
		defer server.Close()

		client := newFullTextClient(server.URL)

		cases := []struct {
			id   papersources.Identifier
			want string
		}{
			{papersources.Identifier{Kind: papersources.IdentifierDOI, Value: "10.1/x"}, "/paper/DOI:10.1%2Fx"},
			{papersources.Identifier{Kind: papersources.IdentifierArXiv, Value: "2306.12345"}, "/paper/ARXIV:2306.12345"},
			{papersources.Identifier{Kind: papersources.IdentifierPubMed, Value: "12345678"}, "/paper/PMID:12345678"},
			{papersources.Identifier{Kind: papersources.IdentifierSemanticScholar, Value: "abc123"}, "/paper/abc123"},
		}

		for _, tc := range cases {
			paths = paths[:0]
			_, err := client.FetchByIdentifier(context.Background(), tc.id)
			require.NoError(t, err)
			require.NotEmpty(t, paths)
			assert.Equal(t, tc.want, paths[0])
		}
	})

	t.Run("resolves title identifiers through the match endpoint", func(t *testing.T) {
		server := newFullTextServer(t)
		defer server.Close()

		client := newFullTextClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierTitle,
			Value: "Target Paper",
		})

		require.NoError(t, err)
		assert.Equal(t, "The target abstract.", result.Abstract)
	})

	t.Run("returns no-identifier error for empty value", func(t *testing.T) {
		client := newFullTextClient("http://unused.invalid")

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind: papersources.IdentifierDOI,
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNoIdentifier)
	})

	t.Run("returns not found for unknown paper", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newFullTextClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierDOI,
			Value: "10.1234/missing",
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("tolerates auxiliary endpoint failures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "/citations") ||
				strings.Contains(r.URL.Path, "/references") ||
				strings.Contains(r.URL.Path, "/forpaper/") {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(PaperResult{
				PaperID:  "abc123",
				Abstract: "Still useful.",
			})
		}))
		defer server.Close()

		client := newFullTextClient(server.URL)

		result, err := client.FetchByIdentifier(context.Background(), papersources.Identifier{
			Kind:  papersources.IdentifierSemanticScholar,
			Value: "abc123",
		})

		require.NoError(t, err)
		assert.Equal(t, "Still useful.", result.Abstract)
		assert.Empty(t, result.CitationContexts)
		assert.Empty(t, result.ReferenceTitles)
		assert.Empty(t, result.RelatedTitles)
	})
}
