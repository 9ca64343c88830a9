package acquisition

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/slr-pipeline-service/internal/cache"
	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

type stubFetcher struct {
	source domain.SourceType
	calls  int32
	fetch  func(id papersources.Identifier) (*papersources.FullTextResult, error)
}

func (f *stubFetcher) FetchByIdentifier(_ context.Context, id papersources.Identifier) (*papersources.FullTextResult, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fetch(id)
}

func (f *stubFetcher) SourceType() domain.SourceType {
	return f.source
}

// rejectAll returns ErrNoIdentifier for every identifier kind.
func rejectAll(papersources.Identifier) (*papersources.FullTextResult, error) {
	return nil, domain.ErrNoIdentifier
}

func newTestEngine(t *testing.T, fetchers ...*stubFetcher) *Engine {
	t.Helper()
	registry := papersources.NewRegistry()
	for _, f := range fetchers {
		registry.RegisterFetcher(f)
	}
	eng := NewEngine(registry, nil, Config{}, zerolog.Nop())
	eng.sleep = func(context.Context, time.Duration) error { return nil }
	return eng
}

func doiPaper() *domain.Paper {
	return &domain.Paper{
		CanonicalID: "doi:10.1234/test",
		Title:       "Effects of Testing on Software Quality",
		Abstract:    "We study the effects of testing.",
		Identifiers: domain.PaperIdentifiers{DOI: "10.1234/test"},
	}
}

func TestEngine_Acquire(t *testing.T) {
	t.Run("first source with content wins", func(t *testing.T) {
		s2 := &stubFetcher{source: domain.SourceTypeSemanticScholar, fetch: func(id papersources.Identifier) (*papersources.FullTextResult, error) {
			return &papersources.FullTextResult{PDFURL: "https://example.org/paper.pdf", CitationCount: 50}, nil
		}}
		unpaywall := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: rejectAll}
		eng := newTestEngine(t, s2, unpaywall)

		paper := doiPaper()
		result, err := eng.Acquire(context.Background(), paper)

		require.NoError(t, err)
		assert.Equal(t, domain.SourceSemanticScholar, result.Source)
		assert.Equal(t, "https://example.org/paper.pdf", result.PDFURL)
		assert.Equal(t, 1.0, result.Confidence)
		assert.False(t, result.IsVirtual)
		assert.Equal(t, int32(0), atomic.LoadInt32(&unpaywall.calls))

		assert.Equal(t, domain.SourceSemanticScholar, paper.FullTextSource)
		assert.Equal(t, 1.0, paper.RetrievalConfidence)
		assert.Equal(t, "https://example.org/paper.pdf", paper.PDFURL)
	})

	t.Run("source failure does not abort the waterfall", func(t *testing.T) {
		s2 := &stubFetcher{source: domain.SourceTypeSemanticScholar, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			return nil, domain.NewExternalAPIError("semantic_scholar", 400, "bad request", nil)
		}}
		unpaywall := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: func(id papersources.Identifier) (*papersources.FullTextResult, error) {
			if id.Kind != papersources.IdentifierDOI {
				return nil, domain.ErrNoIdentifier
			}
			return &papersources.FullTextResult{PDFURL: "https://oa.example.org/paper.pdf"}, nil
		}}
		eng := newTestEngine(t, s2, unpaywall)

		result, err := eng.Acquire(context.Background(), doiPaper())

		require.NoError(t, err)
		assert.Equal(t, domain.SourceUnpaywall, result.Source)
		assert.Equal(t, 1.0, result.Confidence)
	})

	t.Run("fallback sources carry lower confidence", func(t *testing.T) {
		core := &stubFetcher{source: domain.SourceTypeCORE, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			return &papersources.FullTextResult{Text: "full body text"}, nil
		}}
		eng := newTestEngine(t, core)

		result, err := eng.Acquire(context.Background(), doiPaper())

		require.NoError(t, err)
		assert.Equal(t, domain.SourceCORE, result.Source)
		assert.Equal(t, 0.95, result.Confidence)
		assert.Equal(t, "full body text", result.FullText)
	})

	t.Run("retries transient errors then succeeds", func(t *testing.T) {
		var attempts int32
		arxiv := &stubFetcher{source: domain.SourceTypeArXiv, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return nil, domain.NewExternalAPIError("arxiv", 503, "unavailable", nil)
			}
			return &papersources.FullTextResult{PDFURL: "https://arxiv.org/pdf/x.pdf"}, nil
		}}
		eng := newTestEngine(t, arxiv)

		paper := &domain.Paper{
			CanonicalID: "arxiv:2101.00001",
			Identifiers: domain.PaperIdentifiers{ArXivID: "2101.00001"},
		}
		result, err := eng.Acquire(context.Background(), paper)

		require.NoError(t, err)
		assert.Equal(t, 0.9, result.Confidence)
		assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	})

	t.Run("synthesizes virtual full text when exhausted", func(t *testing.T) {
		s2 := &stubFetcher{source: domain.SourceTypeSemanticScholar, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			return &papersources.FullTextResult{
				TLDR:             "One-line summary.",
				Abstract:         "The abstract.",
				CitationContexts: []string{"cited as foundational", "used as baseline"},
				RelatedTitles:    []string{"Related Work A"},
				CitationCount:    10,
			}, nil
		}}
		unpaywall := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: rejectAll}
		eng := newTestEngine(t, s2, unpaywall)

		paper := doiPaper()
		result, err := eng.Acquire(context.Background(), paper)

		require.NoError(t, err)
		assert.True(t, result.IsVirtual)
		assert.Equal(t, domain.SourceVirtual, result.Source)
		assert.Contains(t, result.FullText, "## TL;DR")
		assert.Contains(t, result.FullText, "## ABSTRACT")
		assert.Contains(t, result.FullText, "cited as foundational")
		// 0.5 base + 0.1 abstract + 0.1 tldr + 2*0.02 contexts + 0.1 related.
		assert.InDelta(t, 0.84, result.Confidence, 1e-9)

		assert.True(t, paper.IsVirtualFullText)
		assert.Equal(t, []string{"cited as foundational", "used as baseline"}, paper.CitationContexts)
	})

	t.Run("virtual confidence caps at 0.85", func(t *testing.T) {
		contexts := make([]string, 12)
		for i := range contexts {
			contexts[i] = "context"
		}
		s2 := &stubFetcher{source: domain.SourceTypeSemanticScholar, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			return &papersources.FullTextResult{
				TLDR:             "Summary.",
				Abstract:         "Abstract.",
				CitationContexts: contexts,
				RelatedTitles:    []string{"A"},
			}, nil
		}}
		eng := newTestEngine(t, s2)

		result, err := eng.Acquire(context.Background(), doiPaper())

		require.NoError(t, err)
		assert.Equal(t, 0.85, result.Confidence)
	})

	t.Run("falls back to paper metadata for synthesis", func(t *testing.T) {
		down := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			return nil, domain.ErrNotFound
		}}
		eng := newTestEngine(t, down)

		paper := doiPaper()
		result, err := eng.Acquire(context.Background(), paper)

		require.NoError(t, err)
		assert.True(t, result.IsVirtual)
		assert.Contains(t, result.FullText, paper.Abstract)
		// 0.5 base + 0.1 abstract only.
		assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	})

	t.Run("fails when nothing can be synthesized", func(t *testing.T) {
		down := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			return nil, domain.ErrNotFound
		}}
		eng := newTestEngine(t, down)

		paper := &domain.Paper{
			CanonicalID: "doi:10.1/bare",
			Identifiers: domain.PaperIdentifiers{DOI: "10.1/bare"},
		}
		_, err := eng.Acquire(context.Background(), paper)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, domain.FullTextSource(""), paper.FullTextSource)
		assert.Zero(t, paper.RetrievalConfidence)
	})

	t.Run("errors on paper without identifiers", func(t *testing.T) {
		eng := newTestEngine(t)

		_, err := eng.Acquire(context.Background(), &domain.Paper{})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNoIdentifier)
	})

	t.Run("caches fetch results per source and identifier", func(t *testing.T) {
		fetcher := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: func(papersources.Identifier) (*papersources.FullTextResult, error) {
			return &papersources.FullTextResult{PDFURL: "https://oa.example.org/p.pdf"}, nil
		}}
		registry := papersources.NewRegistry()
		registry.RegisterFetcher(fetcher)
		eng := NewEngine(registry, cache.New(cache.Config{}), Config{}, zerolog.Nop())

		_, err := eng.Acquire(context.Background(), doiPaper())
		require.NoError(t, err)
		_, err = eng.Acquire(context.Background(), doiPaper())
		require.NoError(t, err)

		assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
	})
}

func TestEngine_AcquireBatch(t *testing.T) {
	t.Run("isolates per-paper failures and reports progress", func(t *testing.T) {
		fetcher := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: func(id papersources.Identifier) (*papersources.FullTextResult, error) {
			if id.Value == "10.1/bad" {
				return nil, domain.ErrNotFound
			}
			return &papersources.FullTextResult{PDFURL: "https://oa.example.org/" + id.Value + ".pdf"}, nil
		}}
		eng := newTestEngine(t, fetcher)

		papers := []*domain.Paper{
			{CanonicalID: "doi:10.1/a", Identifiers: domain.PaperIdentifiers{DOI: "10.1/a"}},
			{CanonicalID: "doi:10.1/bad", Identifiers: domain.PaperIdentifiers{DOI: "10.1/bad"}},
			{CanonicalID: "doi:10.1/c", Identifiers: domain.PaperIdentifiers{DOI: "10.1/c"}},
		}

		var progressCalls int32
		results := eng.AcquireBatch(context.Background(), papers, 2, func(done, total int) {
			atomic.AddInt32(&progressCalls, 1)
			assert.Equal(t, 3, total)
		})

		require.Len(t, results, 3)
		assert.NoError(t, results[0].Err)
		require.Error(t, results[1].Err)
		assert.ErrorIs(t, results[1].Err, domain.ErrNotFound)
		assert.Equal(t, domain.SourceNone, results[1].Source)
		assert.NoError(t, results[2].Err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&progressCalls))
	})

	t.Run("panicking fetcher fails only that paper", func(t *testing.T) {
		fetcher := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: func(id papersources.Identifier) (*papersources.FullTextResult, error) {
			if id.Value == "10.1/boom" {
				panic("malformed response")
			}
			return &papersources.FullTextResult{PDFURL: "https://oa.example.org/" + id.Value + ".pdf"}, nil
		}}
		eng := newTestEngine(t, fetcher)

		papers := []*domain.Paper{
			{CanonicalID: "doi:10.1/a", Identifiers: domain.PaperIdentifiers{DOI: "10.1/a"}},
			{CanonicalID: "doi:10.1/boom", Identifiers: domain.PaperIdentifiers{DOI: "10.1/boom"}},
			{CanonicalID: "doi:10.1/c", Identifiers: domain.PaperIdentifiers{DOI: "10.1/c"}},
		}

		results := eng.AcquireBatch(context.Background(), papers, 2, nil)

		require.Len(t, results, 3)
		assert.NoError(t, results[0].Err)
		require.Error(t, results[1].Err)
		assert.Contains(t, results[1].Err.Error(), "panicked")
		assert.Equal(t, domain.SourceNone, results[1].Source)
		assert.NoError(t, results[2].Err)
	})

	t.Run("results keep input order", func(t *testing.T) {
		fetcher := &stubFetcher{source: domain.SourceTypeUnpaywall, fetch: func(id papersources.Identifier) (*papersources.FullTextResult, error) {
			return &papersources.FullTextResult{PDFURL: "https://oa.example.org/" + id.Value}, nil
		}}
		eng := newTestEngine(t, fetcher)

		papers := make([]*domain.Paper, 10)
		for i := range papers {
			doi := "10.1/" + string(rune('a'+i))
			papers[i] = &domain.Paper{CanonicalID: "doi:" + doi, Identifiers: domain.PaperIdentifiers{DOI: doi}}
		}

		results := eng.AcquireBatch(context.Background(), papers, 4, nil)

		require.Len(t, results, 10)
		for i, r := range results {
			assert.Same(t, papers[i], r.Paper)
		}
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(domain.NewExternalAPIError("core", 429, "slow down", nil)))
	assert.True(t, isTransient(domain.NewExternalAPIError("core", 502, "bad gateway", nil)))
	assert.True(t, isTransient(domain.ErrRateLimited))
	assert.False(t, isTransient(domain.NewExternalAPIError("core", 404, "missing", nil)))
	assert.False(t, isTransient(domain.ErrNotFound))
	assert.False(t, isTransient(errors.New("plain")))
}
