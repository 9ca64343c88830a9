package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

func TestTitleSimilarity(t *testing.T) {
	t.Run("identical titles", func(t *testing.T) {
		assert.Equal(t, 1.0, TitleSimilarity("CRISPR Gene Editing", "CRISPR Gene Editing"))
	})

	t.Run("case and punctuation insensitive", func(t *testing.T) {
		assert.Equal(t, 1.0, TitleSimilarity("CRISPR: Gene Editing!", "crispr gene editing"))
	})

	t.Run("near match scores high", func(t *testing.T) {
		sim := TitleSimilarity(
			"Deep learning for systematic reviews",
			"Deep learning for systematic review",
		)
		assert.Greater(t, sim, 0.95)
	})

	t.Run("different titles score low", func(t *testing.T) {
		sim := TitleSimilarity(
			"Deep learning for systematic reviews",
			"Bayesian inference in clinical trials",
		)
		assert.Less(t, sim, 0.5)
	})

	t.Run("empty title scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, TitleSimilarity("", "Some Title"))
	})
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "CRISPR Gene Editing", "crispr gene editing"},
		{"punctuation stripped", "CRISPR: a review (2023).", "crispr a review 2023"},
		{"whitespace collapsed", "  a\n  b\t c  ", "a b c"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeTitle(tc.input))
		})
	}
}

func TestChecker_IsDuplicate(t *testing.T) {
	checker := NewChecker(DefaultConfig())

	t.Run("same canonical ID", func(t *testing.T) {
		a := &domain.Paper{CanonicalID: "doi:10.1234/x", Title: "Title A"}
		b := &domain.Paper{CanonicalID: "doi:10.1234/x", Title: "Completely Different"}
		assert.True(t, checker.IsDuplicate(a, b))
	})

	t.Run("similar title with matching authors", func(t *testing.T) {
		a := &domain.Paper{
			CanonicalID: "doi:10.1234/a",
			Title:       "Deep Learning for Systematic Reviews",
			Authors:     []domain.Author{{Name: "Jane Doe"}, {Name: "John Smith"}},
		}
		b := &domain.Paper{
			CanonicalID: "arxiv:2301.12345",
			Title:       "Deep Learning for Systematic Reviews.",
			Authors:     []domain.Author{{Name: "J. Doe"}, {Name: "John Smith"}},
		}
		assert.True(t, checker.IsDuplicate(a, b))
	})

	t.Run("similar title with disjoint authors", func(t *testing.T) {
		a := &domain.Paper{
			Title:   "Deep Learning for Systematic Reviews",
			Authors: []domain.Author{{Name: "Jane Doe"}},
		}
		b := &domain.Paper{
			Title:   "Deep Learning for Systematic Reviews",
			Authors: []domain.Author{{Name: "Maria Garcia"}},
		}
		assert.False(t, checker.IsDuplicate(a, b))
	})

	t.Run("similar title without author data", func(t *testing.T) {
		a := &domain.Paper{Title: "Deep Learning for Systematic Reviews"}
		b := &domain.Paper{Title: "Deep learning for systematic reviews"}
		assert.True(t, checker.IsDuplicate(a, b))
	})

	t.Run("different papers", func(t *testing.T) {
		a := &domain.Paper{CanonicalID: "doi:10.1234/a", Title: "Paper One"}
		b := &domain.Paper{CanonicalID: "doi:10.1234/b", Title: "An Unrelated Study"}
		assert.False(t, checker.IsDuplicate(a, b))
	})
}

func TestChecker_Deduplicate(t *testing.T) {
	checker := NewChecker(DefaultConfig())

	t.Run("removes exact canonical duplicates", func(t *testing.T) {
		papers := []*domain.Paper{
			{CanonicalID: "doi:10.1234/a", Title: "Paper A"},
			{CanonicalID: "doi:10.1234/b", Title: "Paper B"},
			{CanonicalID: "doi:10.1234/a", Title: "Paper A (from another source)"},
		}

		unique, removed := checker.Deduplicate(papers)

		assert.Equal(t, 1, removed)
		require.Len(t, unique, 2)
		assert.Equal(t, "doi:10.1234/a", unique[0].CanonicalID)
		assert.Equal(t, "doi:10.1234/b", unique[1].CanonicalID)
	})

	t.Run("removes fuzzy title duplicates across sources", func(t *testing.T) {
		papers := []*domain.Paper{
			{
				CanonicalID: "doi:10.1234/a",
				Title:       "Attention Is All You Need",
				Authors:     []domain.Author{{Name: "Ashish Vaswani"}},
			},
			{
				CanonicalID: "arxiv:1706.03762",
				Title:       "Attention is all you need",
				Authors:     []domain.Author{{Name: "A. Vaswani"}},
			},
		}

		unique, removed := checker.Deduplicate(papers)

		assert.Equal(t, 1, removed)
		require.Len(t, unique, 1)
	})

	t.Run("merges metadata from discarded duplicate", func(t *testing.T) {
		papers := []*domain.Paper{
			{
				CanonicalID:   "doi:10.1234/a",
				Title:         "Paper A",
				CitationCount: 5,
			},
			{
				CanonicalID:   "doi:10.1234/a",
				Title:         "Paper A",
				Abstract:      "The abstract from the richer source.",
				PDFURL:        "https://example.com/a.pdf",
				CitationCount: 50,
				OpenAccess:    true,
				Identifiers:   domain.PaperIdentifiers{ArXivID: "2301.00001"},
			},
		}

		unique, removed := checker.Deduplicate(papers)

		assert.Equal(t, 1, removed)
		require.Len(t, unique, 1)
		kept := unique[0]
		assert.Equal(t, "The abstract from the richer source.", kept.Abstract)
		assert.Equal(t, "https://example.com/a.pdf", kept.PDFURL)
		assert.Equal(t, 50, kept.CitationCount)
		assert.True(t, kept.OpenAccess)
		assert.Equal(t, "2301.00001", kept.Identifiers.ArXivID)
	})

	t.Run("preserves input order", func(t *testing.T) {
		papers := []*domain.Paper{
			{CanonicalID: "doi:10.1/c", Title: "C"},
			{CanonicalID: "doi:10.1/a", Title: "A"},
			{CanonicalID: "doi:10.1/b", Title: "B"},
		}

		unique, removed := checker.Deduplicate(papers)

		assert.Equal(t, 0, removed)
		require.Len(t, unique, 3)
		assert.Equal(t, "C", unique[0].Title)
		assert.Equal(t, "A", unique[1].Title)
		assert.Equal(t, "B", unique[2].Title)
	})

	t.Run("skips nil papers", func(t *testing.T) {
		papers := []*domain.Paper{
			nil,
			{CanonicalID: "doi:10.1/a", Title: "A"},
		}

		unique, removed := checker.Deduplicate(papers)

		assert.Equal(t, 0, removed)
		require.Len(t, unique, 1)
	})
}
