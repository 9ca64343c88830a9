package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind papersources.IdentifierKind
		wantVal  string
	}{
		{"bare DOI", "10.1038/s41586-021-03819-2", papersources.IdentifierDOI, "10.1038/s41586-021-03819-2"},
		{"doi prefix", "doi:10.1234/abc", papersources.IdentifierDOI, "10.1234/abc"},
		{"doi.org URL", "https://doi.org/10.1234/abc", papersources.IdentifierDOI, "10.1234/abc"},
		{"arxiv new style", "2103.14030", papersources.IdentifierArXiv, "2103.14030"},
		{"arxiv versioned", "2103.14030v2", papersources.IdentifierArXiv, "2103.14030v2"},
		{"arxiv prefix", "arXiv:2103.14030", papersources.IdentifierArXiv, "2103.14030"},
		{"arxiv abs URL", "https://arxiv.org/abs/2103.14030", papersources.IdentifierArXiv, "2103.14030"},
		{"pmid", "31978945", papersources.IdentifierPubMed, "31978945"},
		{"pmid prefix", "PMID:31978945", papersources.IdentifierPubMed, "31978945"},
		{"s2 sha", "649def34f8be52c8b66281af98ae884c09aef38b", papersources.IdentifierSemanticScholar, "649def34f8be52c8b66281af98ae884c09aef38b"},
		{"title fallback", "Attention Is All You Need", papersources.IdentifierTitle, "Attention Is All You Need"},
		{"whitespace trimmed", "  10.1234/abc  ", papersources.IdentifierDOI, "10.1234/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := ClassifyIdentifier(tt.raw)
			assert.Equal(t, tt.wantKind, id.Kind)
			assert.Equal(t, tt.wantVal, id.Value)
		})
	}
}

func TestIdentifiersFor(t *testing.T) {
	t.Run("orders strongest first with title last", func(t *testing.T) {
		paper := &domain.Paper{
			Title: "A Study",
			Identifiers: domain.PaperIdentifiers{
				DOI:     "10.1/x",
				ArXivID: "2101.00001",
			},
		}

		ids := identifiersFor(paper)

		require.Len(t, ids, 3)
		assert.Equal(t, papersources.IdentifierDOI, ids[0].Kind)
		assert.Equal(t, papersources.IdentifierArXiv, ids[1].Kind)
		assert.Equal(t, papersources.IdentifierTitle, ids[2].Kind)
		assert.Equal(t, "A Study", ids[2].Value)
	})

	t.Run("empty paper yields nothing", func(t *testing.T) {
		assert.Empty(t, identifiersFor(&domain.Paper{}))
	})
}
