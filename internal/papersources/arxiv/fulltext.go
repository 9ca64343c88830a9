package arxiv

import (
	"context"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

// Ensure Client implements FullTextFetcher interface.
var _ papersources.FullTextFetcher = (*Client)(nil)

// FetchByIdentifier resolves an arXiv ID to its PDF location and abstract.
// arXiv preprints are always open access, so a resolved entry always yields
// a PDF URL. Other identifier kinds return domain.ErrNoIdentifier.
func (c *Client) FetchByIdentifier(ctx context.Context, id papersources.Identifier) (*papersources.FullTextResult, error) {
	if id.Kind != papersources.IdentifierArXiv || id.Value == "" {
		return nil, domain.ErrNoIdentifier
	}

	paper, err := c.GetByID(ctx, id.Value)
	if err != nil {
		return nil, err
	}

	return &papersources.FullTextResult{
		PDFURL:        paper.PDFURL,
		Abstract:      paper.Abstract,
		CitationCount: paper.CitationCount,
	}, nil
}
