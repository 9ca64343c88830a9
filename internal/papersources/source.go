// Package papersources provides interfaces and types for academic paper source clients.
//
// This package defines the foundational abstractions that all paper source
// implementations follow. Search-capable sources (Semantic Scholar, OpenAlex,
// arXiv) implement the PaperSource interface so the pipeline can search
// multiple databases concurrently with a unified API; full-text-capable
// sources additionally implement FullTextFetcher, which the acquisition
// waterfall tries in priority order.
//
// Example usage:
//
//	source := semanticscholar.New(cfg, httpClient)
//	params := papersources.SearchParams{
//		Query:      "CRISPR gene editing",
//		MaxResults: 100,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"time"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

// SearchParams defines the parameters for searching academic papers.
// All fields except Query are optional and support filtering the search results.
type SearchParams struct {
	// Query is the search query string (required).
	// The format may vary by source - some support boolean operators,
	// field-specific searches, or semantic search.
	Query string

	// DateFrom filters papers published on or after this date.
	// If nil, no lower date bound is applied.
	DateFrom *time.Time

	// DateTo filters papers published on or before this date.
	// If nil, no upper date bound is applied.
	DateTo *time.Time

	// MaxResults limits the number of papers returned in a single request.
	// Sources may have their own maximum limits that override this value.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// Offset specifies the starting position for paginated results.
	// Used in conjunction with MaxResults for pagination.
	Offset int

	// OpenAccessOnly filters results to only include open access papers.
	OpenAccessOnly bool

	// MinCitations filters papers to only include those with at least
	// this many citations. A value of 0 applies no citation filter.
	MinCitations int

	// IncludePreprints controls whether preprint papers are included in
	// the results. When false, sources that distinguish preprints
	// exclude them.
	IncludePreprints bool
}

// SearchResult contains the results from a paper source search operation.
type SearchResult struct {
	// Papers contains the papers returned by the search.
	// May be empty if no papers match the search criteria.
	Papers []*domain.Paper

	// TotalResults is the total number of papers matching the query,
	// regardless of pagination limits. This value is provided by the
	// source API and may be an estimate for large result sets.
	TotalResults int

	// HasMore indicates whether additional results are available
	// beyond the current page.
	HasMore bool

	// NextOffset is the offset value to use for fetching the next page
	// of results. Only meaningful when HasMore is true.
	NextOffset int

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all search-capable source clients
// must implement.
type PaperSource interface {
	// Search queries the paper source for papers matching the given parameters.
	// Returns a SearchResult containing the matching papers and pagination info.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Transform source-specific responses to domain.Paper
	//   - Include appropriate error wrapping with source context
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves a specific paper by its source-specific identifier.
	// Returns the paper if found, or an error if not found or on failure.
	// The id format is source-specific (e.g., DOI, Semantic Scholar ID).
	//
	// Returns domain.ErrNotFound if the paper does not exist.
	GetByID(ctx context.Context, id string) (*domain.Paper, error)

	// SourceType returns the type identifier for this paper source.
	// Used for attribution, deduplication, and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this paper source.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this paper source is currently enabled
	// and available for searches. A source may be disabled due to
	// configuration, missing API keys, or temporary outages.
	IsEnabled() bool
}

// IdentifierKind classifies the shape of a paper identifier, since each
// source accepts different identifier forms.
type IdentifierKind string

const (
	IdentifierDOI             IdentifierKind = "doi"
	IdentifierArXiv           IdentifierKind = "arxiv"
	IdentifierPubMed          IdentifierKind = "pubmed"
	IdentifierSemanticScholar IdentifierKind = "s2"
	IdentifierTitle           IdentifierKind = "title"
)

// Identifier is a classified paper identifier handed to full-text fetchers.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// FullTextResult is what a full-text fetch attempt yields. Any subset of the
// fields may be populated; a result with neither PDFURL nor Text is useless
// for direct retrieval but its auxiliary signals still feed virtual full-text
// synthesis.
type FullTextResult struct {
	// PDFURL is a direct link to the paper's PDF, if the source exposes one.
	PDFURL string

	// Text is the paper's body text, if the source serves it inline.
	Text string

	// Abstract and TLDR are metadata-level summaries of the paper.
	Abstract string
	TLDR     string

	// CitationContexts are snippets of how other papers describe this one.
	CitationContexts []string

	// RelatedTitles are titles of papers the source considers related.
	RelatedTitles []string

	// ReferenceTitles are titles of papers this one cites.
	ReferenceTitles []string

	// CitationCount is the source-reported citation count, when known.
	CitationCount int
}

// HasContent returns true if the result carries directly usable full text.
func (r *FullTextResult) HasContent() bool {
	return r != nil && (r.PDFURL != "" || r.Text != "")
}

// FullTextFetcher is the capability interface for waterfall retrieval.
// Every client is treated identically regardless of backing provider.
type FullTextFetcher interface {
	// FetchByIdentifier attempts to locate full text for the identified
	// paper. Returns domain.ErrNotFound when the source has no record, and
	// domain.ErrNoIdentifier when it cannot handle the identifier kind;
	// both cause the waterfall to move on without retrying.
	FetchByIdentifier(ctx context.Context, id Identifier) (*FullTextResult, error)

	// SourceType identifies the backing provider for attribution.
	SourceType() domain.SourceType
}
