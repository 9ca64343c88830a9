package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

const (
	// DefaultRecommendationsURL is the base URL for the recommendations API,
	// which lives outside the Graph API namespace.
	DefaultRecommendationsURL = "https://api.semanticscholar.org/recommendations/v1"

	// fullTextFields is the field list requested when fetching a single paper
	// for full-text acquisition.
	fullTextFields = "paperId,externalIds,title,abstract,tldr,citationCount,isOpenAccess,openAccessPdf"

	// citationContextLimit bounds how many citing papers are fetched per paper.
	citationContextLimit = 20

	// referenceLimit bounds how many referenced papers are fetched per paper.
	referenceLimit = 20

	// recommendationLimit bounds how many related papers are fetched per paper.
	recommendationLimit = 10
)

// Compile-time check that Client implements papersources.FullTextFetcher.
var _ papersources.FullTextFetcher = (*Client)(nil)

// FetchByIdentifier retrieves full-text signals for a paper: the open access
// PDF location, abstract, TL;DR summary, citation contexts, related paper
// titles and reference titles. Auxiliary endpoint failures are tolerated as
// long as the paper record itself resolves.
func (c *Client) FetchByIdentifier(ctx context.Context, id papersources.Identifier) (*papersources.FullTextResult, error) {
	paperID, err := c.resolvePaperID(ctx, id)
	if err != nil {
		return nil, err
	}

	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(paperID), fullTextFields)

	var paperResult PaperResult
	if err := c.getJSON(ctx, paperURL, &paperResult); err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("paper", paperID)
		}
		return nil, err
	}

	result := &papersources.FullTextResult{
		Abstract:      paperResult.Abstract,
		CitationCount: paperResult.CitationCount,
	}
	if paperResult.OpenAccessPDF != nil {
		result.PDFURL = paperResult.OpenAccessPDF.URL
	}
	if paperResult.TLDR != nil {
		result.TLDR = paperResult.TLDR.Text
	}

	// The auxiliary endpoints enrich the result but never fail the fetch.
	if contexts, err := c.fetchCitationContexts(ctx, paperResult.PaperID); err == nil {
		result.CitationContexts = contexts
	}
	if titles, err := c.fetchReferenceTitles(ctx, paperResult.PaperID); err == nil {
		result.ReferenceTitles = titles
	}
	if titles, err := c.fetchRelatedTitles(ctx, paperResult.PaperID); err == nil {
		result.RelatedTitles = titles
	}

	return result, nil
}

// resolvePaperID maps an identifier to the Semantic Scholar paper ID form.
// Title-only identifiers are resolved through the title match endpoint.
func (c *Client) resolvePaperID(ctx context.Context, id papersources.Identifier) (string, error) {
	if id.Value == "" {
		return "", domain.ErrNoIdentifier
	}

	switch id.Kind {
	case papersources.IdentifierDOI:
		return "DOI:" + id.Value, nil
	case papersources.IdentifierArXiv:
		return "ARXIV:" + id.Value, nil
	case papersources.IdentifierPubMed:
		return "PMID:" + id.Value, nil
	case papersources.IdentifierSemanticScholar:
		return id.Value, nil
	case papersources.IdentifierTitle:
		return c.matchByTitle(ctx, id.Value)
	default:
		return "", domain.ErrNoIdentifier
	}
}

// matchByTitle resolves a paper ID from a title via the search match endpoint.
func (c *Client) matchByTitle(ctx context.Context, title string) (string, error) {
	matchURL := fmt.Sprintf("%s/paper/search/match?query=%s&fields=paperId,title", c.config.BaseURL, url.QueryEscape(title))

	var matchResp SearchResponse
	if err := c.getJSON(ctx, matchURL, &matchResp); err != nil {
		if isNotFound(err) {
			return "", domain.NewNotFoundError("paper", title)
		}
		return "", err
	}
	if len(matchResp.Data) == 0 || matchResp.Data[0].PaperID == "" {
		return "", domain.NewNotFoundError("paper", title)
	}
	return matchResp.Data[0].PaperID, nil
}

// fetchCitationContexts retrieves the citation context snippets for a paper.
func (c *Client) fetchCitationContexts(ctx context.Context, paperID string) ([]string, error) {
	citationsURL := fmt.Sprintf("%s/paper/%s/citations?fields=contexts&limit=%s",
		c.config.BaseURL, url.PathEscape(paperID), strconv.Itoa(citationContextLimit))

	var citResp CitationsResponse
	if err := c.getJSON(ctx, citationsURL, &citResp); err != nil {
		return nil, err
	}

	var contexts []string
	for _, entry := range citResp.Data {
		contexts = append(contexts, entry.Contexts...)
	}
	return contexts, nil
}

// fetchReferenceTitles retrieves the titles of papers referenced by a paper.
func (c *Client) fetchReferenceTitles(ctx context.Context, paperID string) ([]string, error) {
	referencesURL := fmt.Sprintf("%s/paper/%s/references?fields=title&limit=%s",
		c.config.BaseURL, url.PathEscape(paperID), strconv.Itoa(referenceLimit))

	var refResp ReferencesResponse
	if err := c.getJSON(ctx, referencesURL, &refResp); err != nil {
		return nil, err
	}

	var titles []string
	for _, entry := range refResp.Data {
		if entry.CitedPaper != nil && entry.CitedPaper.Title != "" {
			titles = append(titles, entry.CitedPaper.Title)
		}
	}
	return titles, nil
}

// fetchRelatedTitles retrieves the titles of papers recommended for a paper.
func (c *Client) fetchRelatedTitles(ctx context.Context, paperID string) ([]string, error) {
	recURL := fmt.Sprintf("%s/papers/forpaper/%s?fields=title&limit=%s",
		c.config.RecommendationsURL, url.PathEscape(paperID), strconv.Itoa(recommendationLimit))

	var recResp RecommendationsResponse
	if err := c.getJSON(ctx, recURL, &recResp); err != nil {
		return nil, err
	}

	var titles []string
	for _, stub := range recResp.RecommendedPapers {
		if stub.Title != "" {
			titles = append(titles, stub.Title)
		}
	}
	return titles, nil
}

// getJSON executes a GET request and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, requestURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
