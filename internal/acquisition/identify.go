package acquisition

import (
	"regexp"
	"strings"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

var (
	doiPattern   = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	arxivPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)
	pmidPattern  = regexp.MustCompile(`^\d{1,8}$`)
	s2Pattern    = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// ClassifyIdentifier determines the shape of a raw identifier string.
// Common URL and namespace prefixes are stripped first, so
// "https://doi.org/10.1/x" and "doi:10.1/x" both classify as a DOI.
// Anything unrecognized is treated as a title.
func ClassifyIdentifier(raw string) papersources.Identifier {
	s := strings.TrimSpace(raw)

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://doi.org/"):
		s = s[len("https://doi.org/"):]
	case strings.HasPrefix(lower, "http://doi.org/"):
		s = s[len("http://doi.org/"):]
	case strings.HasPrefix(lower, "doi:"):
		s = s[len("doi:"):]
	case strings.HasPrefix(lower, "arxiv:"):
		s = s[len("arxiv:"):]
	case strings.HasPrefix(lower, "https://arxiv.org/abs/"):
		s = s[len("https://arxiv.org/abs/"):]
	case strings.HasPrefix(lower, "pmid:"):
		s = s[len("pmid:"):]
	}

	switch {
	case doiPattern.MatchString(s):
		return papersources.Identifier{Kind: papersources.IdentifierDOI, Value: s}
	case arxivPattern.MatchString(s):
		return papersources.Identifier{Kind: papersources.IdentifierArXiv, Value: s}
	case s2Pattern.MatchString(s):
		return papersources.Identifier{Kind: papersources.IdentifierSemanticScholar, Value: s}
	case pmidPattern.MatchString(s):
		return papersources.Identifier{Kind: papersources.IdentifierPubMed, Value: s}
	default:
		return papersources.Identifier{Kind: papersources.IdentifierTitle, Value: s}
	}
}

// identifiersFor builds the ordered list of identifiers to hand to the
// waterfall for a paper: strongest first (DOI), title last. Only identifiers
// the paper actually carries are included.
func identifiersFor(paper *domain.Paper) []papersources.Identifier {
	var ids []papersources.Identifier

	if doi := strings.TrimSpace(paper.Identifiers.DOI); doi != "" {
		ids = append(ids, papersources.Identifier{Kind: papersources.IdentifierDOI, Value: doi})
	}
	if arxivID := strings.TrimSpace(paper.Identifiers.ArXivID); arxivID != "" {
		ids = append(ids, papersources.Identifier{Kind: papersources.IdentifierArXiv, Value: arxivID})
	}
	if pmid := strings.TrimSpace(paper.Identifiers.PubMedID); pmid != "" {
		ids = append(ids, papersources.Identifier{Kind: papersources.IdentifierPubMed, Value: pmid})
	}
	if s2 := strings.TrimSpace(paper.Identifiers.SemanticScholarID); s2 != "" {
		ids = append(ids, papersources.Identifier{Kind: papersources.IdentifierSemanticScholar, Value: s2})
	}
	if title := strings.TrimSpace(paper.Title); title != "" {
		ids = append(ids, papersources.Identifier{Kind: papersources.IdentifierTitle, Value: title})
	}

	return ids
}
