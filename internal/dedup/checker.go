package dedup

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

// Config holds the thresholds for the duplicate checker.
type Config struct {
	// TitleThreshold is the normalized title similarity above which two
	// papers are considered title matches (e.g. 0.90).
	TitleThreshold float64

	// AuthorThreshold is the author overlap above which two title-matched
	// papers are confirmed duplicates (e.g. 0.5).
	AuthorThreshold float64
}

// DefaultConfig returns the default deduplication thresholds.
func DefaultConfig() Config {
	return Config{
		TitleThreshold:  0.90,
		AuthorThreshold: 0.5,
	}
}

// Checker detects duplicate papers across search sources by exact canonical
// identifier match and fuzzy title comparison with author confirmation.
type Checker struct {
	cfg Config
}

// NewChecker creates a Checker with the given configuration. Zero thresholds
// fall back to the defaults.
func NewChecker(cfg Config) *Checker {
	def := DefaultConfig()
	if cfg.TitleThreshold == 0 {
		cfg.TitleThreshold = def.TitleThreshold
	}
	if cfg.AuthorThreshold == 0 {
		cfg.AuthorThreshold = def.AuthorThreshold
	}
	return &Checker{cfg: cfg}
}

// Deduplicate returns the unique papers from the input in their original
// order, plus the number of duplicates removed. When a duplicate is found,
// metadata missing from the kept paper is merged in from the discarded one,
// so a richer record from a second source still contributes.
func (c *Checker) Deduplicate(papers []*domain.Paper) ([]*domain.Paper, int) {
	unique := make([]*domain.Paper, 0, len(papers))
	byCanonical := make(map[string]*domain.Paper, len(papers))
	removed := 0

	for _, paper := range papers {
		if paper == nil {
			continue
		}

		if kept := c.findDuplicate(paper, byCanonical, unique); kept != nil {
			mergeInto(kept, paper)
			removed++
			continue
		}

		unique = append(unique, paper)
		if paper.CanonicalID != "" {
			byCanonical[paper.CanonicalID] = paper
		}
	}

	return unique, removed
}

// IsDuplicate reports whether two papers refer to the same work.
func (c *Checker) IsDuplicate(a, b *domain.Paper) bool {
	if a == nil || b == nil {
		return false
	}
	if a.CanonicalID != "" && a.CanonicalID == b.CanonicalID {
		return true
	}

	sim := TitleSimilarity(a.Title, b.Title)
	if sim < c.cfg.TitleThreshold {
		return false
	}

	// Title matches alone are unreliable for short or generic titles;
	// require author confirmation when both sides have authors.
	if len(a.Authors) > 0 && len(b.Authors) > 0 {
		return AuthorOverlap(a.Authors, b.Authors) >= c.cfg.AuthorThreshold
	}
	return true
}

// findDuplicate locates an already-kept paper that duplicates the candidate.
func (c *Checker) findDuplicate(paper *domain.Paper, byCanonical map[string]*domain.Paper, kept []*domain.Paper) *domain.Paper {
	if paper.CanonicalID != "" {
		if match, ok := byCanonical[paper.CanonicalID]; ok {
			return match
		}
	}

	for _, existing := range kept {
		if c.IsDuplicate(existing, paper) {
			return existing
		}
	}
	return nil
}

// TitleSimilarity computes a normalized similarity between two titles using
// edit distance over the normalized forms. Returns 1.0 for identical titles
// and 0.0 when either title is empty.
func TitleSimilarity(a, b string) float64 {
	na := NormalizeTitle(a)
	nb := NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return 1.0 - float64(dist)/float64(longest)
}

// NormalizeTitle lowercases a title and strips everything except letters,
// digits, and single spaces, so punctuation and casing differences between
// sources do not defeat the comparison.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false

	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

// mergeInto copies metadata from a discarded duplicate into the kept paper
// where the kept paper is missing it.
func mergeInto(kept, dup *domain.Paper) {
	if kept.Abstract == "" {
		kept.Abstract = dup.Abstract
	}
	if kept.TLDR == "" {
		kept.TLDR = dup.TLDR
	}
	if kept.PDFURL == "" {
		kept.PDFURL = dup.PDFURL
	}
	if kept.Journal == "" {
		kept.Journal = dup.Journal
	}
	if kept.Venue == "" {
		kept.Venue = dup.Venue
	}
	if kept.DocumentType == "" {
		kept.DocumentType = dup.DocumentType
	}
	if len(kept.Authors) == 0 {
		kept.Authors = dup.Authors
	}
	if kept.PublicationDate == nil {
		kept.PublicationDate = dup.PublicationDate
	}
	if kept.PublicationYear == 0 {
		kept.PublicationYear = dup.PublicationYear
	}
	if kept.CitationCount < dup.CitationCount {
		kept.CitationCount = dup.CitationCount
	}
	if !kept.OpenAccess && dup.OpenAccess {
		kept.OpenAccess = true
	}

	if kept.Identifiers.DOI == "" {
		kept.Identifiers.DOI = dup.Identifiers.DOI
	}
	if kept.Identifiers.ArXivID == "" {
		kept.Identifiers.ArXivID = dup.Identifiers.ArXivID
	}
	if kept.Identifiers.PubMedID == "" {
		kept.Identifiers.PubMedID = dup.Identifiers.PubMedID
	}
	if kept.Identifiers.SemanticScholarID == "" {
		kept.Identifiers.SemanticScholarID = dup.Identifiers.SemanticScholarID
	}
	if kept.Identifiers.OpenAlexID == "" {
		kept.Identifiers.OpenAlexID = dup.Identifiers.OpenAlexID
	}
}
