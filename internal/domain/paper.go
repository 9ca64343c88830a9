// Package domain contains the core types that flow through the review
// pipeline: papers, screening and acquisition outcomes, quality assessments,
// and the PRISMA accounting attached to every run.
package domain

import (
	"strings"
	"time"
)

// PaperIdentifiers holds all possible identifiers for an academic paper.
type PaperIdentifiers struct {
	DOI               string
	ArXivID           string
	PubMedID          string
	PMCID             string
	SemanticScholarID string
	OpenAlexID        string
}

// GenerateCanonicalID generates a canonical identifier from paper identifiers.
// Priority order: DOI > ArXiv > PubMed > SemanticScholar > OpenAlex.
// Returns empty string if no identifiers are available.
func GenerateCanonicalID(ids PaperIdentifiers) string {
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		// Normalize DOI to lowercase
		return "doi:" + strings.ToLower(doi)
	}

	if arxiv := strings.TrimSpace(ids.ArXivID); arxiv != "" {
		return "arxiv:" + arxiv
	}

	if pubmed := strings.TrimSpace(ids.PubMedID); pubmed != "" {
		return "pubmed:" + pubmed
	}

	if s2 := strings.TrimSpace(ids.SemanticScholarID); s2 != "" {
		return "s2:" + s2
	}

	if oa := strings.TrimSpace(ids.OpenAlexID); oa != "" {
		return "openalex:" + oa
	}

	return ""
}

// Author represents a paper author with optional affiliation and ORCID.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	if a.ORCID != "" {
		sb.WriteString(" [")
		sb.WriteString(a.ORCID)
		sb.WriteString("]")
	}

	return sb.String()
}

// ScreeningStatus is the relevance decision for a paper.
type ScreeningStatus string

// Screening statuses.
const (
	ScreeningPending   ScreeningStatus = "pending"
	ScreeningInclude   ScreeningStatus = "include"
	ScreeningExclude   ScreeningStatus = "exclude"
	ScreeningUncertain ScreeningStatus = "uncertain"
)

// IsDecided returns true once the paper has left the pending state.
func (s ScreeningStatus) IsDecided() bool {
	return s == ScreeningInclude || s == ScreeningExclude || s == ScreeningUncertain
}

// ScreeningPhase identifies which cascade stage produced a decision.
type ScreeningPhase string

// Screening cascade phases, cheapest first.
const (
	PhaseRuleBased   ScreeningPhase = "rule_based"
	PhaseSemantic    ScreeningPhase = "semantic"
	PhaseLLM         ScreeningPhase = "llm"
	PhaseHumanReview ScreeningPhase = "human_review"
)

// SourceType identifies an external paper source API.
type SourceType string

const (
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeUnpaywall       SourceType = "unpaywall"
	SourceTypeCORE            SourceType = "core"
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypePubMed          SourceType = "pubmed"
)

// FullTextSource identifies where a paper's full text came from.
type FullTextSource string

// Full-text provenance values. SourceVirtual marks text synthesized from
// metadata and citation contexts rather than retrieved from a provider.
const (
	SourceNone            FullTextSource = "none"
	SourceSemanticScholar FullTextSource = "semantic_scholar"
	SourceUnpaywall       FullTextSource = "unpaywall"
	SourceCORE            FullTextSource = "core"
	SourceArXiv           FullTextSource = "arxiv"
	SourceVirtual         FullTextSource = "virtual"
)

// FullTextSourceFor converts a source API identifier into full-text
// provenance. Source and provenance values deliberately share spellings.
func FullTextSourceFor(st SourceType) FullTextSource {
	return FullTextSource(st)
}

// QualityCategory buckets a methodological quality score.
type QualityCategory string

// Quality categories, thresholds 80/60/40.
const (
	QualityHigh     QualityCategory = "high"
	QualityModerate QualityCategory = "moderate"
	QualityLow      QualityCategory = "low"
	QualityCritical QualityCategory = "critical"
)

// Paper represents one bibliographic record flowing through the pipeline.
// Screening, acquisition, and quality fields are filled in by the
// corresponding phase and left zero-valued before it runs.
type Paper struct {
	Identifiers PaperIdentifiers
	CanonicalID string

	Title           string
	Abstract        string
	TLDR            string
	Authors         []Author
	PublicationDate *time.Time
	PublicationYear int
	Venue           string
	Journal         string
	DocumentType    string
	Language        string
	CitationCount   int
	ReferenceCount  int
	OpenAccess      bool

	// Provider-specific extras that have no home on the core record.
	RawMetadata map[string]interface{}

	// Screening outcome.
	ScreeningStatus     ScreeningStatus
	ScreeningConfidence float64
	ScreeningReason     string
	ScreeningPhase      ScreeningPhase

	// Acquisition outcome.
	FullText             string
	FullTextSource       FullTextSource
	RetrievalConfidence  float64
	RetrievalQuality     float64
	PDFURL               string
	IsVirtualFullText    bool
	CitationContexts     []string
	RelatedPaperTitles   []string
	ReferencePaperTitles []string

	// Quality outcome.
	QualityScore    float64
	QualityCategory QualityCategory
	RiskFlags       []string
}

// HasIdentifier returns true if the paper has at least one identifier.
func (p *Paper) HasIdentifier() bool {
	return p.CanonicalID != ""
}

// TextBasis describes how much of the paper's text is available for
// pattern-based assessment.
type TextBasis string

// Text bases, richest first.
const (
	BasisFullText     TextBasis = "full_text"
	BasisAbstractOnly TextBasis = "abstract_only"
	BasisMetadataOnly TextBasis = "metadata_only"
)

// Basis reports the richest text available on the paper.
func (p *Paper) Basis() TextBasis {
	switch {
	case p.FullText != "":
		return BasisFullText
	case p.Abstract != "":
		return BasisAbstractOnly
	default:
		return BasisMetadataOnly
	}
}

// AssessableText returns the richest text block available for heuristics:
// full text when acquired, otherwise title plus abstract.
func (p *Paper) AssessableText() string {
	if p.FullText != "" {
		return p.FullText
	}
	if p.Abstract != "" {
		return p.Title + "\n" + p.Abstract
	}
	return p.Title
}
