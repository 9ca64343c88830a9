package acquisition

import (
	"fmt"
	"strings"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

const (
	maxVirtualContexts   = 12
	maxVirtualRelated    = 5
	maxVirtualReferences = 8

	virtualBaseConfidence = 0.5
	virtualMaxConfidence  = 0.85
)

// virtualSignals accumulates externally visible evidence about a paper
// gathered during the waterfall, used to synthesize a substitute document
// when no source yields real full text.
type virtualSignals struct {
	tldr             string
	abstract         string
	citationContexts []string
	relatedTitles    []string
	referenceTitles  []string
	citationCount    int
}

// merge folds a fetch result's auxiliary fields into the accumulated
// signals, keeping the first non-empty value of each.
func (s *virtualSignals) merge(res *papersources.FullTextResult) {
	if res == nil {
		return
	}
	if s.tldr == "" {
		s.tldr = res.TLDR
	}
	if s.abstract == "" {
		s.abstract = res.Abstract
	}
	if len(s.citationContexts) == 0 {
		s.citationContexts = res.CitationContexts
	}
	if len(s.relatedTitles) == 0 {
		s.relatedTitles = res.RelatedTitles
	}
	if len(s.referenceTitles) == 0 {
		s.referenceTitles = res.ReferenceTitles
	}
	if res.CitationCount > s.citationCount {
		s.citationCount = res.CitationCount
	}
}

// mergePaper fills signal gaps from the paper's own metadata.
func (s *virtualSignals) mergePaper(paper *domain.Paper) {
	if s.tldr == "" {
		s.tldr = paper.TLDR
	}
	if s.abstract == "" {
		s.abstract = paper.Abstract
	}
	if paper.CitationCount > s.citationCount {
		s.citationCount = paper.CitationCount
	}
}

// synthesizeVirtual builds a virtual full-text document from the gathered
// signals: one-line summary, abstract, citation-context snippets, related
// titles, key reference titles. Returns the document and a confidence that
// grows with signal richness but never reaches direct-retrieval levels.
// An empty document means there was nothing to synthesize from.
func synthesizeVirtual(s virtualSignals) (string, float64) {
	var sections []string

	if s.tldr != "" {
		sections = append(sections, "## TL;DR\n"+s.tldr)
	}

	if s.abstract != "" {
		sections = append(sections, "## ABSTRACT\n"+s.abstract)
	}

	contexts := s.citationContexts
	if len(contexts) > maxVirtualContexts {
		contexts = contexts[:maxVirtualContexts]
	}
	if len(contexts) > 0 {
		var b strings.Builder
		b.WriteString("## CITATION CONTEXTS (how others describe this work)")
		for i, ctx := range contexts {
			fmt.Fprintf(&b, "\n%d. %q", i+1, ctx)
		}
		sections = append(sections, b.String())
	}

	related := s.relatedTitles
	if len(related) > maxVirtualRelated {
		related = related[:maxVirtualRelated]
	}
	if len(related) > 0 {
		sections = append(sections, "## RELATED PAPERS\n- "+strings.Join(related, "\n- "))
	}

	refs := s.referenceTitles
	if len(refs) > maxVirtualReferences {
		refs = refs[:maxVirtualReferences]
	}
	if len(refs) > 0 {
		sections = append(sections, "## KEY REFERENCES\n- "+strings.Join(refs, "\n- "))
	}

	if len(sections) == 0 {
		return "", 0
	}

	confidence := virtualBaseConfidence
	if s.abstract != "" {
		confidence += 0.1
	}
	if s.tldr != "" {
		confidence += 0.1
	}
	if n := len(s.citationContexts); n > 0 {
		confidence += min(0.2, float64(n)*0.02)
	}
	if len(s.relatedTitles) > 0 {
		confidence += 0.1
	}
	if confidence > virtualMaxConfidence {
		confidence = virtualMaxConfidence
	}

	return strings.Join(sections, "\n\n"), confidence
}
