package screening

import (
	"regexp"
	"strings"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

// excludedDocTypes are document-type fragments that disqualify a paper
// regardless of topic. Matched as lowercase substrings so provider
// vocabularies like "LettersAndComments" and "Letter to Editor" both hit.
var excludedDocTypes = []string{
	"editorial",
	"letter",
	"comment",
	"erratum",
	"corrigendum",
	"retraction",
	"book review",
	"news",
}

// excludedTitlePatterns catch replies, corrections and retractions that
// masquerade as research articles.
var excludedTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^re:\s`),
	regexp.MustCompile(`(?i)^comment\s+on`),
	regexp.MustCompile(`(?i)^response\s+to`),
	regexp.MustCompile(`(?i)^erratum`),
	regexp.MustCompile(`(?i)^correction`),
	regexp.MustCompile(`(?i)^retracted`),
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// ruleFilter is phase 1 of the cascade. It only ever excludes; a pass means
// the paper moves on to semantic screening.
func (e *Engine) ruleFilter(paper *domain.Paper, criteria domain.ScreeningCriteria) (Decision, bool) {
	docType := strings.ToLower(paper.DocumentType)
	for _, excluded := range excludedDocTypes {
		if strings.Contains(docType, excluded) {
			return Decision{
				Status:     domain.ScreeningExclude,
				Confidence: 1.0,
				Reason:     "excluded document type: " + paper.DocumentType,
				Phase:      domain.PhaseRuleBased,
			}, true
		}
	}

	for _, pattern := range excludedTitlePatterns {
		if pattern.MatchString(paper.Title) {
			return Decision{
				Status:     domain.ScreeningExclude,
				Confidence: 1.0,
				Reason:     "excluded title pattern: " + pattern.String(),
				Phase:      domain.PhaseRuleBased,
			}, true
		}
	}

	if want := strings.ToLower(strings.TrimSpace(criteria.Language)); want != "" {
		if got := strings.ToLower(strings.TrimSpace(paper.Language)); got != "" && got != want {
			return Decision{
				Status:     domain.ScreeningExclude,
				Confidence: 1.0,
				Reason:     "language mismatch: " + paper.Language,
				Phase:      domain.PhaseRuleBased,
			}, true
		}
	}

	combined := strings.ToLower(paper.Title + " " + paper.Abstract)
	for _, criterion := range criteria.ExclusionCriteria {
		lower := strings.ToLower(criterion)
		if !strings.HasPrefix(lower, "exclude") && !strings.HasPrefix(lower, "not") {
			continue
		}
		for _, keyword := range wordPattern.FindAllString(lower, -1) {
			if len(keyword) > 3 && strings.Contains(combined, keyword) {
				return Decision{
					Status:     domain.ScreeningExclude,
					Confidence: 1.0,
					Reason:     "matches exclusion criterion: " + criterion,
					Phase:      domain.PhaseRuleBased,
				}, true
			}
		}
	}

	return Decision{}, false
}
