package screening

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/llm"
)

const arbitrationSystem = "You are a systematic literature review screening expert. " +
	"Evaluate whether papers should be included based on the stated criteria. " +
	"Be conservative: if uncertain, answer UNCERTAIN so a human can review."

const arbitrationMaxTokens = 512

var (
	decisionPattern   = regexp.MustCompile(`(?i)DECISION:\s*(INCLUDE|EXCLUDE|UNCERTAIN)`)
	confidencePattern = regexp.MustCompile(`CONFIDENCE:\s*([\d.]+)`)
	reasonPattern     = regexp.MustCompile(`REASON:\s*(.+)`)
)

// arbitrate is phases 3 and 4 of the cascade: ask the LLM to decide a
// borderline paper, then escalate to human review when the model is itself
// uncertain or under the confidence floor. Without a completer configured
// every borderline paper escalates.
func (e *Engine) arbitrate(ctx context.Context, paper *domain.Paper, criteria domain.ScreeningCriteria) Decision {
	if e.completer == nil {
		return Decision{
			Status:     domain.ScreeningUncertain,
			Confidence: 0.5,
			Reason:     "requires human review: no LLM configured for borderline screening",
			Phase:      domain.PhaseHumanReview,
		}
	}

	result, err := e.completer.Complete(ctx, llm.CompletionRequest{
		System:    arbitrationSystem,
		Prompt:    arbitrationPrompt(paper, criteria),
		MaxTokens: arbitrationMaxTokens,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("paper_id", paper.CanonicalID).Msg("llm arbitration failed")
		return Decision{
			Status:     domain.ScreeningUncertain,
			Confidence: 0.5,
			Reason:     "requires human review: llm error: " + err.Error(),
			Phase:      domain.PhaseHumanReview,
		}
	}

	d := parseArbitration(result.Content)
	if d.Status == domain.ScreeningUncertain || d.Confidence < e.cfg.ConfidenceFloor {
		return Decision{
			Status:     domain.ScreeningUncertain,
			Confidence: d.Confidence,
			Reason:     "requires human review: " + d.Reason,
			Phase:      domain.PhaseHumanReview,
		}
	}
	return d
}

// arbitrationPrompt lays out the research question, both criteria lists
// and the paper, and pins the expected response format.
func arbitrationPrompt(paper *domain.Paper, criteria domain.ScreeningCriteria) string {
	var b strings.Builder

	b.WriteString("Evaluate whether this paper should be INCLUDED or EXCLUDED.\n\n")
	fmt.Fprintf(&b, "RESEARCH QUESTION:\n%s\n\n", criteria.ResearchQuestion)

	b.WriteString("INCLUSION CRITERIA:\n")
	for _, c := range criteria.InclusionCriteria {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nEXCLUSION CRITERIA:\n")
	for _, c := range criteria.ExclusionCriteria {
		b.WriteString("- " + c + "\n")
	}

	fmt.Fprintf(&b, "\nPAPER TO SCREEN:\nTitle: %s\nAbstract: %s\n\n", paper.Title, paper.Abstract)

	b.WriteString("Respond in exactly this format:\n")
	b.WriteString("DECISION: [INCLUDE/EXCLUDE/UNCERTAIN]\n")
	b.WriteString("CONFIDENCE: [0.0-1.0]\n")
	b.WriteString("REASON: [Brief explanation]")

	return b.String()
}

// parseArbitration extracts the structured decision from the model's
// response. Unparseable responses come back uncertain.
func parseArbitration(content string) Decision {
	d := Decision{
		Status:     domain.ScreeningUncertain,
		Confidence: 0.5,
		Reason:     "unparseable arbitration response",
		Phase:      domain.PhaseLLM,
	}

	if m := decisionPattern.FindStringSubmatch(content); m != nil {
		switch strings.ToUpper(m[1]) {
		case "INCLUDE":
			d.Status = domain.ScreeningInclude
		case "EXCLUDE":
			d.Status = domain.ScreeningExclude
		default:
			d.Status = domain.ScreeningUncertain
		}
		d.Reason = ""
	}

	if m := confidencePattern.FindStringSubmatch(content); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64); err == nil && v >= 0 && v <= 1 {
			d.Confidence = v
		}
	}

	if m := reasonPattern.FindStringSubmatch(content); m != nil {
		d.Reason = strings.TrimSpace(m[1])
	}

	return d
}
