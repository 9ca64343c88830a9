// Package quality implements automated methodological appraisal of papers.
//
// Assessment is pattern-based: study design, sample size, control group,
// randomization, blinding, statistical methods and confidence-interval
// reporting are extracted from whatever text the paper carries, combined
// under fixed criterion weights into a 0-100 score, and bucketed into a
// synthesis category. Risk flags are independent observations surfaced for
// the reviewer; they never move the score.
package quality

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

// Criterion names, used as keys in Assessment.CriterionScores.
const (
	CriterionDesign        = "study_design"
	CriterionSampleSize    = "sample_size"
	CriterionControl       = "control_group"
	CriterionRandomization = "randomization"
	CriterionBlinding      = "blinding"
	CriterionStatistics    = "statistical_methods"
	CriterionCI            = "confidence_intervals"
)

// criterionWeights sum to 1.0.
var criterionWeights = map[string]float64{
	CriterionDesign:        0.25,
	CriterionSampleSize:    0.20,
	CriterionControl:       0.15,
	CriterionRandomization: 0.15,
	CriterionBlinding:      0.10,
	CriterionStatistics:    0.10,
	CriterionCI:            0.05,
}

// Risk flags surfaced alongside the score.
const (
	FlagUnclearDesign    = "UNCLEAR_DESIGN"
	FlagSmallSample      = "SMALL_SAMPLE"
	FlagNoControlGroup   = "NO_CONTROL_GROUP"
	FlagRandomizationGap = "RANDOMIZATION_NOT_DESCRIBED"
	FlagNoBlinding       = "NO_BLINDING"
	FlagNoCIReported     = "NO_CI_REPORTED"
)

// smallSampleCutoff is the enrollment below which SMALL_SAMPLE is flagged.
const smallSampleCutoff = 30

// basisConfidence degrades assessment confidence with thinner text.
var basisConfidence = map[domain.TextBasis]float64{
	domain.BasisFullText:     1.0,
	domain.BasisAbstractOnly: 0.8,
	domain.BasisMetadataOnly: 0.5,
}

// Assessment is the complete appraisal of one paper.
type Assessment struct {
	// Score is the weighted total on a 0-100 scale, rounded to 2 places.
	Score float64

	// Category buckets the score for synthesis decisions.
	Category domain.QualityCategory

	// CriterionScores are the per-criterion scores in [0,1].
	CriterionScores map[string]float64

	// RiskFlags are independent methodological concerns.
	RiskFlags []string

	// Confidence reflects how much text the assessment had to work with,
	// scaled by the paper's retrieval confidence.
	Confidence float64

	// Basis records which text tier was assessed.
	Basis domain.TextBasis

	// Design is the detected study design name.
	Design string

	// SampleSize is the extracted enrollment count, 0 when none found.
	SampleSize int

	// StatisticalMethods lists the recognized method names.
	StatisticalMethods []string
}

// Engine assesses papers. It is stateless and safe for concurrent use.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a quality engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "quality").Logger()}
}

// Assess appraises one paper from its available text and writes the score,
// category and risk flags back onto it.
func (e *Engine) Assess(paper *domain.Paper) Assessment {
	basis := paper.Basis()
	text := assessableText(paper)

	design, designScore := detectStudyDesign(text)
	sampleSize, sampleScore := extractSampleSize(text)
	hasControl, controlScore := detectControlGroup(text)
	hasRandom, randomScore := detectRandomization(text)
	blinding, blindScore := detectBlinding(text)
	methods, statScore := detectStatisticalMethods(text)
	hasCI, ciScore := detectConfidenceIntervals(text)

	scores := map[string]float64{
		CriterionDesign:        designScore,
		CriterionSampleSize:    sampleScore,
		CriterionControl:       controlScore,
		CriterionRandomization: randomScore,
		CriterionBlinding:      blindScore,
		CriterionStatistics:    statScore,
		CriterionCI:            ciScore,
	}

	total := 0.0
	for name, weight := range criterionWeights {
		total += scores[name] * weight
	}
	score := math.Round(total*100*100) / 100

	var flags []string
	if design == DesignUnclear {
		flags = append(flags, FlagUnclearDesign)
	}
	if sampleSize > 0 && sampleSize < smallSampleCutoff {
		flags = append(flags, FlagSmallSample)
	}
	if !hasControl {
		flags = append(flags, FlagNoControlGroup)
	}
	if !hasRandom && (design == "rct" || design == "cluster_rct") {
		flags = append(flags, FlagRandomizationGap)
	}
	if blinding == "none" || blinding == BlindingUnclear {
		flags = append(flags, FlagNoBlinding)
	}
	if !hasCI {
		flags = append(flags, FlagNoCIReported)
	}

	retrieval := paper.RetrievalConfidence
	if retrieval == 0 {
		retrieval = 1.0
	}

	assessment := Assessment{
		Score:              score,
		Category:           categoryFor(score),
		CriterionScores:    scores,
		RiskFlags:          flags,
		Confidence:         retrieval * basisConfidence[basis],
		Basis:              basis,
		Design:             design,
		SampleSize:         sampleSize,
		StatisticalMethods: methods,
	}

	paper.QualityScore = assessment.Score
	paper.QualityCategory = assessment.Category
	paper.RiskFlags = assessment.RiskFlags

	return assessment
}

// AssessBatch appraises a slice of papers in order.
func (e *Engine) AssessBatch(papers []*domain.Paper) []Assessment {
	assessments := make([]Assessment, len(papers))
	for i, paper := range papers {
		assessments[i] = e.Assess(paper)
	}

	e.logger.Info().Int("assessed", len(papers)).Msg("quality assessment complete")
	return assessments
}

// categoryFor buckets a 0-100 score. Boundaries are inclusive: exactly 80
// is high, exactly 60 moderate, exactly 40 low.
func categoryFor(score float64) domain.QualityCategory {
	switch {
	case score >= 80:
		return domain.QualityHigh
	case score >= 60:
		return domain.QualityModerate
	case score >= 40:
		return domain.QualityLow
	default:
		return domain.QualityCritical
	}
}

// assessableText combines the paper's richest available text, lowercased
// for the pattern extractors.
func assessableText(paper *domain.Paper) string {
	parts := []string{paper.Title}
	if paper.Abstract != "" {
		parts = append(parts, paper.Abstract)
	}
	if paper.FullText != "" {
		parts = append(parts, paper.FullText)
	}
	return strings.ToLower(strings.Join(parts, ". "))
}
