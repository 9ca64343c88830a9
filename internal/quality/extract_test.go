package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectStudyDesign(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantDesign string
		wantScore  float64
	}{
		{"systematic review", "a systematic review of telehealth trials", "systematic_review", 1.0},
		{"review wins over meta-analysis", "a systematic review and meta-analysis of trials", "systematic_review", 1.0},
		{"meta-analysis", "we performed a meta-analysis of 20 studies", "meta_analysis", 1.0},
		{"rct spelled out", "a randomized controlled trial of drug x", "rct", 0.95},
		{"rct british spelling", "a randomised controlled trial", "rct", 0.95},
		{"rct abbreviation", "this rct compared two arms", "rct", 0.95},
		{"controlled trial", "a quasi-experiment evaluating the program", "controlled_trial", 0.85},
		{"cohort", "a prospective cohort of nurses", "cohort", 0.75},
		{"qualitative", "a qualitative study using thematic analysis", "qualitative", 0.70},
		{"case-control", "a case-control study of risk factors", "case_control", 0.65},
		{"cross-sectional", "a cross-sectional prevalence study", "cross_sectional", 0.55},
		{"case report", "a case report of a rare presentation", "case_report", 0.30},
		{"unclear", "some observations about things", DesignUnclear, 0.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			design, score := detectStudyDesign(tt.text)
			assert.Equal(t, tt.wantDesign, design)
			assert.InDelta(t, tt.wantScore, score, 1e-9)
		})
	}
}

func TestExtractSampleSize(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantSize  int
		wantScore float64
	}{
		{"none", "no numbers here", 0, 0.0},
		{"tiny", "n=12 participants completed", 12, 0.3},
		{"small", "we enrolled 45 patients", 45, 0.5},
		{"medium", "250 subjects were recruited", 250, 0.7},
		{"large", "n = 750", 750, 0.85},
		{"very large", "a registry of 15000 patients", 15000, 1.0},
		{"picks the largest", "n=30 in the pilot and 400 participants in the main study", 400, 0.7},
		{"ignores insane numbers", "record id 12345678, n=50", 50, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, score := extractSampleSize(tt.text)
			assert.Equal(t, tt.wantSize, size)
			assert.InDelta(t, tt.wantScore, score, 1e-9)
		})
	}
}

func TestDetectRandomization(t *testing.T) {
	t.Run("described procedure scores full", func(t *testing.T) {
		for _, text := range []string{
			"computer-generated random sequence",
			"allocation by sealed envelope",
			"permuted block design",
		} {
			found, score := detectRandomization(text)
			assert.True(t, found, text)
			assert.Equal(t, 1.0, score, text)
		}
	})

	t.Run("bare mention scores less", func(t *testing.T) {
		found, score := detectRandomization("patients were randomized to two groups")
		assert.True(t, found)
		assert.InDelta(t, 0.6, score, 1e-9)
	})

	t.Run("absent", func(t *testing.T) {
		found, score := detectRandomization("patients were assigned by clinic day")
		assert.False(t, found)
		assert.Zero(t, score)
	})
}

func TestDetectBlinding(t *testing.T) {
	tests := []struct {
		text      string
		wantLevel string
		wantScore float64
	}{
		{"a double-blind placebo trial", "double_blind", 1.0},
		{"assessor-blind outcome evaluation", "assessor_blind", 0.8},
		{"a single-blind design", "single_blind", 0.7},
		{"an open-label extension", "open_label", 0.2},
		{"this was a non-blind study", "none", 0.0},
		{"no mention of masking", BlindingUnclear, 0.1},
	}

	for _, tt := range tests {
		level, score := detectBlinding(tt.text)
		assert.Equal(t, tt.wantLevel, level, tt.text)
		assert.InDelta(t, tt.wantScore, score, 1e-9, tt.text)
	}
}

func TestDetectStatisticalMethods(t *testing.T) {
	t.Run("richness ladder", func(t *testing.T) {
		_, none := detectStatisticalMethods("we describe our impressions")
		one, oneScore := detectStatisticalMethods("logistic regression was used")
		two, twoScore := detectStatisticalMethods("logistic regression and kaplan-meier curves")
		many, manyScore := detectStatisticalMethods("logistic regression, anova, chi-square and intention-to-treat analysis")

		assert.InDelta(t, 0.2, none, 1e-9)
		assert.Len(t, one, 1)
		assert.InDelta(t, 0.5, oneScore, 1e-9)
		assert.Len(t, two, 2)
		assert.InDelta(t, 0.7, twoScore, 1e-9)
		assert.Len(t, many, 4)
		assert.InDelta(t, 1.0, manyScore, 1e-9)
	})
}

func TestDetectConfidenceIntervals(t *testing.T) {
	found, score := detectConfidenceIntervals("or 1.4 (95% ci 1.1-1.8)")
	assert.True(t, found)
	assert.Equal(t, 1.0, score)

	found, score = detectConfidenceIntervals("a confidence interval was computed")
	assert.True(t, found)
	assert.Equal(t, 1.0, score)

	found, score = detectConfidenceIntervals("no interval statistics reported")
	assert.False(t, found)
	assert.Zero(t, score)
}
