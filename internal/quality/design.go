package quality

import "regexp"

// studyDesign is one entry in the evidence hierarchy: a design name, its
// base score, and the text patterns that identify it.
type studyDesign struct {
	name     string
	score    float64
	patterns []*regexp.Regexp
}

// designHierarchy is ordered by evidence strength; the first design whose
// pattern matches wins. DesignUnclear is the fallback.
var designHierarchy = []studyDesign{
	{
		name:  "systematic_review",
		score: 1.0,
		patterns: compileAll(
			`systematic\s+review`,
			`systematically\s+reviewed`,
		),
	},
	{
		name:  "meta_analysis",
		score: 1.0,
		patterns: compileAll(
			`meta-analysis`,
			`meta\s+analysis`,
			`pooled\s+analysis`,
		),
	},
	{
		name:  "rct",
		score: 0.95,
		patterns: compileAll(
			`randomi[sz]ed\s+controlled\s+trial`,
			`\brct\b`,
			`randomly\s+assigned`,
			`random\s+allocation`,
		),
	},
	{
		name:  "cluster_rct",
		score: 0.90,
		patterns: compileAll(
			`cluster\s+random`,
			`cluster-random`,
		),
	},
	{
		name:  "controlled_trial",
		score: 0.85,
		patterns: compileAll(
			`controlled\s+trial`,
			`quasi-experiment`,
			`non-randomi[sz]ed\s+trial`,
			`pre-post\s+study`,
		),
	},
	{
		name:  "cohort",
		score: 0.75,
		patterns: compileAll(
			`prospective\s+cohort`,
			`retrospective\s+cohort`,
			`cohort\s+study`,
			`followed\s+prospectively`,
		),
	},
	{
		name:  "qualitative",
		score: 0.70,
		patterns: compileAll(
			`qualitative\s+study`,
			`focus\s+groups?`,
			`thematic\s+analysis`,
			`grounded\s+theory`,
			`phenomenolog`,
		),
	},
	{
		name:  "case_control",
		score: 0.65,
		patterns: compileAll(
			`case-control`,
			`case\s+control`,
			`matched\s+controls?`,
		),
	},
	{
		name:  "cross_sectional",
		score: 0.55,
		patterns: compileAll(
			`cross-sectional`,
			`cross\s+sectional`,
			`prevalence\s+study`,
			`survey\s+study`,
		),
	},
	{
		name:  "case_series",
		score: 0.40,
		patterns: compileAll(
			`case\s+series`,
			`consecutive\s+patients`,
		),
	},
	{
		name:  "case_report",
		score: 0.30,
		patterns: compileAll(
			`case\s+report`,
			`single\s+case`,
		),
	},
}

// DesignUnclear is the fallback when no design pattern matches.
const DesignUnclear = "unclear"

const unclearDesignScore = 0.30

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// detectStudyDesign walks the hierarchy and returns the first matching
// design with its base score. Text must already be lowercased.
func detectStudyDesign(text string) (string, float64) {
	for _, design := range designHierarchy {
		for _, pattern := range design.patterns {
			if pattern.MatchString(text) {
				return design.name, design.score
			}
		}
	}
	return DesignUnclear, unclearDesignScore
}
