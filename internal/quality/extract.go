package quality

import (
	"regexp"
	"strconv"
)

// maxSaneSampleSize guards against picking up years, IDs and other large
// numbers that are clearly not enrollment counts.
const maxSaneSampleSize = 1000000

var sampleSizePatterns = compileAll(
	`n\s*=\s*(\d+)`,
	`(\d+)\s*participants`,
	`(\d+)\s*patients`,
	`(\d+)\s*subjects`,
	`sample\s+(?:size|of)\s*(?:was|:)?\s*(\d+)`,
	`enrolled\s+(\d+)`,
	`included\s+(\d+)`,
	`(\d+)\s*(?:were|was)\s+(?:enrolled|included|recruited)`,
)

// extractSampleSize finds the largest sane enrollment count in the text
// and maps it to a tiered score with diminishing returns.
func extractSampleSize(text string) (int, float64) {
	maxSize := 0
	for _, pattern := range sampleSizePatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			size, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if size > maxSize && size < maxSaneSampleSize {
				maxSize = size
			}
		}
	}

	switch {
	case maxSize == 0:
		return 0, 0.0
	case maxSize < 30:
		return maxSize, 0.3
	case maxSize < 100:
		return maxSize, 0.5
	case maxSize < 500:
		return maxSize, 0.7
	case maxSize < 1000:
		return maxSize, 0.85
	default:
		return maxSize, 1.0
	}
}

var controlPatterns = compileAll(
	`control\s+group`,
	`comparison\s+group`,
	`placebo`,
	`compared\s+(?:to|with)`,
	`versus`,
	`\bvs\b`,
	`arm\s*(?:1|2|a|b)`,
	`intervention\s+(?:and|vs)\s+control`,
)

// detectControlGroup reports whether the text mentions a comparison arm.
func detectControlGroup(text string) (bool, float64) {
	for _, pattern := range controlPatterns {
		if pattern.MatchString(text) {
			return true, 1.0
		}
	}
	return false, 0.0
}

var (
	strongRandomPatterns = compileAll(
		`computer-generated\s+random`,
		`random\s+number\s+generator`,
		`sealed\s+envelope`,
		`stratified\s+random`,
		`block\s+random`,
		`permuted\s+block`,
	)
	basicRandomPatterns = compileAll(
		`randomly\s+(?:assigned|allocated|selected)`,
		`random\s+(?:assignment|allocation|selection)`,
		`randomi[sz]ation`,
		`randomi[sz]ed`,
	)
)

// detectRandomization distinguishes a described randomization procedure
// from a bare mention of "randomized".
func detectRandomization(text string) (bool, float64) {
	for _, pattern := range strongRandomPatterns {
		if pattern.MatchString(text) {
			return true, 1.0
		}
	}
	for _, pattern := range basicRandomPatterns {
		if pattern.MatchString(text) {
			return true, 0.6
		}
	}
	return false, 0.0
}

// blindingLevel pairs a blinding vocabulary entry with its score.
type blindingLevel struct {
	name    string
	score   float64
	pattern *regexp.Regexp
}

var blindingLevels = []blindingLevel{
	{"double_blind", 1.0, regexp.MustCompile(`double[- ]blind`)},
	{"triple_blind", 1.0, regexp.MustCompile(`triple[- ]blind`)},
	{"assessor_blind", 0.8, regexp.MustCompile(`(?:assessor|evaluator|outcome)[- ]blind`)},
	{"single_blind", 0.7, regexp.MustCompile(`single[- ]blind`)},
	{"participant_blind", 0.6, regexp.MustCompile(`participant[- ]blind`)},
	{"open_label", 0.2, regexp.MustCompile(`open[- ]label`)},
}

var noBlindPattern = regexp.MustCompile(`(?:not|non)[- ]blind`)

// BlindingUnclear is reported when the text says nothing about blinding.
const BlindingUnclear = "unclear"

// detectBlinding classifies the blinding level described in the text.
func detectBlinding(text string) (string, float64) {
	for _, level := range blindingLevels {
		if level.pattern.MatchString(text) {
			return level.name, level.score
		}
	}
	if noBlindPattern.MatchString(text) {
		return "none", 0.0
	}
	return BlindingUnclear, 0.1
}

// statMethod pairs a recognized statistical method with its pattern.
type statMethod struct {
	name    string
	pattern *regexp.Regexp
}

var statMethods = []statMethod{
	{"regression", regexp.MustCompile(`(?:linear|logistic|cox|poisson)\s+regression`)},
	{"anova", regexp.MustCompile(`\banova\b|analysis\s+of\s+variance`)},
	{"t_test", regexp.MustCompile(`t-test|student'?s?\s+t`)},
	{"chi_square", regexp.MustCompile(`chi-?square|χ²`)},
	{"mann_whitney", regexp.MustCompile(`mann-?whitney|wilcoxon`)},
	{"survival", regexp.MustCompile(`kaplan-?meier|survival\s+analysis`)},
	{"multivariate", regexp.MustCompile(`multivariate|multivariable`)},
	{"intention_to_treat", regexp.MustCompile(`intention[- ]to[- ]treat|\bitt\b`)},
	{"per_protocol", regexp.MustCompile(`per[- ]protocol`)},
	{"power_analysis", regexp.MustCompile(`power\s+(?:analysis|calculation)`)},
}

// detectStatisticalMethods counts recognized method names and scores the
// statistical richness on a 0/1/2/3+ ladder.
func detectStatisticalMethods(text string) ([]string, float64) {
	var found []string
	for _, method := range statMethods {
		if method.pattern.MatchString(text) {
			found = append(found, method.name)
		}
	}

	switch len(found) {
	case 0:
		return nil, 0.2
	case 1:
		return found, 0.5
	case 2:
		return found, 0.7
	default:
		return found, 1.0
	}
}

var ciPatterns = compileAll(
	`confidence\s+interval`,
	`\bci\b`,
	`\d+%\s*ci`,
	`\[\d+\.?\d*\s*[-–]\s*\d+\.?\d*\]`,
)

// detectConfidenceIntervals reports whether the text reports CIs.
func detectConfidenceIntervals(text string) (bool, float64) {
	for _, pattern := range ciPatterns {
		if pattern.MatchString(text) {
			return true, 1.0
		}
	}
	return false, 0.0
}
