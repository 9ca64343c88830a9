package acquisition

// retrievalQualityScore blends retrieval confidence, citation impact and
// content completeness into a 0-1 signal for prioritizing downstream
// review. It is distinct from the methodological quality score.
func retrievalQualityScore(r *Result, s virtualSignals) float64 {
	score := r.Confidence * 0.4

	if s.citationCount > 0 {
		impact := float64(s.citationCount) / 100
		if impact > 1 {
			impact = 1
		}
		score += impact * 0.2
	}

	if s.abstract != "" {
		score += 0.1
	}
	if s.tldr != "" {
		score += 0.05
	}
	switch n := len(s.citationContexts); {
	case n > 5:
		score += 0.1
	case n > 0:
		score += 0.05
	}

	if r.PDFURL != "" {
		score += 0.15
	}

	if score > 1 {
		score = 1
	}
	return score
}
