package screening

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

// similarity is a paper's best match against the inclusion criteria.
type similarity struct {
	score     float64
	criterion string
}

// criterionEmbeddings caches inclusion-criteria embeddings so the fixed
// cost of embedding the criteria is paid once per criteria set, not once
// per batch.
type criterionEmbeddings struct {
	mu      sync.Mutex
	key     string
	vectors [][]float32
}

func newCriterionEmbeddings() *criterionEmbeddings {
	return &criterionEmbeddings{}
}

// similarities computes the best-criterion similarity for each surviving
// paper, keyed by the paper's index. With an embedder configured it makes
// one batch embedding call for all surviving papers plus one (cached) call
// for the criteria; without one it falls back to keyword overlap.
func (e *Engine) similarities(ctx context.Context, papers []*domain.Paper, survivors []int, criteria []string) (map[int]similarity, error) {
	result := make(map[int]similarity, len(survivors))
	if len(survivors) == 0 || len(criteria) == 0 {
		for _, i := range survivors {
			result[i] = similarity{}
		}
		return result, nil
	}

	if e.embedder == nil {
		for _, i := range survivors {
			result[i] = keywordSimilarity(papers[i], criteria)
		}
		return result, nil
	}

	criterionVectors, err := e.criterionVectors(ctx, criteria)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(survivors))
	for n, i := range survivors {
		texts[n] = papers[i].Title + ". " + papers[i].Abstract
	}
	paperVectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding papers: %w", err)
	}
	if len(paperVectors) != len(survivors) {
		return nil, fmt.Errorf("embedding papers: expected %d vectors, got %d", len(survivors), len(paperVectors))
	}

	for n, i := range survivors {
		best := similarity{}
		for c, cv := range criterionVectors {
			if score := cosineSimilarity(paperVectors[n], cv); score > best.score {
				best = similarity{score: score, criterion: criteria[c]}
			}
		}
		result[i] = best
	}
	return result, nil
}

// criterionVectors returns the embeddings for the criteria set, reusing
// the cached vectors when the set has not changed.
func (e *Engine) criterionVectors(ctx context.Context, criteria []string) ([][]float32, error) {
	key := strings.Join(criteria, "\x1f")

	e.criterionCache.mu.Lock()
	defer e.criterionCache.mu.Unlock()

	if e.criterionCache.key == key && e.criterionCache.vectors != nil {
		return e.criterionCache.vectors, nil
	}

	vectors, err := e.embedder.EmbedTexts(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("embedding criteria: %w", err)
	}
	e.criterionCache.key = key
	e.criterionCache.vectors = vectors
	return vectors, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// keywordSimilarity is the embedder-free fallback: the share of a
// criterion's significant words (4+ characters) found in the paper's title
// and abstract, taking the best-scoring criterion.
func keywordSimilarity(paper *domain.Paper, criteria []string) similarity {
	combined := strings.ToLower(paper.Title + " " + paper.Abstract)

	best := similarity{}
	for _, criterion := range criteria {
		var keywords []string
		for _, word := range wordPattern.FindAllString(strings.ToLower(criterion), -1) {
			if len(word) >= 4 {
				keywords = append(keywords, word)
			}
		}
		if len(keywords) == 0 {
			continue
		}

		matches := 0
		for _, kw := range keywords {
			if strings.Contains(combined, kw) {
				matches++
			}
		}
		score := float64(matches) / float64(len(keywords))
		if score > best.score {
			best = similarity{score: score, criterion: criterion}
		}
	}
	return best
}
