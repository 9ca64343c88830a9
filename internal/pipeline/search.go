package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/observability"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

// RegistrySearcher implements Searcher by fanning the query out to every
// enabled source in the registry and merging the results. A single failing
// source degrades the candidate set rather than failing the search; the
// search errors only when every source fails.
type RegistrySearcher struct {
	registry *papersources.Registry
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewRegistrySearcher creates a searcher over the given source registry.
// A nil metrics disables per-source search metrics.
func NewRegistrySearcher(registry *papersources.Registry, logger zerolog.Logger, metrics *observability.Metrics) *RegistrySearcher {
	return &RegistrySearcher{
		registry: registry,
		logger:   logger.With().Str("component", "search").Logger(),
		metrics:  metrics,
	}
}

// Search queries all enabled sources concurrently and merges their papers.
func (s *RegistrySearcher) Search(ctx context.Context, req domain.RunRequest) ([]*domain.Paper, error) {
	params := papersources.SearchParams{
		Query:      req.Query,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		MaxResults: req.MaxPapers,
	}

	results := s.registry.SearchAll(ctx, params)
	if len(results) == 0 {
		return nil, fmt.Errorf("no enabled paper sources: %w", domain.ErrServiceUnavailable)
	}

	var papers []*domain.Paper
	var failures int
	var lastErr error
	for _, res := range results {
		if res.Error != nil {
			failures++
			lastErr = res.Error
			if s.metrics != nil {
				s.metrics.RecordSearchFailed(string(res.Source))
			}
			s.logger.Warn().Err(res.Error).Str("source", string(res.Source)).Msg("source search failed")
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordSearchCompleted(string(res.Source), len(res.Result.Papers))
		}
		papers = append(papers, res.Result.Papers...)
		s.logger.Debug().Str("source", string(res.Source)).Int("papers", len(res.Result.Papers)).Msg("source search completed")
	}

	if failures == len(results) {
		return nil, fmt.Errorf("all %d sources failed: %w", failures, lastErr)
	}
	return papers, nil
}

var _ Searcher = (*RegistrySearcher)(nil)
