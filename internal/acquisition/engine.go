// Package acquisition implements full-text retrieval for screened papers.
//
// The engine walks a fixed-priority waterfall of full-text sources and stops
// at the first one that yields a usable PDF URL or text body. When every
// source comes up empty it synthesizes a virtual full-text document from the
// signals gathered along the way (abstract, TL;DR, citation contexts,
// related and referenced titles) at reduced confidence, so paywalled papers
// still carry enough text for downstream screening and quality heuristics.
package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/slr-pipeline-service/internal/cache"
	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
)

const (
	// DefaultMaxRetries bounds transient-error retries per source attempt.
	DefaultMaxRetries = 2

	// DefaultRetryBaseDelay is the base for exponential retry backoff.
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultMaxConcurrency is the batch worker pool size when the caller
	// passes zero.
	DefaultMaxConcurrency = 5
)

// DefaultWaterfallOrder is the source priority for full-text retrieval:
// open-access index first, then the legal-OA resolver, the aggregator, and
// finally the preprint server.
var DefaultWaterfallOrder = []domain.SourceType{
	domain.SourceTypeSemanticScholar,
	domain.SourceTypeUnpaywall,
	domain.SourceTypeCORE,
	domain.SourceTypeArXiv,
}

// sourceConfidence maps each waterfall source to the retrieval confidence a
// direct hit from it earns.
var sourceConfidence = map[domain.SourceType]float64{
	domain.SourceTypeSemanticScholar: 1.0,
	domain.SourceTypeUnpaywall:       1.0,
	domain.SourceTypeCORE:            0.95,
	domain.SourceTypeArXiv:           0.9,
}

// Config holds acquisition engine settings.
type Config struct {
	// WaterfallOrder is the source priority order. Empty uses
	// DefaultWaterfallOrder. Sources without a registered fetcher are
	// skipped.
	WaterfallOrder []domain.SourceType

	// MaxRetries is the number of retries on transient errors (429, 5xx)
	// per source before moving to the next one.
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential retry backoff.
	RetryBaseDelay time.Duration

	// MaxConcurrency bounds the AcquireBatch worker pool.
	MaxConcurrency int
}

func (c *Config) applyDefaults() {
	if len(c.WaterfallOrder) == 0 {
		c.WaterfallOrder = DefaultWaterfallOrder
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
}

// Result is the outcome of one acquisition attempt.
type Result struct {
	// Paper is the paper this result belongs to.
	Paper *domain.Paper

	// Source identifies where the full text came from.
	Source domain.FullTextSource

	// FullText is the retrieved or synthesized body text, if any.
	FullText string

	// PDFURL is a direct PDF link when a source exposed one.
	PDFURL string

	// Confidence is the retrieval confidence in [0,1].
	Confidence float64

	// QualityScore is the retrieval-quality signal in [0,1], used to
	// prioritize downstream review. It does not gate inclusion.
	QualityScore float64

	// IsVirtual reports whether FullText was synthesized rather than
	// retrieved.
	IsVirtual bool

	// Err records a per-paper failure. When set, the other result fields
	// are zero and the paper keeps SourceNone.
	Err error
}

// Engine coordinates waterfall full-text retrieval across registered
// fetchers, with per-source caching and bounded retries.
type Engine struct {
	registry *papersources.Registry
	cache    *cache.ResultCache
	cfg      Config
	logger   zerolog.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an acquisition engine. The cache may be nil, in which
// case every fetch goes to the network.
func NewEngine(registry *papersources.Registry, resultCache *cache.ResultCache, cfg Config, logger zerolog.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		registry: registry,
		cache:    resultCache,
		cfg:      cfg,
		logger:   logger.With().Str("component", "acquisition").Logger(),
		sleep:    sleepCtx,
	}
}

// Acquire runs the waterfall for one paper and applies the outcome to it.
// The returned Result always has Err nil; acquisition failure is reported
// as an error return instead, so callers can bucket retrieved vs. failed.
func (e *Engine) Acquire(ctx context.Context, paper *domain.Paper) (*Result, error) {
	ids := identifiersFor(paper)
	if len(ids) == 0 {
		return nil, fmt.Errorf("paper %s: %w", paper.CanonicalID, domain.ErrNoIdentifier)
	}

	var signals virtualSignals
	signals.mergePaper(paper)

	for _, fetcher := range e.registry.FetchersInOrder(e.cfg.WaterfallOrder) {
		res, err := e.tryFetcher(ctx, fetcher, ids)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Debug().
				Str("paper_id", paper.CanonicalID).
				Str("source", string(fetcher.SourceType())).
				Err(err).
				Msg("full-text source failed, trying next")
			continue
		}

		signals.merge(res)

		if res.HasContent() {
			result := &Result{
				Paper:      paper,
				Source:     domain.FullTextSourceFor(fetcher.SourceType()),
				FullText:   res.Text,
				PDFURL:     res.PDFURL,
				Confidence: sourceConfidence[fetcher.SourceType()],
			}
			result.QualityScore = retrievalQualityScore(result, signals)
			result.apply()
			applySignals(paper, signals)
			e.logger.Debug().
				Str("paper_id", paper.CanonicalID).
				Str("source", string(result.Source)).
				Float64("confidence", result.Confidence).
				Msg("full text acquired")
			return result, nil
		}
	}

	text, confidence := synthesizeVirtual(signals)
	if text == "" {
		return nil, fmt.Errorf("paper %s: no full text and no synthesis signals: %w", paper.CanonicalID, domain.ErrNotFound)
	}

	result := &Result{
		Paper:      paper,
		Source:     domain.SourceVirtual,
		FullText:   text,
		Confidence: confidence,
		IsVirtual:  true,
	}
	result.QualityScore = retrievalQualityScore(result, signals)
	result.apply()
	applySignals(paper, signals)
	e.logger.Debug().
		Str("paper_id", paper.CanonicalID).
		Float64("confidence", confidence).
		Msg("virtual full text synthesized")
	return result, nil
}

// AcquireBatch fans Acquire out over a bounded worker pool. Per-paper
// failures are recorded in the corresponding Result's Err field and never
// abort the batch. The optional progress callback receives the number of
// completed papers after each one finishes.
func (e *Engine) AcquireBatch(ctx context.Context, papers []*domain.Paper, maxConcurrency int, progress func(done, total int)) []*Result {
	if maxConcurrency <= 0 {
		maxConcurrency = e.cfg.MaxConcurrency
	}

	results := make([]*Result, len(papers))
	sem := make(chan struct{}, maxConcurrency)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)

	for i, paper := range papers {
		wg.Add(1)
		go func(i int, paper *domain.Paper) {
			defer wg.Done()
			// A panicking fetcher fails one paper, not the whole batch.
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error().Str("title", paper.Title).Interface("panic", r).Msg("acquisition worker panicked")
					results[i] = &Result{Paper: paper, Source: domain.SourceNone, Err: fmt.Errorf("acquisition panicked: %v", r)}
				}
			}()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = &Result{Paper: paper, Source: domain.SourceNone, Err: ctx.Err()}
				return
			}

			result, err := e.Acquire(ctx, paper)
			if err != nil {
				result = &Result{Paper: paper, Source: domain.SourceNone, Err: err}
			}
			results[i] = result

			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(papers))
				mu.Unlock()
			}
		}(i, paper)
	}

	wg.Wait()
	return results
}

// tryFetcher offers the paper's identifiers to one fetcher, strongest
// first, retrying transient errors with exponential backoff. Identifier
// kinds the fetcher cannot handle are skipped silently.
func (e *Engine) tryFetcher(ctx context.Context, fetcher papersources.FullTextFetcher, ids []papersources.Identifier) (*papersources.FullTextResult, error) {
	var lastErr error

	for _, id := range ids {
		res, err := e.fetchCached(ctx, fetcher, id)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, domain.ErrNoIdentifier) {
			continue
		}
		lastErr = err
		if errors.Is(err, domain.ErrNotFound) {
			// The source has no record under this identifier; another
			// identifier kind may still resolve.
			continue
		}
	}

	if lastErr == nil {
		lastErr = domain.ErrNoIdentifier
	}
	return nil, lastErr
}

// fetchCached wraps one fetch in the result cache and the retry loop.
func (e *Engine) fetchCached(ctx context.Context, fetcher papersources.FullTextFetcher, id papersources.Identifier) (*papersources.FullTextResult, error) {
	var key string
	if e.cache != nil {
		key = cache.Key(id.Value, string(fetcher.SourceType()), map[string]string{"kind": string(id.Kind)})
		if payload, ok := e.cache.Get(key); ok {
			var res papersources.FullTextResult
			if err := json.Unmarshal(payload, &res); err == nil {
				return &res, nil
			}
			e.cache.Invalidate(key)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.cfg.RetryBaseDelay << (attempt - 1)
			if err := e.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, err := fetcher.FetchByIdentifier(ctx, id)
		if err == nil {
			if e.cache != nil {
				if payload, merr := json.Marshal(res); merr == nil {
					e.cache.Set(key, payload)
				}
			}
			return res, nil
		}

		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("exhausted %d retries: %w", e.cfg.MaxRetries, lastErr)
}

// isTransient reports whether an error is worth retrying: rate limits and
// server-side failures, but not missing records or bad requests.
func isTransient(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrServiceUnavailable) {
		return true
	}
	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// apply writes the acquisition outcome onto the paper.
func (r *Result) apply() {
	r.Paper.FullText = r.FullText
	r.Paper.FullTextSource = r.Source
	r.Paper.RetrievalConfidence = r.Confidence
	r.Paper.RetrievalQuality = r.QualityScore
	r.Paper.PDFURL = r.PDFURL
	r.Paper.IsVirtualFullText = r.IsVirtual
}

// applySignals keeps the gathered auxiliary evidence on the paper, where
// the quality engine and reviewers can see it.
func applySignals(paper *domain.Paper, s virtualSignals) {
	if paper.TLDR == "" {
		paper.TLDR = s.tldr
	}
	if paper.Abstract == "" {
		paper.Abstract = s.abstract
	}
	if len(paper.CitationContexts) == 0 {
		paper.CitationContexts = s.citationContexts
	}
	if len(paper.RelatedPaperTitles) == 0 {
		paper.RelatedPaperTitles = s.relatedTitles
	}
	if len(paper.ReferencePaperTitles) == 0 {
		paper.ReferencePaperTitles = s.referenceTitles
	}
	if s.citationCount > paper.CitationCount {
		paper.CitationCount = s.citationCount
	}
}
