// Package screening implements the four-phase relevance cascade for
// candidate papers.
//
// Cheap deterministic rules remove obvious noise first, a batched semantic
// similarity pass decides the clear cases, LLM arbitration is reserved for
// the borderline band, and anything the model is still unsure about is
// escalated for human review. The ordering exists to bound cost: embedding
// and LLM budget is only spent on papers the earlier phases could not
// decide.
package screening

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/llm"
)

// Default cascade thresholds.
const (
	DefaultLowThreshold    = 0.5
	DefaultHighThreshold   = 0.7
	DefaultConfidenceFloor = 0.6
)

// Config holds the cascade thresholds. All three are tunable per deployment
// rather than hard-coded.
type Config struct {
	// LowThreshold is the semantic similarity below which a paper is
	// excluded outright.
	LowThreshold float64

	// HighThreshold is the semantic similarity at or above which a paper
	// is included outright. Papers between the thresholds go to LLM
	// arbitration.
	HighThreshold float64

	// ConfidenceFloor is the minimum LLM confidence for an automatic
	// decision; below it the paper is escalated for human review.
	ConfidenceFloor float64
}

// DefaultConfig returns the standard cascade thresholds.
func DefaultConfig() Config {
	return Config{
		LowThreshold:    DefaultLowThreshold,
		HighThreshold:   DefaultHighThreshold,
		ConfidenceFloor: DefaultConfidenceFloor,
	}
}

func (c *Config) applyDefaults() {
	if c.LowThreshold == 0 && c.HighThreshold == 0 {
		c.LowThreshold = DefaultLowThreshold
		c.HighThreshold = DefaultHighThreshold
	}
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = DefaultConfidenceFloor
	}
}

// Validate checks threshold ordering.
func (c Config) Validate() error {
	if c.LowThreshold < 0 || c.HighThreshold > 1 || c.LowThreshold >= c.HighThreshold {
		return fmt.Errorf("%w: screening thresholds must satisfy 0 <= low < high <= 1, got low=%v high=%v",
			domain.ErrInvalidInput, c.LowThreshold, c.HighThreshold)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("%w: confidence floor must be in [0,1], got %v", domain.ErrInvalidInput, c.ConfidenceFloor)
	}
	return nil
}

// Decision is the outcome of screening one paper.
type Decision struct {
	Status     domain.ScreeningStatus
	Confidence float64
	Reason     string
	Phase      domain.ScreeningPhase
}

// Engine runs the screening cascade. Both the embedder and the completer
// are optional: without an embedder the semantic phase falls back to
// keyword overlap, and without a completer borderline papers go straight
// to human review.
type Engine struct {
	embedder  llm.Embedder
	completer llm.Completer
	cfg       Config
	logger    zerolog.Logger

	criterionCache *criterionEmbeddings
}

// NewEngine creates a screening engine.
func NewEngine(embedder llm.Embedder, completer llm.Completer, cfg Config, logger zerolog.Logger) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		embedder:       embedder,
		completer:      completer,
		cfg:            cfg,
		logger:         logger.With().Str("component", "screening").Logger(),
		criterionCache: newCriterionEmbeddings(),
	}, nil
}

// Screen runs the cascade over a single paper and applies the decision to it.
func (e *Engine) Screen(ctx context.Context, paper *domain.Paper, criteria domain.ScreeningCriteria) (Decision, error) {
	decisions, err := e.ScreenBatch(ctx, []*domain.Paper{paper}, criteria)
	if err != nil {
		return Decision{}, err
	}
	return decisions[0], nil
}

// ScreenBatch runs the cascade over a corpus. Phase 1 and the semantic
// phase run over the whole batch (one embedding call for all survivors);
// LLM arbitration runs sequentially over the borderline band only.
// Decisions are returned in input order and also written onto the papers.
func (e *Engine) ScreenBatch(ctx context.Context, papers []*domain.Paper, criteria domain.ScreeningCriteria) ([]Decision, error) {
	decisions := make([]Decision, len(papers))

	// Phase 1: rule filter, no network or model cost.
	var survivors []int
	for i, paper := range papers {
		if d, excluded := e.ruleFilter(paper, criteria); excluded {
			decisions[i] = d
			continue
		}
		survivors = append(survivors, i)
	}

	// Phase 2: batched semantic similarity over the survivors.
	similarities, err := e.similarities(ctx, papers, survivors, criteria.InclusionCriteria)
	if err != nil {
		return nil, fmt.Errorf("semantic screening: %w", err)
	}

	var borderline []int
	for _, i := range survivors {
		sim := similarities[i]
		switch {
		case sim.score >= e.cfg.HighThreshold:
			decisions[i] = Decision{
				Status:     domain.ScreeningInclude,
				Confidence: sim.score,
				Reason:     "high semantic match with: " + sim.criterion,
				Phase:      domain.PhaseSemantic,
			}
		case sim.score < e.cfg.LowThreshold:
			decisions[i] = Decision{
				Status:     domain.ScreeningExclude,
				Confidence: 1 - sim.score,
				Reason:     fmt.Sprintf("low semantic relevance (score: %.2f)", sim.score),
				Phase:      domain.PhaseSemantic,
			}
		default:
			borderline = append(borderline, i)
		}
	}

	// Phase 3 and 4: LLM arbitration over the borderline band, with
	// escalation when the model is uncertain. Cancellation mid-band keeps
	// every decision made so far; papers not yet arbitrated are escalated
	// rather than discarded.
	var arbErr error
	for _, i := range borderline {
		if err := ctx.Err(); err != nil {
			arbErr = err
			decisions[i] = Decision{
				Status: domain.ScreeningUncertain,
				Reason: "screening cancelled before arbitration; requires human review",
				Phase:  domain.PhaseHumanReview,
			}
			continue
		}
		decisions[i] = e.arbitrate(ctx, papers[i], criteria)
	}

	for i, paper := range papers {
		applyDecision(paper, decisions[i])
	}

	e.logger.Info().
		Int("total", len(papers)).
		Int("rule_filtered", len(papers)-len(survivors)).
		Int("borderline", len(borderline)).
		Msg("screening batch complete")

	if arbErr != nil {
		return decisions, arbErr
	}
	return decisions, nil
}

// applyDecision writes a screening outcome onto the paper.
func applyDecision(paper *domain.Paper, d Decision) {
	paper.ScreeningStatus = d.Status
	paper.ScreeningConfidence = d.Confidence
	paper.ScreeningReason = d.Reason
	paper.ScreeningPhase = d.Phase
}
