package pipeline

import (
	"context"
	"fmt"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/events"
)

// progressEventStep is the minimum percentage-point gap between published
// progress events. The in-process progress callback still fires on every
// retrieval; only the event stream is throttled.
const progressEventStep = 10.0

// runSearch collects candidates from all sources, deduplicates them and
// caps the set at the requested maximum. Owns the Identified and
// DuplicatesRemoved counters.
func (o *Orchestrator) runSearch(ctx context.Context, run *domain.PipelineRun, state *PipelineState) error {
	papers, err := o.searcher.Search(ctx, run.Request)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	state.Raw = papers
	run.PRISMA.Identified = len(papers)

	deduped, removed := o.dedup.Deduplicate(papers)
	run.PRISMA.DuplicatesRemoved = removed
	if o.metrics != nil {
		o.metrics.RecordPaperDuplicates(removed)
	}

	if max := run.Request.MaxPapers; max > 0 && len(deduped) > max {
		deduped = deduped[:max]
	}
	state.Deduplicated = deduped
	state.log("search found %d papers, %d after deduplication", len(papers), len(deduped))

	o.logger.Info().
		Stringer("run_id", run.ID).
		Int("identified", len(papers)).
		Int("duplicates_removed", removed).
		Int("candidates", len(deduped)).
		Msg("search completed")
	return nil
}

// runScreening decides relevance for every candidate. Owns the Screened and
// ExcludedScreening counters. Uncertain papers are held for human review
// and do not continue to acquisition.
func (o *Orchestrator) runScreening(ctx context.Context, run *domain.PipelineRun, state *PipelineState) error {
	decisions, err := o.screener.ScreenBatch(ctx, state.Deduplicated, run.Request.Criteria)
	if err != nil && decisions == nil {
		return fmt.Errorf("screening: %w", err)
	}

	for i, d := range decisions {
		paper := state.Deduplicated[i]
		if o.metrics != nil {
			o.metrics.RecordScreeningDecision(string(d.Status), string(d.Phase))
			if d.Phase == domain.PhaseHumanReview {
				o.metrics.RecordScreeningEscalation()
			}
		}
		switch d.Status {
		case domain.ScreeningInclude:
			state.Included = append(state.Included, paper)
		case domain.ScreeningExclude:
			state.Excluded = append(state.Excluded, paper)
		default:
			state.Uncertain = append(state.Uncertain, paper)
		}
	}

	run.PRISMA.Screened = len(state.Deduplicated)
	run.PRISMA.ExcludedScreening = len(state.Excluded)
	state.log("screening: %d included, %d excluded, %d uncertain", len(state.Included), len(state.Excluded), len(state.Uncertain))

	o.logger.Info().
		Stringer("run_id", run.ID).
		Int("included", len(state.Included)).
		Int("excluded", len(state.Excluded)).
		Int("uncertain", len(state.Uncertain)).
		Msg("screening completed")
	if err != nil {
		return fmt.Errorf("screening: %w", err)
	}
	return nil
}

// runAcquisition retrieves full text for the included papers. Owns the
// SoughtRetrieval and NotRetrieved counters. Papers whose retrieval fails
// stay in the pipeline and are assessed from metadata alone.
func (o *Orchestrator) runAcquisition(ctx context.Context, run *domain.PipelineRun, state *PipelineState) error {
	pct := phaseProgress[domain.PhaseAcquisition]
	span := pct.done - pct.start
	var lastPublished float64
	results := o.acquirer.AcquireBatch(ctx, state.Included, o.cfg.AcquisitionConcurrency, func(done, total int) {
		percent := pct.start + span*float64(done)/float64(total)
		o.report(run, domain.PhaseAcquisition, percent, fmt.Sprintf("retrieved %d/%d", done, total))
		if percent-lastPublished >= progressEventStep || done == total {
			lastPublished = percent
			o.publish(ctx, events.EventProgressUpdated, run.ID, map[string]interface{}{
				"phase":   domain.PhaseAcquisition,
				"percent": percent,
				"done":    done,
				"total":   total,
			})
		}
	})

	for _, res := range results {
		if res.Err != nil {
			state.FailedAcquisition = append(state.FailedAcquisition, res.Paper)
			if o.metrics != nil {
				o.metrics.RecordPaperNotRetrieved()
			}
			continue
		}
		state.Acquired = append(state.Acquired, res.Paper)
		if o.metrics != nil {
			o.metrics.RecordPaperRetrieved(string(res.Source), res.Paper.IsVirtualFullText)
		}
	}

	run.PRISMA.SoughtRetrieval = len(state.Included)
	run.PRISMA.NotRetrieved = len(state.FailedAcquisition)
	state.log("acquisition: %d retrieved, %d not retrieved", len(state.Acquired), len(state.FailedAcquisition))

	// Counters and buckets reflect every completed retrieval even when the
	// run is cancelled mid-batch; only then does the cancellation surface.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}

	o.logger.Info().
		Stringer("run_id", run.ID).
		Int("retrieved", len(state.Acquired)).
		Int("not_retrieved", len(state.FailedAcquisition)).
		Msg("acquisition completed")
	return nil
}

// runQuality appraises every paper that passed screening, including ones
// that arrive with metadata only. Owns the AssessedEligibility,
// ExcludedEligibility and IncludedSynthesis counters. High and moderate
// quality papers enter the synthesis set, low quality papers are kept for
// sensitivity analysis, critical papers are excluded.
func (o *Orchestrator) runQuality(ctx context.Context, run *domain.PipelineRun, state *PipelineState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("quality: %w", err)
	}

	candidates := make([]*domain.Paper, 0, len(state.Acquired)+len(state.FailedAcquisition))
	candidates = append(candidates, state.Acquired...)
	candidates = append(candidates, state.FailedAcquisition...)

	assessments := o.assessor.AssessBatch(candidates)
	state.Assessed = candidates

	for i, a := range assessments {
		paper := candidates[i]
		if o.metrics != nil {
			o.metrics.RecordQualityAssessment(string(a.Category), a.Score)
		}
		switch a.Category {
		case domain.QualityHigh, domain.QualityModerate:
			state.SynthesisReady = append(state.SynthesisReady, paper)
		case domain.QualityLow:
			state.Sensitivity = append(state.Sensitivity, paper)
		default:
			state.ExcludedQuality = append(state.ExcludedQuality, paper)
		}
	}

	run.PRISMA.AssessedEligibility = len(candidates)
	run.PRISMA.ExcludedEligibility = len(state.ExcludedQuality)
	run.PRISMA.IncludedSynthesis = len(state.SynthesisReady)
	state.log("quality: %d synthesis-ready, %d sensitivity, %d excluded", len(state.SynthesisReady), len(state.Sensitivity), len(state.ExcludedQuality))

	o.logger.Info().
		Stringer("run_id", run.ID).
		Int("synthesis_ready", len(state.SynthesisReady)).
		Int("sensitivity", len(state.Sensitivity)).
		Int("excluded_quality", len(state.ExcludedQuality)).
		Msg("quality assessment completed")
	return nil
}
