package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/slr-pipeline-service/internal/acquisition"
	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/events"
	"github.com/helixir/slr-pipeline-service/internal/observability"
	"github.com/helixir/slr-pipeline-service/internal/quality"
	"github.com/helixir/slr-pipeline-service/internal/screening"
)

// Searcher fans a query out to the registered paper sources and returns the
// merged candidate set.
type Searcher interface {
	Search(ctx context.Context, req domain.RunRequest) ([]*domain.Paper, error)
}

// Deduplicator collapses duplicate records within a candidate set.
type Deduplicator interface {
	Deduplicate(papers []*domain.Paper) ([]*domain.Paper, int)
}

// Screener decides relevance for a batch of papers.
type Screener interface {
	ScreenBatch(ctx context.Context, papers []*domain.Paper, criteria domain.ScreeningCriteria) ([]screening.Decision, error)
}

// Acquirer retrieves full text for a batch of papers.
type Acquirer interface {
	AcquireBatch(ctx context.Context, papers []*domain.Paper, maxConcurrency int, progress func(done, total int)) []*acquisition.Result
}

// Assessor appraises methodological quality for a batch of papers.
type Assessor interface {
	AssessBatch(papers []*domain.Paper) []quality.Assessment
}

// ProgressFunc receives progress updates during a run. Percent is -1 when
// the reported phase failed.
type ProgressFunc func(event domain.ProgressEvent)

// phaseProgress maps each phase to its start and completion percentages.
var phaseProgress = map[domain.PipelinePhase]struct{ start, done float64 }{
	domain.PhaseSearch:      {0, 25},
	domain.PhaseScreening:   {25, 50},
	domain.PhaseAcquisition: {50, 75},
	domain.PhaseQuality:     {75, 100},
}

// Config tunes orchestrator behavior.
type Config struct {
	// AcquisitionConcurrency bounds the acquisition worker pool. Zero
	// uses the acquisition engine's default.
	AcquisitionConcurrency int
}

// Orchestrator drives a pipeline run through search, screening, acquisition
// and quality assessment in order. A phase failure halts the run and
// preserves everything the completed phases produced.
type Orchestrator struct {
	searcher  Searcher
	dedup     Deduplicator
	screener  Screener
	acquirer  Acquirer
	assessor  Assessor
	publisher events.Publisher
	cfg       Config
	logger    zerolog.Logger
	metrics   *observability.Metrics

	onProgress ProgressFunc
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a callback invoked on every progress update.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithPublisher sets the event publisher. Defaults to NopPublisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithMetrics enables phase and paper-flow metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator wires a pipeline orchestrator from its collaborators.
func NewOrchestrator(searcher Searcher, dedup Deduplicator, screener Screener, acquirer Acquirer, assessor Assessor, cfg Config, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		searcher:  searcher,
		dedup:     dedup,
		screener:  screener,
		acquirer:  acquirer,
		assessor:  assessor,
		publisher: events.NopPublisher{},
		cfg:       cfg,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for the given run record, mutating its status,
// phase statuses and PRISMA counters as phases complete. The returned state
// always holds whatever the completed phases produced, including on error.
func (o *Orchestrator) Run(ctx context.Context, run *domain.PipelineRun) (*PipelineState, error) {
	state := &PipelineState{}

	started := o.now().UTC()
	run.StartedAt = &started
	run.Status = domain.RunStatusRunning
	if run.PhaseStatus == nil {
		run.PhaseStatus = map[domain.PipelinePhase]domain.PhaseStatus{
			domain.PhaseSearch:      domain.PhaseStatusPending,
			domain.PhaseScreening:   domain.PhaseStatusPending,
			domain.PhaseAcquisition: domain.PhaseStatusPending,
			domain.PhaseQuality:     domain.PhaseStatusPending,
		}
	}

	o.logger.Info().Stringer("run_id", run.ID).Str("query", run.Request.Query).Msg("pipeline run started")
	o.publish(ctx, events.EventRunStarted, run.ID, map[string]interface{}{
		"query":      run.Request.Query,
		"max_papers": run.Request.MaxPapers,
	})

	phases := []struct {
		phase domain.PipelinePhase
		fn    func(context.Context, *domain.PipelineRun, *PipelineState) error
	}{
		{domain.PhaseSearch, o.runSearch},
		{domain.PhaseScreening, o.runScreening},
		{domain.PhaseAcquisition, o.runAcquisition},
		{domain.PhaseQuality, o.runQuality},
	}

	for i, p := range phases {
		if err := o.runPhase(ctx, run, state, p.phase, p.fn); err != nil {
			o.failRun(ctx, run, state, p.phase, i > 0, err)
			return state, err
		}
	}

	completed := o.now().UTC()
	run.CompletedAt = &completed
	run.Status = domain.RunStatusCompleted
	o.report(run, domain.PhaseDone, 100, "pipeline completed")
	o.publish(ctx, events.EventRunCompleted, run.ID, map[string]interface{}{
		"prisma":   run.PRISMA,
		"duration": run.Duration().String(),
	})
	o.logger.Info().
		Stringer("run_id", run.ID).
		Int("included_synthesis", run.PRISMA.IncludedSynthesis).
		Dur("duration", run.Duration()).
		Msg("pipeline run completed")
	return state, nil
}

// runPhase wraps one phase with status tracking, progress reporting and
// event emission.
func (o *Orchestrator) runPhase(ctx context.Context, run *domain.PipelineRun, state *PipelineState, phase domain.PipelinePhase, fn func(context.Context, *domain.PipelineRun, *PipelineState) error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewPhaseError(phase, err)
	}

	pct := phaseProgress[phase]
	run.PhaseStatus[phase] = domain.PhaseStatusActive
	state.log("%s started", phase)
	o.report(run, phase, pct.start, string(phase)+" started")

	phaseStart := o.now()
	if err := o.invokePhase(ctx, run, state, phase, fn); err != nil {
		if o.metrics != nil {
			o.metrics.RecordPhaseFailed(string(phase), o.now().Sub(phaseStart).Seconds())
		}
		return domain.NewPhaseError(phase, err)
	}
	if o.metrics != nil {
		o.metrics.RecordPhaseCompleted(string(phase), o.now().Sub(phaseStart).Seconds())
	}

	run.PhaseStatus[phase] = domain.PhaseStatusCompleted
	state.log("%s completed", phase)
	o.report(run, phase, pct.done, string(phase)+" completed")
	o.publish(ctx, events.EventPhaseCompleted, run.ID, map[string]interface{}{
		"phase":  phase,
		"prisma": run.PRISMA,
	})
	return nil
}

// invokePhase calls the phase function, converting a panic into a phase
// error so a faulty source or model client cannot take the process down.
func (o *Orchestrator) invokePhase(ctx context.Context, run *domain.PipelineRun, state *PipelineState, phase domain.PipelinePhase, fn func(context.Context, *domain.PipelineRun, *PipelineState) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Stringer("run_id", run.ID).
				Str("phase", string(phase)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("phase panicked")
			err = fmt.Errorf("%s panicked: %v", phase, r)
		}
	}()
	return fn(ctx, run, state)
}

// failRun finalizes the run after a phase error, keeping partial results.
func (o *Orchestrator) failRun(ctx context.Context, run *domain.PipelineRun, state *PipelineState, phase domain.PipelinePhase, partialResults bool, err error) {
	completed := o.now().UTC()
	run.CompletedAt = &completed
	run.PhaseStatus[phase] = domain.PhaseStatusError
	run.ErrorMessage = err.Error()
	state.recordError(phase, err)

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		run.Status = domain.RunStatusCancelled
	case partialResults:
		run.Status = domain.RunStatusPartial
	default:
		run.Status = domain.RunStatusFailed
	}

	o.report(run, phase, -1, err.Error())
	o.publish(ctx, events.EventRunFailed, run.ID, map[string]interface{}{
		"phase": phase,
		"error": err.Error(),
	})
	o.logger.Error().Err(err).Stringer("run_id", run.ID).Str("phase", string(phase)).Str("status", string(run.Status)).Msg("pipeline run halted")
}

// report invokes the progress callback when one is registered.
func (o *Orchestrator) report(run *domain.PipelineRun, phase domain.PipelinePhase, percent float64, message string) {
	if o.onProgress == nil {
		return
	}
	o.onProgress(domain.ProgressEvent{
		RunID:     run.ID,
		Phase:     phase,
		Percent:   percent,
		Message:   message,
		Timestamp: o.now().UTC(),
	})
}

// publish emits an event, logging but otherwise ignoring publish failures:
// the event stream is advisory and must not fail a run.
func (o *Orchestrator) publish(ctx context.Context, eventType string, runID uuid.UUID, payload interface{}) {
	if err := o.publisher.Publish(ctx, eventType, runID, payload); err != nil {
		o.logger.Warn().Err(err).Str("event_type", eventType).Msg("event publish failed")
	}
}
