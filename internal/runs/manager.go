// Package runs manages the lifecycle of pipeline runs: submission,
// in-memory tracking, cancellation, and progress fan-out to subscribers.
package runs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/observability"
	"github.com/helixir/slr-pipeline-service/internal/pipeline"
)

var (
	// ErrActive is returned when results are requested for a run that has
	// not reached a terminal state yet.
	ErrActive = errors.New("run still in progress")

	// ErrTerminal is returned when a terminal run is cancelled.
	ErrTerminal = errors.New("run already in terminal state")
)

// subscriberBuffer is the per-subscriber event channel capacity. Slow
// consumers that fall this far behind start dropping events.
const subscriberBuffer = 64

// Runner executes a pipeline run to completion. Satisfied by
// *pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, run *domain.PipelineRun) (*pipeline.PipelineState, error)
}

// Config holds run manager configuration.
type Config struct {
	// MaxActive bounds the number of concurrently executing runs.
	// Zero means the default of 4.
	MaxActive int
}

// Manager tracks pipeline runs and drives their execution. Each submitted
// run executes on its own goroutine; readers only ever see snapshots taken
// at progress boundaries, so handlers never observe a half-updated run.
type Manager struct {
	runner  Runner
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	handles map[uuid.UUID]*handle
	wg      sync.WaitGroup
}

// handle is the manager's per-run record. The live run is mutated only by
// the orchestrator goroutine; snapshot and state are the read side.
type handle struct {
	mu       sync.RWMutex
	run      *domain.PipelineRun
	snapshot domain.PipelineRun
	state    *pipeline.PipelineState
	cancel   context.CancelFunc
	subs     map[int]chan domain.ProgressEvent
	nextSub  int
	done     chan struct{}
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithMetrics enables run lifecycle metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// NewManager creates a run manager executing runs through the given runner.
func NewManager(runner Runner, cfg Config, logger zerolog.Logger, opts ...Option) *Manager {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 4
	}
	m := &Manager{
		runner:  runner,
		cfg:     cfg,
		logger:  logger.With().Str("component", "run-manager").Logger(),
		now:     time.Now,
		handles: make(map[uuid.UUID]*handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start submits a new run and begins executing it asynchronously. The
// returned run is a snapshot taken at submission time.
func (m *Manager) Start(req domain.RunRequest) (*domain.PipelineRun, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	active := 0
	for _, h := range m.handles {
		h.mu.RLock()
		if !h.snapshot.Status.IsTerminal() {
			active++
		}
		h.mu.RUnlock()
	}
	if active >= m.cfg.MaxActive {
		m.mu.Unlock()
		return nil, fmt.Errorf("at most %d runs may be active: %w", m.cfg.MaxActive, domain.ErrRateLimited)
	}

	run := &domain.PipelineRun{
		ID:      uuid.New(),
		Request: req,
		Status:  domain.RunStatusPending,
		PhaseStatus: map[domain.PipelinePhase]domain.PhaseStatus{
			domain.PhaseSearch:      domain.PhaseStatusPending,
			domain.PhaseScreening:   domain.PhaseStatusPending,
			domain.PhaseAcquisition: domain.PhaseStatusPending,
			domain.PhaseQuality:     domain.PhaseStatusPending,
		},
		CreatedAt: m.now().UTC(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		run:      run,
		snapshot: cloneRun(run),
		cancel:   cancel,
		subs:     make(map[int]chan domain.ProgressEvent),
		done:     make(chan struct{}),
	}
	m.handles[run.ID] = h
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info().
		Str("run_id", run.ID.String()).
		Str("query", req.Query).
		Int("active_runs", active+1).
		Msg("run submitted")
	if m.metrics != nil {
		m.metrics.RecordRunStarted()
	}

	go m.execute(ctx, h)

	snap := h.snapshotCopy()
	return &snap, nil
}

// execute drives one run to completion and seals its handle.
func (m *Manager) execute(ctx context.Context, h *handle) {
	defer m.wg.Done()

	state, err := m.runSafely(ctx, h.run)

	h.mu.Lock()
	h.state = state
	h.snapshot = cloneRun(h.run)
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
	close(h.done)
	status := h.snapshot.Status
	duration := h.snapshot.Duration()
	h.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordRunFinished(string(status), duration.Seconds())
	}

	evt := m.logger.Info()
	if err != nil {
		evt = m.logger.Warn().Err(err)
	}
	evt.Str("run_id", h.run.ID.String()).
		Str("status", string(status)).
		Dur("duration", duration).
		Msg("run finished")
}

// runSafely invokes the runner, converting a panic into a failed run so one
// bad run cannot take the manager goroutine and the process with it.
func (m *Manager) runSafely(ctx context.Context, run *domain.PipelineRun) (state *pipeline.PipelineState, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str("run_id", run.ID.String()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("run panicked")
			if !run.Status.IsTerminal() {
				run.Status = domain.RunStatusFailed
			}
			run.ErrorMessage = fmt.Sprintf("panic: %v", r)
			if run.CompletedAt == nil {
				completed := time.Now().UTC()
				run.CompletedAt = &completed
			}
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return m.runner.Run(ctx, run)
}

// Dispatch routes a progress event to the run's subscribers and refreshes
// the run snapshot. It is called synchronously from the orchestrator
// goroutine, so reading the live run here is safe.
func (m *Manager) Dispatch(ev domain.ProgressEvent) {
	m.mu.RLock()
	h, ok := m.handles[ev.RunID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	h.mu.Lock()
	h.snapshot = cloneRun(h.run)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn().
				Str("run_id", ev.RunID.String()).
				Str("phase", string(ev.Phase)).
				Msg("subscriber channel full, dropping progress event")
		}
	}
	h.mu.Unlock()
}

// Get returns a snapshot of the run with the given ID.
func (m *Manager) Get(id uuid.UUID) (*domain.PipelineRun, error) {
	h, err := m.handle(id)
	if err != nil {
		return nil, err
	}
	snap := h.snapshotCopy()
	return &snap, nil
}

// List returns snapshots of all known runs, newest first.
func (m *Manager) List() []*domain.PipelineRun {
	m.mu.RLock()
	out := make([]*domain.PipelineRun, 0, len(m.handles))
	for _, h := range m.handles {
		snap := h.snapshotCopy()
		out = append(out, &snap)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Results returns the paper buckets of a finished run. While the run is
// active the buckets are still being written and are not exposed.
func (m *Manager) Results(id uuid.UUID) (*pipeline.PipelineState, error) {
	h, err := m.handle(id)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.snapshot.Status.IsTerminal() {
		return nil, fmt.Errorf("run %s: %w", id, ErrActive)
	}
	if h.state == nil {
		return &pipeline.PipelineState{}, nil
	}
	return h.state, nil
}

// Cancel requests cancellation of an active run. The run transitions to a
// terminal state asynchronously, once the orchestrator observes the
// cancelled context.
func (m *Manager) Cancel(id uuid.UUID) error {
	h, err := m.handle(id)
	if err != nil {
		return err
	}
	h.mu.RLock()
	terminal := h.snapshot.Status.IsTerminal()
	h.mu.RUnlock()
	if terminal {
		return fmt.Errorf("run %s: %w", id, ErrTerminal)
	}
	m.logger.Info().Str("run_id", id.String()).Msg("cancellation requested")
	h.cancel()
	return nil
}

// Subscribe registers a progress subscriber for the run. The returned
// channel is closed when the run reaches a terminal state; the returned
// function unregisters the subscriber. Subscribing to a finished run
// yields an already-closed channel.
func (m *Manager) Subscribe(id uuid.UUID) (<-chan domain.ProgressEvent, func(), error) {
	h, err := m.handle(id)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		ch := make(chan domain.ProgressEvent)
		close(ch)
		return ch, func() {}, nil
	}

	ch := make(chan domain.ProgressEvent, subscriberBuffer)
	subID := h.nextSub
	h.nextSub++
	h.subs[subID] = ch

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subs, subID)
		h.mu.Unlock()
	}
	return ch, unsubscribe, nil
}

// ActiveCount returns the number of runs that have not finished yet.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := 0
	for _, h := range m.handles {
		h.mu.RLock()
		if !h.snapshot.Status.IsTerminal() {
			active++
		}
		h.mu.RUnlock()
	}
	return active
}

// Shutdown cancels all active runs and waits for their goroutines to
// finish, up to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, h := range m.handles {
		h.cancel()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs to stop: %w", ctx.Err())
	}
}

func (m *Manager) handle(id uuid.UUID) (*handle, error) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return h, nil
}

func (h *handle) snapshotCopy() domain.PipelineRun {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneRun(&h.snapshot)
}

// cloneRun copies a run deeply enough that callers can hold it without
// locking: the phase status map is duplicated, everything else is either a
// value or immutable after submission.
func cloneRun(r *domain.PipelineRun) domain.PipelineRun {
	out := *r
	if r.PhaseStatus != nil {
		out.PhaseStatus = make(map[domain.PipelinePhase]domain.PhaseStatus, len(r.PhaseStatus))
		for k, v := range r.PhaseStatus {
			out.PhaseStatus[k] = v
		}
	}
	return out
}
