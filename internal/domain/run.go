package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle states of a pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartial, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// PipelinePhase identifies a stage of the review pipeline.
type PipelinePhase string

// Pipeline phases in execution order.
const (
	PhaseSearch      PipelinePhase = "search"
	PhaseScreening   PipelinePhase = "screening"
	PhaseAcquisition PipelinePhase = "acquisition"
	PhaseQuality     PipelinePhase = "quality"
	PhaseDone        PipelinePhase = "done"
)

// PhaseStatus represents the state of a single pipeline phase.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusActive    PhaseStatus = "active"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusError     PhaseStatus = "error"
)

// PRISMAStats tracks paper counts at each stage of the review, following the
// PRISMA flow diagram. Counters accumulate monotonically: each is written
// exactly once, by the phase that owns it, and never decremented. They are an
// audit trail, not a live gauge.
type PRISMAStats struct {
	Identified          int `json:"identified"`
	DuplicatesRemoved   int `json:"duplicates_removed"`
	Screened            int `json:"screened"`
	ExcludedScreening   int `json:"excluded_screening"`
	SoughtRetrieval     int `json:"sought_retrieval"`
	NotRetrieved        int `json:"not_retrieved"`
	AssessedEligibility int `json:"assessed_eligibility"`
	ExcludedEligibility int `json:"excluded_eligibility"`
	IncludedSynthesis   int `json:"included_synthesis"`
}

// ScreeningCriteria holds the relevance criteria driving the screening cascade.
type ScreeningCriteria struct {
	// ResearchQuestion frames LLM arbitration for borderline papers.
	ResearchQuestion string `json:"research_question"`

	// InclusionCriteria are statements a relevant paper should match.
	InclusionCriteria []string `json:"inclusion_criteria"`

	// ExclusionCriteria are statements that disqualify a paper.
	ExclusionCriteria []string `json:"exclusion_criteria"`

	// Language restricts papers to one language when set (e.g. "english").
	Language string `json:"language,omitempty"`
}

// RunRequest describes a pipeline run as submitted by a caller.
type RunRequest struct {
	// Query is the boolean search query handed to the search collaborator.
	Query string `json:"query"`

	// Criteria drive screening decisions.
	Criteria ScreeningCriteria `json:"criteria"`

	// MaxPapers caps the number of candidate papers entering the pipeline.
	MaxPapers int `json:"max_papers,omitempty"`

	// DateFrom is the earliest publication date to include.
	DateFrom *time.Time `json:"date_from,omitempty"`

	// DateTo is the latest publication date to include.
	DateTo *time.Time `json:"date_to,omitempty"`
}

// PipelineRun is the record of one pipeline execution.
type PipelineRun struct {
	ID uuid.UUID `json:"id"`

	Request RunRequest `json:"request"`

	Status       RunStatus                     `json:"status"`
	PhaseStatus  map[PipelinePhase]PhaseStatus `json:"phase_status"`
	PRISMA       PRISMAStats                   `json:"prisma"`
	ErrorMessage string                        `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the elapsed run time: zero before start, running time
// while active, total time once completed.
func (r *PipelineRun) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(*r.StartedAt)
	}
	return time.Since(*r.StartedAt)
}

// IsActive returns true if the run is still in progress.
func (r *PipelineRun) IsActive() bool {
	return !r.Status.IsTerminal()
}

// ProgressEvent is a real-time progress event streamed to clients.
// Percent is -1 when the event reports an error rather than progress.
type ProgressEvent struct {
	RunID     uuid.UUID     `json:"run_id"`
	Phase     PipelinePhase `json:"phase"`
	Percent   float64       `json:"percent"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}
