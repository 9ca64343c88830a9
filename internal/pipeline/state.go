package pipeline

import (
	"fmt"
	"time"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

// PipelineState holds the paper buckets produced as a run moves through its
// phases. It is owned exclusively by the orchestrator goroutine for the
// duration of the run; collaborators hand results back through return
// values, never by mutating the state concurrently. Phase lifecycle and
// PRISMA counters live on the PipelineRun itself.
type PipelineState struct {
	// Search phase output.
	Raw          []*domain.Paper
	Deduplicated []*domain.Paper

	// Screening phase output.
	Included  []*domain.Paper
	Excluded  []*domain.Paper
	Uncertain []*domain.Paper

	// Acquisition phase output. FailedAcquisition papers continue with
	// whatever metadata they already carry.
	Acquired          []*domain.Paper
	FailedAcquisition []*domain.Paper

	// Quality phase output.
	Assessed        []*domain.Paper
	SynthesisReady  []*domain.Paper
	Sensitivity     []*domain.Paper
	ExcludedQuality []*domain.Paper

	// ProcessingLog and Errors are append-only.
	ProcessingLog []string
	Errors        []string
}

// log appends a timestamped entry to the processing log.
func (s *PipelineState) log(format string, args ...interface{}) {
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	s.ProcessingLog = append(s.ProcessingLog, entry)
}

// recordError appends a phase error to the error log.
func (s *PipelineState) recordError(phase domain.PipelinePhase, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", phase, err))
}
