package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

const (
	// ssePollInterval is how often the authoritative run snapshot is
	// re-read between pushed events.
	ssePollInterval = 2 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
)

// sseEvent represents an event sent via SSE.
type sseEvent struct {
	EventType string              `json:"event_type"`
	RunID     string              `json:"run_id"`
	Status    string              `json:"status,omitempty"`
	Phase     string              `json:"phase,omitempty"`
	Percent   *float64            `json:"percent,omitempty"`
	PRISMA    *domain.PRISMAStats `json:"prisma,omitempty"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
}

// streamProgress handles GET /runs/{runID}/progress (SSE). Events pushed by
// the orchestrator arrive through the run manager subscription; a poll
// ticker keeps clients current if pushes are dropped.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	run, err := s.manager.Get(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// If already terminal, send one event and close.
	if run.Status.IsTerminal() {
		sendSSEEvent(w, flusher, terminalEvent(run))
		return
	}

	events, unsubscribe, err := s.manager.Subscribe(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer unsubscribe()

	sendSSEEvent(w, flusher, sseEvent{
		EventType: "stream_started",
		RunID:     runID.String(),
		Status:    string(run.Status),
		PRISMA:    &run.PRISMA,
		Message:   "progress stream started",
		Timestamp: time.Now().UTC(),
	})

	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, sseEvent{
				EventType: "timeout",
				RunID:     runID.String(),
				Message:   "stream max duration exceeded",
				Timestamp: time.Now().UTC(),
			})
			return

		case ev, open := <-events:
			if !open {
				// Run reached a terminal state; send the final snapshot.
				final, getErr := s.manager.Get(runID)
				if getErr != nil {
					return
				}
				sendSSEEvent(w, flusher, terminalEvent(final))
				return
			}
			sendSSEEvent(w, flusher, progressToSSE(ev))

		case <-ticker.C:
			current, pollErr := s.manager.Get(runID)
			if pollErr != nil {
				s.logger.Error().Err(pollErr).Str("run_id", runID.String()).Msg("failed to poll run status")
				continue
			}
			if current.Status.IsTerminal() {
				sendSSEEvent(w, flusher, terminalEvent(current))
				return
			}
			sendSSEEvent(w, flusher, sseEvent{
				EventType: "status",
				RunID:     current.ID.String(),
				Status:    string(current.Status),
				PRISMA:    &current.PRISMA,
				Message:   "status: " + string(current.Status),
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

// progressToSSE converts an orchestrator progress event to its SSE form.
// A negative percent marks a phase error.
func progressToSSE(ev domain.ProgressEvent) sseEvent {
	eventType := "progress_update"
	if ev.Percent < 0 {
		eventType = "phase_error"
	}
	percent := ev.Percent
	return sseEvent{
		EventType: eventType,
		RunID:     ev.RunID.String(),
		Phase:     string(ev.Phase),
		Percent:   &percent,
		Message:   ev.Message,
		Timestamp: ev.Timestamp,
	}
}

// terminalEvent builds the single closing event for a finished run.
func terminalEvent(run *domain.PipelineRun) sseEvent {
	message := "run completed with status: " + string(run.Status)
	if run.ErrorMessage != "" {
		message = run.ErrorMessage
	}
	return sseEvent{
		EventType: "completed",
		RunID:     run.ID.String(),
		Status:    string(run.Status),
		PRISMA:    &run.PRISMA,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
