package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/runs"
)

// maxRequestBodySize bounds JSON request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// startRunRequest is the JSON request body for submitting a pipeline run.
type startRunRequest struct {
	Query             string   `json:"query" validate:"required,min=3,max=10000"`
	ResearchQuestion  string   `json:"research_question,omitempty" validate:"max=2000"`
	InclusionCriteria []string `json:"inclusion_criteria,omitempty" validate:"max=50,dive,required,max=500"`
	ExclusionCriteria []string `json:"exclusion_criteria,omitempty" validate:"max=50,dive,required,max=500"`
	Language          string   `json:"language,omitempty" validate:"max=50"`
	MaxPapers         int      `json:"max_papers,omitempty" validate:"min=0,max=1000"`
	DateFrom          *string  `json:"date_from,omitempty"`
	DateTo            *string  `json:"date_to,omitempty"`
}

// startRun handles POST /runs. It validates the payload and submits the
// run to the manager, which executes it asynchronously.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	runReq := domain.RunRequest{
		Query: req.Query,
		Criteria: domain.ScreeningCriteria{
			ResearchQuestion:  req.ResearchQuestion,
			InclusionCriteria: req.InclusionCriteria,
			ExclusionCriteria: req.ExclusionCriteria,
			Language:          req.Language,
		},
		MaxPapers: req.MaxPapers,
	}
	if req.DateFrom != nil {
		t, parseErr := time.Parse(time.RFC3339, *req.DateFrom)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid date_from format: expected RFC3339")
			return
		}
		runReq.DateFrom = &t
	}
	if req.DateTo != nil {
		t, parseErr := time.Parse(time.RFC3339, *req.DateTo)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid date_to format: expected RFC3339")
			return
		}
		runReq.DateTo = &t
	}

	run, err := s.manager.Start(runReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, startRunResponse{
		RunID:     run.ID.String(),
		Status:    string(run.Status),
		CreatedAt: run.CreatedAt,
		Message:   "pipeline run submitted",
	})
}

// getRun handles GET /runs/{runID}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	run, err := s.manager.Get(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runToStatusResponse(run))
}

// listRuns handles GET /runs with an optional status filter.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	var statusFilter domain.RunStatus
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		statusFilter = domain.RunStatus(statusParam)
	}

	all := s.manager.List()
	summaries := make([]runSummaryResponse, 0, len(all))
	for _, run := range all {
		if statusFilter != "" && run.Status != statusFilter {
			continue
		}
		summaries = append(summaries, runToSummary(run))
	}

	writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:       summaries,
		TotalCount: len(summaries),
	})
}

// cancelRun handles DELETE /runs/{runID}.
func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	if err := s.manager.Cancel(runID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, cancelRunResponse{
		Success: true,
		Message: "cancellation requested",
	})
}

// writeDomainError maps domain and run manager errors to HTTP status codes.
// Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, runs.ErrActive):
		writeError(w, http.StatusConflict, "run is still in progress")
	case errors.Is(err, runs.ErrTerminal):
		writeError(w, http.StatusConflict, "run is already in terminal state")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many active runs")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage renders validator errors as a compact field list.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[i] = fmt.Sprintf("%s is required", jsonFieldName(fe.Field()))
		case "min":
			fields[i] = fmt.Sprintf("%s must be at least %s", jsonFieldName(fe.Field()), fe.Param())
		case "max":
			fields[i] = fmt.Sprintf("%s must be at most %s", jsonFieldName(fe.Field()), fe.Param())
		default:
			fields[i] = fmt.Sprintf("%s is invalid", jsonFieldName(fe.Field()))
		}
	}
	return strings.Join(fields, "; ")
}

// jsonFieldName converts a Go struct field name to its snake_case JSON name.
func jsonFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
