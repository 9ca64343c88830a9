package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/pdf"
	"github.com/helixir/slr-pipeline-service/internal/pipeline"
)

// Paper bucket names accepted by the papers endpoint.
const (
	bucketSynthesis   = "synthesis"
	bucketSensitivity = "sensitivity"
	bucketExcluded    = "excluded"
	bucketUncertain   = "uncertain"
	bucketAll         = "all"
)

// getRunPapers handles GET /runs/{runID}/papers. Results become available
// once the run reaches a terminal state; the bucket query parameter selects
// which slice of the final population to return (default: synthesis).
func (s *Server) getRunPapers(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	state, err := s.manager.Results(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = bucketSynthesis
	}

	papers, ok := selectBucket(state, bucket)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown bucket: %s", bucket))
		return
	}

	out := make([]paperResponse, len(papers))
	for i, p := range papers {
		out[i] = paperToResponse(p)
	}

	writeJSON(w, http.StatusOK, listPapersResponse{
		Papers:     out,
		Bucket:     bucket,
		TotalCount: len(out),
	})
}

// selectBucket returns the papers in the named bucket of a finished run.
func selectBucket(state *pipeline.PipelineState, bucket string) ([]*domain.Paper, bool) {
	switch bucket {
	case bucketSynthesis:
		return state.SynthesisReady, true
	case bucketSensitivity:
		return state.Sensitivity, true
	case bucketExcluded:
		return state.ExcludedQuality, true
	case bucketUncertain:
		return state.Uncertain, true
	case bucketAll:
		all := make([]*domain.Paper, 0,
			len(state.SynthesisReady)+len(state.Sensitivity)+len(state.ExcludedQuality)+len(state.Uncertain))
		all = append(all, state.SynthesisReady...)
		all = append(all, state.Sensitivity...)
		all = append(all, state.ExcludedQuality...)
		all = append(all, state.Uncertain...)
		return all, true
	default:
		return nil, false
	}
}

// getRunPRISMA handles GET /runs/{runID}/prisma. The flow counters are
// readable at any point; phases that have not run yet report zero.
func (s *Server) getRunPRISMA(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	run, err := s.manager.Get(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prismaResponse{
		RunID:  run.ID.String(),
		Status: string(run.Status),
		Flow:   run.PRISMA,
	})
}

// getRunPaperPDF handles GET /runs/{runID}/pdf?canonical_id=...: it fetches
// the paper's PDF through the SSRF-guarded downloader and streams it back.
// Canonical IDs contain slashes, so the paper is addressed by query
// parameter rather than path segment.
func (s *Server) getRunPaperPDF(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	canonicalID := r.URL.Query().Get("canonical_id")
	if canonicalID == "" {
		writeError(w, http.StatusBadRequest, "canonical_id is required")
		return
	}

	if s.downloader == nil {
		writeError(w, http.StatusServiceUnavailable, "PDF retrieval is not configured")
		return
	}

	state, err := s.manager.Results(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	paper := findPaper(state, canonicalID)
	if paper == nil {
		writeError(w, http.StatusNotFound, "paper not found in run results")
		return
	}
	if paper.PDFURL == "" {
		writeError(w, http.StatusNotFound, "paper has no PDF location")
		return
	}

	result, err := s.downloader.Download(r.Context(), paper.PDFURL)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("run_id", runID.String()).
			Str("canonical_id", canonicalID).
			Msg("PDF download failed")
		switch {
		case errors.Is(err, pdf.ErrNotPDF):
			writeError(w, http.StatusBadGateway, "upstream did not return a PDF")
		case errors.Is(err, pdf.ErrTooLarge):
			writeError(w, http.StatusBadGateway, "PDF exceeds size limit")
		case errors.Is(err, pdf.ErrSSRF):
			writeError(w, http.StatusBadGateway, "PDF location is not allowed")
		default:
			writeError(w, http.StatusBadGateway, "PDF download failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.FormatInt(result.SizeBytes, 10))
	w.Header().Set("X-Content-Hash", result.ContentHash)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Content)
}

// findPaper locates a paper by canonical ID across all result buckets.
func findPaper(state *pipeline.PipelineState, canonicalID string) *domain.Paper {
	buckets := [][]*domain.Paper{
		state.SynthesisReady,
		state.Sensitivity,
		state.ExcludedQuality,
		state.Uncertain,
		state.Acquired,
		state.FailedAcquisition,
	}
	for _, bucket := range buckets {
		for _, p := range bucket {
			if p.CanonicalID == canonicalID {
				return p
			}
		}
	}
	return nil
}
