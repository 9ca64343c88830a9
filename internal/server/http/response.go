package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/helixir/slr-pipeline-service/internal/domain"
)

// Run response types for JSON serialization.

type startRunResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

type runStatusResponse struct {
	RunID        string             `json:"run_id"`
	Query        string             `json:"query"`
	Status       string             `json:"status"`
	Phases       map[string]string  `json:"phases"`
	PRISMA       domain.PRISMAStats `json:"prisma"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	Duration     string             `json:"duration,omitempty"`
}

type runSummaryResponse struct {
	RunID             string     `json:"run_id"`
	Query             string     `json:"query"`
	Status            string     `json:"status"`
	Identified        int        `json:"identified"`
	IncludedSynthesis int        `json:"included_synthesis"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Duration          string     `json:"duration,omitempty"`
}

type listRunsResponse struct {
	Runs       []runSummaryResponse `json:"runs"`
	TotalCount int                  `json:"total_count"`
}

type cancelRunResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type prismaResponse struct {
	RunID  string             `json:"run_id"`
	Status string             `json:"status"`
	Flow   domain.PRISMAStats `json:"flow"`
}

type paperResponse struct {
	CanonicalID     string           `json:"canonical_id"`
	Title           string           `json:"title"`
	Abstract        string           `json:"abstract,omitempty"`
	Authors         []authorResponse `json:"authors,omitempty"`
	PublicationDate *time.Time       `json:"publication_date,omitempty"`
	PublicationYear int              `json:"publication_year,omitempty"`
	Venue           string           `json:"venue,omitempty"`
	Journal         string           `json:"journal,omitempty"`
	CitationCount   int              `json:"citation_count"`
	PdfURL          string           `json:"pdf_url,omitempty"`
	OpenAccess      bool             `json:"open_access"`

	ScreeningStatus     string  `json:"screening_status,omitempty"`
	ScreeningConfidence float64 `json:"screening_confidence,omitempty"`
	ScreeningReason     string  `json:"screening_reason,omitempty"`

	FullTextSource      string  `json:"full_text_source,omitempty"`
	RetrievalConfidence float64 `json:"retrieval_confidence,omitempty"`
	RetrievalQuality    float64 `json:"retrieval_quality,omitempty"`
	VirtualFullText     bool    `json:"virtual_full_text,omitempty"`

	QualityScore    float64  `json:"quality_score,omitempty"`
	QualityCategory string   `json:"quality_category,omitempty"`
	RiskFlags       []string `json:"risk_flags,omitempty"`
}

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

type listPapersResponse struct {
	Papers     []paperResponse `json:"papers"`
	Bucket     string          `json:"bucket"`
	TotalCount int             `json:"total_count"`
}

// Converter functions

func runToStatusResponse(r *domain.PipelineRun) runStatusResponse {
	phases := make(map[string]string, len(r.PhaseStatus))
	for phase, status := range r.PhaseStatus {
		phases[string(phase)] = string(status)
	}
	resp := runStatusResponse{
		RunID:        r.ID.String(),
		Query:        r.Request.Query,
		Status:       string(r.Status),
		Phases:       phases,
		PRISMA:       r.PRISMA,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
	}
	if d := r.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func runToSummary(r *domain.PipelineRun) runSummaryResponse {
	resp := runSummaryResponse{
		RunID:             r.ID.String(),
		Query:             r.Request.Query,
		Status:            string(r.Status),
		Identified:        r.PRISMA.Identified,
		IncludedSynthesis: r.PRISMA.IncludedSynthesis,
		CreatedAt:         r.CreatedAt,
		CompletedAt:       r.CompletedAt,
	}
	if d := r.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func paperToResponse(p *domain.Paper) paperResponse {
	authors := make([]authorResponse, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse{
			Name:        a.Name,
			Affiliation: a.Affiliation,
			ORCID:       a.ORCID,
		}
	}
	return paperResponse{
		CanonicalID:     p.CanonicalID,
		Title:           p.Title,
		Abstract:        p.Abstract,
		Authors:         authors,
		PublicationDate: p.PublicationDate,
		PublicationYear: p.PublicationYear,
		Venue:           p.Venue,
		Journal:         p.Journal,
		CitationCount:   p.CitationCount,
		PdfURL:          p.PDFURL,
		OpenAccess:      p.OpenAccess,

		ScreeningStatus:     string(p.ScreeningStatus),
		ScreeningConfidence: p.ScreeningConfidence,
		ScreeningReason:     p.ScreeningReason,

		FullTextSource:      string(p.FullTextSource),
		RetrievalConfidence: p.RetrievalConfidence,
		RetrievalQuality:    p.RetrievalQuality,
		VirtualFullText:     p.IsVirtualFullText,

		QualityScore:    p.QualityScore,
		QualityCategory: string(p.QualityCategory),
		RiskFlags:       p.RiskFlags,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
