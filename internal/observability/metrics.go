package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the SLR pipeline service.
// Metrics are organized by subsystem: runs, phases, searches, screening,
// acquisition, quality, cache, sources, and LLM operations. All counters and
// histograms are registered via promauto for automatic registration with the
// default Prometheus registry.
type Metrics struct {
	// RunsStarted counts the total number of pipeline runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts runs that reached a terminal state, labeled by status.
	RunsCompleted *prometheus.CounterVec

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// PhaseDuration observes phase duration in seconds, labeled by phase.
	PhaseDuration *prometheus.HistogramVec

	// PhaseFailures counts phase failures, labeled by phase.
	PhaseFailures *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by paper source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by paper source.
	SearchesFailed *prometheus.CounterVec

	// PapersPerSearch observes the distribution of papers returned per search, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// PapersDuplicate counts duplicate papers detected during deduplication.
	PapersDuplicate prometheus.Counter

	// ScreeningDecisions counts screening decisions, labeled by status and deciding phase.
	ScreeningDecisions *prometheus.CounterVec

	// ScreeningEscalations counts papers escalated to human review.
	ScreeningEscalations prometheus.Counter

	// PapersRetrieved counts full texts retrieved, labeled by source.
	PapersRetrieved *prometheus.CounterVec

	// PapersVirtual counts virtual full texts synthesized from metadata.
	PapersVirtual prometheus.Counter

	// PapersNotRetrieved counts papers whose full-text acquisition failed entirely.
	PapersNotRetrieved prometheus.Counter

	// QualityAssessments counts quality assessments, labeled by category.
	QualityAssessments *prometheus.CounterVec

	// QualityScores observes the distribution of quality scores (0-100).
	QualityScores prometheus.Histogram

	// CacheHits counts result cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts result cache misses.
	CacheMisses prometheus.Counter

	// CacheEvictions counts result cache evictions.
	CacheEvictions prometheus.Counter

	// SourceRequestsTotal counts HTTP requests to paper source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to paper source APIs, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to paper source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from paper source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of pipeline runs started",
		}),
		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of pipeline runs reaching a terminal state by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),

		// Phases
		PhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases in seconds by phase",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		PhaseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_failures_total",
			Help:      "Total number of pipeline phase failures by phase",
		}, []string{"phase"}),

		// Searches
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of paper searches completed by source",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of paper searches that failed by source",
		}, []string{"source"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"source"}),
		PapersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of duplicate papers found",
		}),

		// Screening
		ScreeningDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screening_decisions_total",
			Help:      "Total number of screening decisions by status and deciding phase",
		}, []string{"status", "phase"}),
		ScreeningEscalations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screening_escalations_total",
			Help:      "Total number of papers escalated to human review",
		}),

		// Acquisition
		PapersRetrieved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_retrieved_total",
			Help:      "Total number of full texts retrieved by source",
		}, []string{"source"}),
		PapersVirtual: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_virtual_total",
			Help:      "Total number of virtual full texts synthesized from metadata",
		}),
		PapersNotRetrieved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_not_retrieved_total",
			Help:      "Total number of papers with no retrievable full text",
		}),

		// Quality
		QualityAssessments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_assessments_total",
			Help:      "Total number of quality assessments by category",
		}, []string{"category"}),
		QualityScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quality_scores",
			Help:      "Distribution of quality assessment scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		// Cache
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of result cache evictions",
		}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to paper sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to paper sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to paper sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from paper sources",
		}, []string{"source"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordRunStarted records that a pipeline run has started.
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunFinished records a run reaching a terminal state.
func (m *Metrics) RecordRunFinished(status string, durationSeconds float64) {
	m.RunsCompleted.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordPhaseCompleted records a completed phase.
func (m *Metrics) RecordPhaseCompleted(phase string, durationSeconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordPhaseFailed records a failed phase.
func (m *Metrics) RecordPhaseFailed(phase string, durationSeconds float64) {
	m.PhaseFailures.WithLabelValues(phase).Inc()
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(source string, paperCount int) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(source string) {
	m.SearchesFailed.WithLabelValues(source).Inc()
}

// RecordPaperDuplicates records duplicate papers removed during deduplication.
func (m *Metrics) RecordPaperDuplicates(count int) {
	m.PapersDuplicate.Add(float64(count))
}

// RecordScreeningDecision records one screening decision.
func (m *Metrics) RecordScreeningDecision(status, phase string) {
	m.ScreeningDecisions.WithLabelValues(status, phase).Inc()
}

// RecordScreeningEscalation records a paper escalated to human review.
func (m *Metrics) RecordScreeningEscalation() {
	m.ScreeningEscalations.Inc()
}

// RecordPaperRetrieved records a successful full-text retrieval.
func (m *Metrics) RecordPaperRetrieved(source string, virtual bool) {
	m.PapersRetrieved.WithLabelValues(source).Inc()
	if virtual {
		m.PapersVirtual.Inc()
	}
}

// RecordPaperNotRetrieved records a paper with no retrievable full text.
func (m *Metrics) RecordPaperNotRetrieved() {
	m.PapersNotRetrieved.Inc()
}

// RecordQualityAssessment records one quality assessment.
func (m *Metrics) RecordQualityAssessment(category string, score float64) {
	m.QualityAssessments.WithLabelValues(category).Inc()
	m.QualityScores.Observe(score)
}

// RecordCacheHit records a result cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a result cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordCacheEvictions records cache evictions.
func (m *Metrics) RecordCacheEvictions(count int) {
	m.CacheEvictions.Add(float64(count))
}

// RecordSourceRequest records a request to a paper source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a paper source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
