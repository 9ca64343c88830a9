// Package observability provides logging and metrics support for the SLR
// pipeline service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for runs, phases, screening, acquisition, and sources
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("run_id", runID).Msg("pipeline run started")
//
// Add run context to logger:
//
//	logger = observability.WithRunContext(logger, requestID, runID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("slr_pipeline")
//
// Record metrics:
//
//	metrics.RecordRunStarted()
//	metrics.RecordSearchCompleted("semantic_scholar", 42)
//	metrics.RecordQualityAssessment("high", 85.5)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithRunID(ctx, runID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	runID := observability.RunIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - run_id: Pipeline run identifier
//   - phase: Pipeline phase (search, screening, acquisition, quality)
//   - query: Boolean search query
//   - source: Paper source (semantic_scholar, openalex, etc.)
//   - canonical_id: Paper identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
