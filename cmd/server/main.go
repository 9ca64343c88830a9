// Package main provides the entry point for the SLR pipeline service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/slr-pipeline-service/internal/acquisition"
	"github.com/helixir/slr-pipeline-service/internal/cache"
	"github.com/helixir/slr-pipeline-service/internal/config"
	"github.com/helixir/slr-pipeline-service/internal/dedup"
	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/events"
	"github.com/helixir/slr-pipeline-service/internal/llm"
	"github.com/helixir/slr-pipeline-service/internal/observability"
	"github.com/helixir/slr-pipeline-service/internal/papersources"
	"github.com/helixir/slr-pipeline-service/internal/papersources/arxiv"
	"github.com/helixir/slr-pipeline-service/internal/papersources/core"
	"github.com/helixir/slr-pipeline-service/internal/papersources/openalex"
	"github.com/helixir/slr-pipeline-service/internal/papersources/pubmed"
	"github.com/helixir/slr-pipeline-service/internal/papersources/semanticscholar"
	"github.com/helixir/slr-pipeline-service/internal/papersources/unpaywall"
	"github.com/helixir/slr-pipeline-service/internal/pdf"
	"github.com/helixir/slr-pipeline-service/internal/pipeline"
	"github.com/helixir/slr-pipeline-service/internal/quality"
	"github.com/helixir/slr-pipeline-service/internal/runs"
	"github.com/helixir/slr-pipeline-service/internal/screening"
	httpserver "github.com/helixir/slr-pipeline-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("slr-pipeline-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Register paper sources and full-text fetchers.
	registry := buildRegistry(cfg, logger)

	// Result cache shared by the acquisition waterfall.
	resultCache := cache.New(cache.Config{
		MaxEntries:         cfg.Cache.MaxEntries,
		MaxBytes:           cfg.Cache.MaxBytes,
		DefaultTTL:         cfg.Cache.DefaultTTL,
		DisableCompression: cfg.Cache.DisableCompression,
		DisableAdaptiveTTL: cfg.Cache.DisableAdaptiveTTL,
	})

	// LLM clients for the screening cascade. The embedder needs an OpenAI
	// key; the completer needs a configured provider. Both are optional:
	// without them screening falls back to keyword overlap and sends
	// borderline papers straight to human review.
	llmCfg := llm.FactoryConfig{
		Provider:       cfg.LLM.Provider,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	}

	var embedder llm.Embedder
	if cfg.LLM.OpenAI.APIKey != "" {
		embedder, err = llm.NewEmbedderFromConfig(llmCfg)
		if err != nil {
			return fmt.Errorf("create embedder: %w", err)
		}
	} else {
		logger.Warn().Msg("no OpenAI API key; semantic screening falls back to keyword overlap")
	}

	var completer llm.Completer
	if cfg.LLM.Provider != "" {
		completer, err = llm.NewCompleter(llmCfg)
		if err != nil {
			return fmt.Errorf("create completer: %w", err)
		}
	} else {
		logger.Warn().Msg("no LLM provider configured; borderline papers escalate to human review")
	}

	// Pipeline engines.
	screener, err := screening.NewEngine(embedder, completer, screening.Config{
		LowThreshold:    cfg.Screening.LowThreshold,
		HighThreshold:   cfg.Screening.HighThreshold,
		ConfidenceFloor: cfg.Screening.ConfidenceFloor,
	}, logger)
	if err != nil {
		return fmt.Errorf("create screening engine: %w", err)
	}

	acquirer := acquisition.NewEngine(registry, resultCache, acquisition.Config{
		MaxRetries:     cfg.Acquisition.MaxRetries,
		RetryBaseDelay: cfg.Acquisition.RetryBaseDelay,
		MaxConcurrency: cfg.Acquisition.MaxConcurrency,
	}, logger)

	assessor := quality.NewEngine(logger)

	checker := dedup.NewChecker(dedup.Config{
		TitleThreshold:  cfg.Dedup.TitleThreshold,
		AuthorThreshold: cfg.Dedup.AuthorThreshold,
	})

	// Metrics are optional; a nil bundle disables recording everywhere.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("slr_pipeline")
	}

	searcher := pipeline.NewRegistrySearcher(registry, logger, metrics)

	// Run lifecycle event publisher.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.Config{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: "slr-pipeline-service",
		}, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).
			Msg("kafka publisher enabled")
	}

	// The orchestrator reports progress to the run manager, which fans it
	// out to SSE subscribers. The manager drives the orchestrator, so the
	// progress callback closes over a variable assigned right after.
	var mgr *runs.Manager
	orch := pipeline.NewOrchestrator(searcher, checker, screener, acquirer, assessor,
		pipeline.Config{AcquisitionConcurrency: cfg.Acquisition.MaxConcurrency},
		logger,
		pipeline.WithProgress(func(ev domain.ProgressEvent) { mgr.Dispatch(ev) }),
		pipeline.WithPublisher(publisher),
		pipeline.WithMetrics(metrics),
	)

	mgr = runs.NewManager(orch, runs.Config{MaxActive: cfg.Runs.MaxActive}, logger, runs.WithMetrics(metrics))

	// PDF proxy downloader.
	downloader := pdf.NewDownloader(pdf.Config{})

	// HTTP API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, mgr, downloader, logger)

	// Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", httpCfg.Address).Msg("HTTP API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("slr-pipeline-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down slr-pipeline-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Cancel in-flight runs and wait for their goroutines to drain.
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("run manager shutdown incomplete")
	}

	if err := publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("event publisher close error")
	}

	logger.Info().Msg("slr-pipeline-service shutdown complete")
	return nil
}

// buildRegistry constructs the paper source registry from configuration.
// Search sources feed the identification phase; full-text fetchers feed the
// acquisition waterfall.
func buildRegistry(cfg *config.Config, logger zerolog.Logger) *papersources.Registry {
	registry := papersources.NewRegistry()
	ps := cfg.PaperSources

	s2 := semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    ps.SemanticScholar.BaseURL,
		APIKey:     ps.SemanticScholar.APIKey,
		Timeout:    ps.SemanticScholar.Timeout,
		RateLimit:  ps.SemanticScholar.RateLimit,
		BurstSize:  ps.SemanticScholar.BurstSize,
		MaxResults: ps.SemanticScholar.MaxResults,
		Enabled:    ps.SemanticScholar.Enabled,
	}, nil)
	registry.Register(s2)
	registry.RegisterFetcher(s2)

	oa := openalex.New(openalex.Config{
		BaseURL:    ps.OpenAlex.BaseURL,
		Email:      ps.OpenAlex.Email,
		Timeout:    ps.OpenAlex.Timeout,
		RateLimit:  ps.OpenAlex.RateLimit,
		BurstSize:  ps.OpenAlex.BurstSize,
		MaxResults: ps.OpenAlex.MaxResults,
		Enabled:    ps.OpenAlex.Enabled,
	})
	registry.Register(oa)

	ax := arxiv.New(arxiv.Config{
		BaseURL:    ps.ArXiv.BaseURL,
		Timeout:    ps.ArXiv.Timeout,
		RateLimit:  ps.ArXiv.RateLimit,
		BurstSize:  ps.ArXiv.BurstSize,
		MaxResults: ps.ArXiv.MaxResults,
		Enabled:    ps.ArXiv.Enabled,
	})
	registry.Register(ax)
	registry.RegisterFetcher(ax)

	pm := pubmed.New(pubmed.Config{
		BaseURL:    ps.PubMed.BaseURL,
		APIKey:     ps.PubMed.APIKey,
		Timeout:    ps.PubMed.Timeout,
		RateLimit:  ps.PubMed.RateLimit,
		BurstSize:  ps.PubMed.BurstSize,
		MaxResults: ps.PubMed.MaxResults,
		Enabled:    ps.PubMed.Enabled,
	})
	registry.Register(pm)

	// Unpaywall only locates open-access full text; it is not a search source.
	uw := unpaywall.New(unpaywall.Config{
		BaseURL:   ps.Unpaywall.BaseURL,
		Email:     ps.Unpaywall.Email,
		Timeout:   ps.Unpaywall.Timeout,
		RateLimit: ps.Unpaywall.RateLimit,
		BurstSize: ps.Unpaywall.BurstSize,
		Enabled:   ps.Unpaywall.Enabled,
	})
	registry.RegisterFetcher(uw)

	// CORE only contributes to the acquisition waterfall and needs an API key.
	if ps.CORE.Enabled {
		registry.RegisterFetcher(core.New(core.Config{
			BaseURL:   ps.CORE.BaseURL,
			APIKey:    ps.CORE.APIKey,
			Timeout:   ps.CORE.Timeout,
			RateLimit: ps.CORE.RateLimit,
			BurstSize: ps.CORE.BurstSize,
			Enabled:   true,
		}))
	} else {
		logger.Info().Msg("CORE fetcher disabled (no API key)")
	}

	return registry
}
