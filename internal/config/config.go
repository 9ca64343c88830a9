// Package config provides configuration management for the SLR pipeline service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the SLR pipeline service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings for screening arbitration and embeddings.
	LLM LLMConfig `mapstructure:"llm"`
	// Kafka contains Kafka publisher settings for run lifecycle events.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Cache contains result cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Dedup contains deduplication thresholds.
	Dedup DedupConfig `mapstructure:"dedup"`
	// Screening contains screening cascade thresholds.
	Screening ScreeningConfig `mapstructure:"screening"`
	// Acquisition contains full-text acquisition settings.
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	// PaperSources contains paper source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	// Runs contains run manager settings.
	Runs RunsConfig `mapstructure:"runs"`
}

// RunsConfig holds run manager settings.
type RunsConfig struct {
	// MaxActive bounds the number of concurrently executing pipeline runs.
	MaxActive int `mapstructure:"max_active"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. SSE
	// progress streams need this to be generous.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the completion provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// EmbeddingModel is the model for embeddings.
	EmbeddingModel string `mapstructure:"embedding_model"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from SLRPIPELINE_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from SLRPIPELINE_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// KafkaConfig holds Kafka publisher settings for run lifecycle events.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish run events to.
	Topic string `mapstructure:"topic"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// MaxEntries caps the number of cached entries.
	MaxEntries int `mapstructure:"max_entries"`
	// MaxBytes caps the total stored payload size.
	MaxBytes int64 `mapstructure:"max_bytes"`
	// DefaultTTL is the TTL assigned before adaptation kicks in.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	// DisableCompression turns off compression of large payloads.
	DisableCompression bool `mapstructure:"disable_compression"`
	// DisableAdaptiveTTL pins the assigned TTL to DefaultTTL.
	DisableAdaptiveTTL bool `mapstructure:"disable_adaptive_ttl"`
}

// DedupConfig holds deduplication thresholds.
type DedupConfig struct {
	// TitleThreshold is the normalized title similarity above which two
	// papers are considered duplicates (0.0-1.0).
	TitleThreshold float64 `mapstructure:"title_threshold"`
	// AuthorThreshold is the author overlap required to confirm a
	// near-duplicate title match (0.0-1.0).
	AuthorThreshold float64 `mapstructure:"author_threshold"`
}

// ScreeningConfig holds screening cascade thresholds.
type ScreeningConfig struct {
	// LowThreshold is the semantic score below which papers are excluded.
	LowThreshold float64 `mapstructure:"low_threshold"`
	// HighThreshold is the semantic score at or above which papers are included.
	HighThreshold float64 `mapstructure:"high_threshold"`
	// ConfidenceFloor is the minimum arbitration confidence; decisions
	// below it escalate to human review.
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
}

// AcquisitionConfig holds full-text acquisition settings.
type AcquisitionConfig struct {
	// MaxRetries is the retry budget per fetch for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBaseDelay is the base delay for exponential retry backoff.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// MaxConcurrency bounds the batch acquisition worker pool.
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex PaperSourceConfig `mapstructure:"openalex"`
	// ArXiv contains arXiv API settings.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
	// Unpaywall contains Unpaywall API settings.
	Unpaywall PaperSourceConfig `mapstructure:"unpaywall"`
	// CORE contains CORE API settings.
	CORE PaperSourceConfig `mapstructure:"core"`
	// PubMed contains PubMed E-utilities API settings.
	PubMed PaperSourceConfig `mapstructure:"pubmed"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g.
	// SLRPIPELINE_PAPER_SOURCES_CORE_API_KEY).
	APIKey string `mapstructure:"-"`
	// Email identifies the caller to sources that require a contact
	// address instead of a key (Unpaywall, OpenAlex polite pool).
	Email string `mapstructure:"email"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("SLRPIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/slr-pipeline-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	// LLM provider API keys.
	cfg.LLM.OpenAI.APIKey = os.Getenv("SLRPIPELINE_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv("SLRPIPELINE_LLM_ANTHROPIC_API_KEY")

	// Paper source API keys.
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv("SLRPIPELINE_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.PaperSources.OpenAlex.APIKey = os.Getenv("SLRPIPELINE_PAPER_SOURCES_OPENALEX_API_KEY")
	cfg.PaperSources.ArXiv.APIKey = os.Getenv("SLRPIPELINE_PAPER_SOURCES_ARXIV_API_KEY")
	cfg.PaperSources.CORE.APIKey = os.Getenv("SLRPIPELINE_PAPER_SOURCES_CORE_API_KEY")
	cfg.PaperSources.PubMed.APIKey = os.Getenv("SLRPIPELINE_PAPER_SOURCES_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	// SSE progress streams stay open for the duration of a run.
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4-turbo")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-sonnet-20240229")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.slr_pipeline.runs")

	// Cache defaults
	v.SetDefault("cache.max_entries", 2000)
	v.SetDefault("cache.max_bytes", 268435456)
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.disable_compression", false)
	v.SetDefault("cache.disable_adaptive_ttl", false)

	// Dedup defaults
	v.SetDefault("dedup.title_threshold", 0.9)
	v.SetDefault("dedup.author_threshold", 0.5)

	// Screening defaults
	v.SetDefault("screening.low_threshold", 0.5)
	v.SetDefault("screening.high_threshold", 0.7)
	v.SetDefault("screening.confidence_floor", 0.6)

	// Acquisition defaults
	v.SetDefault("acquisition.max_retries", 2)
	v.SetDefault("acquisition.retry_base_delay", "500ms")
	v.SetDefault("acquisition.max_concurrency", 5)

	// Paper sources defaults - Semantic Scholar
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 10.0)
	v.SetDefault("paper_sources.semantic_scholar.burst_size", 10)
	v.SetDefault("paper_sources.semantic_scholar.max_results", 100)

	// Paper sources defaults - OpenAlex
	v.SetDefault("paper_sources.openalex.enabled", true)
	v.SetDefault("paper_sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("paper_sources.openalex.timeout", "30s")
	v.SetDefault("paper_sources.openalex.rate_limit", 10.0)
	v.SetDefault("paper_sources.openalex.burst_size", 10)
	v.SetDefault("paper_sources.openalex.max_results", 200)

	// Paper sources defaults - arXiv
	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("paper_sources.arxiv.burst_size", 3)
	v.SetDefault("paper_sources.arxiv.max_results", 100)

	// Paper sources defaults - Unpaywall (requires a contact email, no key)
	v.SetDefault("paper_sources.unpaywall.enabled", true)
	v.SetDefault("paper_sources.unpaywall.base_url", "https://api.unpaywall.org/v2")
	v.SetDefault("paper_sources.unpaywall.email", "")
	v.SetDefault("paper_sources.unpaywall.timeout", "30s")
	v.SetDefault("paper_sources.unpaywall.rate_limit", 10.0)
	v.SetDefault("paper_sources.unpaywall.burst_size", 10)

	// Paper sources defaults - CORE (disabled by default, requires API key)
	v.SetDefault("paper_sources.core.enabled", false)
	v.SetDefault("paper_sources.core.base_url", "https://api.core.ac.uk/v3")
	v.SetDefault("paper_sources.core.timeout", "30s")
	v.SetDefault("paper_sources.core.rate_limit", 5.0)
	v.SetDefault("paper_sources.core.burst_size", 5)

	// Paper sources defaults - PubMed (API key optional, raises rate limit to 10/s)
	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("paper_sources.pubmed.timeout", "30s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0) // NCBI allows 3 req/sec without a key
	v.SetDefault("paper_sources.pubmed.burst_size", 3)
	v.SetDefault("paper_sources.pubmed.max_results", 100)

	// Run manager defaults
	v.SetDefault("runs.max_active", 4)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate screening thresholds
	if c.Screening.LowThreshold < 0 || c.Screening.LowThreshold > 1 {
		return fmt.Errorf("screening low_threshold must be between 0 and 1")
	}
	if c.Screening.HighThreshold < 0 || c.Screening.HighThreshold > 1 {
		return fmt.Errorf("screening high_threshold must be between 0 and 1")
	}
	if c.Screening.LowThreshold >= c.Screening.HighThreshold {
		return fmt.Errorf("screening low_threshold (%.2f) must be below high_threshold (%.2f)",
			c.Screening.LowThreshold, c.Screening.HighThreshold)
	}
	if c.Screening.ConfidenceFloor < 0 || c.Screening.ConfidenceFloor > 1 {
		return fmt.Errorf("screening confidence_floor must be between 0 and 1")
	}

	// Validate dedup thresholds
	if c.Dedup.TitleThreshold < 0 || c.Dedup.TitleThreshold > 1 {
		return fmt.Errorf("dedup title_threshold must be between 0 and 1")
	}
	if c.Dedup.AuthorThreshold < 0 || c.Dedup.AuthorThreshold > 1 {
		return fmt.Errorf("dedup author_threshold must be between 0 and 1")
	}

	// Validate kafka config
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	// Validate that the configured LLM provider has its required API key set.
	// An empty provider disables LLM arbitration; borderline papers then
	// escalate straight to human review.
	switch strings.ToLower(c.LLM.Provider) {
	case "":
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires SLRPIPELINE_LLM_OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires SLRPIPELINE_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	// Unpaywall identifies callers by email; without one the source must
	// stay disabled.
	if c.PaperSources.Unpaywall.Enabled && c.PaperSources.Unpaywall.Email == "" {
		return fmt.Errorf("unpaywall requires paper_sources.unpaywall.email when enabled")
	}
	if c.PaperSources.CORE.Enabled && c.PaperSources.CORE.APIKey == "" {
		return fmt.Errorf("core requires SLRPIPELINE_PAPER_SOURCES_CORE_API_KEY when enabled")
	}

	return nil
}
