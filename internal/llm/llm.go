// Package llm provides LLM provider clients for the SLR pipeline.
//
// Two capabilities are exposed: text completion (used by the screening
// engine for inclusion/exclusion arbitration) and text embedding (used for
// semantic similarity against the review criteria). Completions are
// available from OpenAI and Anthropic; embeddings from OpenAI.
//
// Example usage:
//
//	completer, err := llm.NewCompleter(cfg)
//	result, err := completer.Complete(ctx, llm.CompletionRequest{
//		System: "You are a systematic review screener.",
//		Prompt: "DECISION/CONFIDENCE/REASON for the following paper...",
//	})
package llm

import "context"

// CompletionRequest contains the prompts and limits for a single completion.
type CompletionRequest struct {
	// System is the system-level instruction for the model.
	System string

	// Prompt is the user-level prompt.
	Prompt string

	// MaxTokens caps the response length. Zero means the provider default.
	MaxTokens int
}

// CompletionResult contains the model output and usage metadata.
type CompletionResult struct {
	// Content is the raw text returned by the model.
	Content string

	// Model is the model that produced the response.
	Model string

	// InputTokens is the number of input tokens used.
	InputTokens int

	// OutputTokens is the number of output tokens used.
	OutputTokens int
}

// Completer defines the interface for LLM text completion.
//
// Implementations handle provider-specific API calls, retries on transient
// errors, and error wrapping while conforming to this unified interface.
type Completer interface {
	// Complete sends the request to the provider and returns the response.
	// The context should be used for cancellation and deadline propagation.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// Embedder defines the interface for text embedding.
type Embedder interface {
	// EmbedTexts embeds a batch of texts, returning one vector per input in
	// the same order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Provider returns the name of the embedding provider.
	Provider() string

	// Model returns the embedding model identifier.
	Model() string
}
