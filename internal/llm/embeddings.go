package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// defaultEmbeddingModel is the default OpenAI embedding model.
	defaultEmbeddingModel = "text-embedding-3-small"
)

// embeddingRequest represents the OpenAI Embeddings API request body.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse represents the OpenAI Embeddings API response body.
type embeddingResponse struct {
	Data  []embeddingDatum `json:"data"`
	Model string           `json:"model"`
	Usage chatUsage        `json:"usage"`
}

// embeddingDatum is a single embedding vector, indexed by input position.
type embeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// OpenAIEmbedder implements Embedder using the OpenAI Embeddings API.
type OpenAIEmbedder struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates a new OpenAI embedding client.
func NewOpenAIEmbedder(cfg OpenAIConfig, timeout time.Duration, maxRetries int) *OpenAIEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultEmbeddingModel
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &OpenAIEmbedder{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		maxRetries: maxRetries,
		retryDelay: defaultOpenAIRetryDelay,
	}
}

// EmbedTexts embeds a batch of texts in a single API call, returning one
// vector per input in input order. Transient errors (5xx and 429) are
// retried up to maxRetries times.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embReq := embeddingRequest{
		Model: e.model,
		Input: texts,
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("openai: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		vectors, err := e.doRequest(ctx, embReq)
		if err == nil {
			return vectors, nil
		}

		if !isTransientError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("openai: exhausted %d retries: %w", e.maxRetries, lastErr)
}

// Provider returns the name of the embedding provider.
func (e *OpenAIEmbedder) Provider() string {
	return "openai"
}

// Model returns the embedding model identifier.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// doRequest performs a single API request to the OpenAI Embeddings endpoint.
func (e *OpenAIEmbedder) doRequest(ctx context.Context, embReq embeddingRequest) ([][]float32, error) {
	body, err := json.Marshal(embReq)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	endpoint := e.baseURL + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Provider:   "openai",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(resp.StatusCode, respBody)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	if len(embResp.Data) != len(embReq.Input) {
		return nil, fmt.Errorf("openai: expected %d embeddings, got %d", len(embReq.Input), len(embResp.Data))
	}

	// The API documents data as ordered, but index it explicitly.
	vectors := make([][]float32, len(embResp.Data))
	for _, datum := range embResp.Data {
		if datum.Index < 0 || datum.Index >= len(vectors) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", datum.Index)
		}
		vectors[datum.Index] = datum.Embedding
	}

	return vectors, nil
}
