package llm

import (
	"context"
	"time"

	"github.com/haasonsaas/retrochat/internal/backoff"
)

// GenerateRequest is a single-shot text generation request.
type GenerateRequest struct {
	Prompt      string
	MaxTokens   *int
	Temperature *float32
}

// NewGenerateRequest creates a request with only a prompt.
func NewGenerateRequest(prompt string) GenerateRequest {
	return GenerateRequest{Prompt: prompt}
}

// WithMaxTokens sets the output token cap.
func (r GenerateRequest) WithMaxTokens(n int) GenerateRequest {
	r.MaxTokens = &n
	return r
}

// WithTemperature sets the sampling temperature.
func (r GenerateRequest) WithTemperature(t float32) GenerateRequest {
	r.Temperature = &t
	return r
}

// TokenUsage reports token counts when the provider returns them.
type TokenUsage struct {
	InputTokens  *int `json:"input_tokens,omitempty"`
	OutputTokens *int `json:"output_tokens,omitempty"`
	TotalTokens  *int `json:"total_tokens,omitempty"`
}

// GenerateResponse is the provider-agnostic generation result.
type GenerateResponse struct {
	Text         string            `json:"text"`
	TokenUsage   *TokenUsage       `json:"token_usage,omitempty"`
	ModelUsed    string            `json:"model_used"`
	FinishReason string            `json:"finish_reason"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Client is the capability set the analysis core depends on. The core
// never references a concrete provider; adapters for Google AI, an
// OpenAI-compatible endpoint, and CLI-bridged tools implement it.
type Client interface {
	// Generate performs one completion call.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// ProviderName returns the stable lowercase provider identifier.
	ProviderName() string

	// ModelName returns the configured model.
	ModelName() string

	// HealthCheck verifies the client is usable (credentials present,
	// binary on PATH). It does not issue a billable request.
	HealthCheck(ctx context.Context) error

	// EstimateTokens is a cheap character-based heuristic used for
	// logging and bar visualizations, never for billing or slicing.
	EstimateTokens(text string) int
}

// estimateTokens approximates token counts at ~4 characters per token,
// which is typical for English text. Shared by all adapters.
func estimateTokens(text string) int {
	return len(text) / 4
}

// GenerateWithRetry calls Generate up to maxRetries+1 times. Retryable
// errors wait for the error-suggested delay (rate limit 60s, server error
// 30s, timeout 5s); errors without a suggestion fall back to exponential
// backoff. Non-retryable errors return immediately.
func GenerateWithRetry(ctx context.Context, client Client, req GenerateRequest, maxRetries int) (*GenerateResponse, error) {
	policy := backoff.DefaultPolicy()

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := client.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		llmErr := WrapError(client.ProviderName(), client.ModelName(), err)
		if !llmErr.IsRetryable() || attempt > maxRetries {
			return nil, llmErr
		}

		delay := llmErr.RetryAfter()
		if delay == 0 {
			delay = backoff.ComputeBackoff(policy, attempt)
		}
		if err := backoff.SleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, WrapError(client.ProviderName(), client.ModelName(), lastErr)
}

// clampTimeout bounds a configured per-request timeout, defaulting when unset.
func clampTimeout(secs int64, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
