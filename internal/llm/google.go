// This file implements the Google AI provider using the Google Gen AI Go SDK.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

// GoogleAPIKeyEnv names the environment variable holding the Google AI key.
const GoogleAPIKeyEnv = "GOOGLE_AI_API_KEY"

const (
	googleProviderName   = "google_ai"
	googleDefaultModel   = "gemini-2.5-flash-lite"
	googleDefaultTimeout = 60 * time.Second
)

// GoogleConfig holds configuration for creating a GoogleClient.
// All fields except APIKey are optional and default during construction.
type GoogleConfig struct {
	// APIKey is the Google AI API authentication key (required).
	// Obtain from: https://aistudio.google.com/apikey
	APIKey string

	// Model overrides the default model. Default: gemini-2.5-flash-lite
	Model string

	// TimeoutSecs bounds each request. Default: 60
	TimeoutSecs int64

	// MaxRetries sets retry attempts for transient failures. Default: 3
	MaxRetries int
}

// GoogleConfigFromEnv builds a config from GOOGLE_AI_API_KEY.
func GoogleConfigFromEnv() GoogleConfig {
	return GoogleConfig{APIKey: os.Getenv(GoogleAPIKeyEnv)}
}

// GoogleClient implements Client against the Google AI (Gemini) API.
// Safe for concurrent use; each Generate call is independent.
type GoogleClient struct {
	client      *genai.Client
	model       string
	timeoutSecs int64
	maxRetries  int
}

// NewGoogleClient validates the configuration, applies defaults, and
// initializes the underlying Gen AI SDK client. A missing API key is a
// configuration error, surfaced at construction rather than first use.
func NewGoogleClient(ctx context.Context, config GoogleConfig) (*GoogleClient, error) {
	if config.APIKey == "" {
		return nil, NewError(KindConfiguration, googleProviderName,
			fmt.Sprintf("%s environment variable is not set", GoogleAPIKeyEnv))
	}
	if config.Model == "" {
		config.Model = googleDefaultModel
	}
	if config.TimeoutSecs <= 0 {
		config.TimeoutSecs = int64(googleDefaultTimeout / time.Second)
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewError(KindConfiguration, googleProviderName,
			fmt.Sprintf("failed to create client: %v", err))
	}

	return &GoogleClient{
		client:      client,
		model:       config.Model,
		timeoutSecs: config.TimeoutSecs,
		maxRetries:  config.MaxRetries,
	}, nil
}

// ProviderName returns "google_ai".
func (c *GoogleClient) ProviderName() string { return googleProviderName }

// ModelName returns the configured model.
func (c *GoogleClient) ModelName() string { return c.model }

// HealthCheck verifies credentials are configured.
func (c *GoogleClient) HealthCheck(_ context.Context) error {
	if c.client == nil {
		return NewError(KindConfiguration, googleProviderName, "client not initialized")
	}
	return nil
}

// EstimateTokens approximates the token count of text.
func (c *GoogleClient) EstimateTokens(text string) int { return estimateTokens(text) }

// Generate performs one completion call against the Gemini API, enforcing
// the configured timeout and mapping SDK failures onto the error taxonomy.
func (c *GoogleClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, clampTimeout(c.timeoutSecs, googleDefaultTimeout))
	defer cancel()

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Prompt}}},
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens != nil {
		// #nosec G115 -- output caps stay far below int32 range
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if req.Temperature != nil {
		config.Temperature = req.Temperature
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError(googleProviderName, c.timeoutSecs)
		}
		return nil, WrapError(googleProviderName, c.model, err)
	}

	return c.convertResponse(resp)
}

func (c *GoogleClient) convertResponse(resp *genai.GenerateContentResponse) (*GenerateResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, NewError(KindInvalidResponse, googleProviderName, "response contains no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, NewError(KindContentBlocked, googleProviderName, "content blocked by safety filters")
	}

	var text string
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil {
				text += part.Text
			}
		}
	}
	if text == "" {
		return nil, NewError(KindInvalidResponse, googleProviderName, "response contains no text parts")
	}

	out := &GenerateResponse{
		Text:         text,
		ModelUsed:    c.model,
		FinishReason: string(candidate.FinishReason),
	}

	if usage := resp.UsageMetadata; usage != nil {
		in := int(usage.PromptTokenCount)
		outTokens := int(usage.CandidatesTokenCount)
		total := int(usage.TotalTokenCount)
		out.TokenUsage = &TokenUsage{
			InputTokens:  &in,
			OutputTokens: &outTokens,
			TotalTokens:  &total,
		}
	}

	return out, nil
}
