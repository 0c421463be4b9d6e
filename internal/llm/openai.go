// This file implements an OpenAI-compatible provider. Pointing BaseURL at
// any compatible endpoint (OpenRouter, local inference servers) works too.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAPIKeyEnv names the environment variable holding the OpenAI key.
const OpenAIAPIKeyEnv = "OPENAI_API_KEY"

const (
	openaiProviderName   = "openai"
	openaiDefaultModel   = "gpt-4o-mini"
	openaiDefaultTimeout = 60 * time.Second
)

// OpenAIConfig holds configuration for creating an OpenAIClient.
type OpenAIConfig struct {
	// APIKey authenticates against the endpoint (required).
	APIKey string

	// Model overrides the default model. Default: gpt-4o-mini
	Model string

	// BaseURL points at an alternative OpenAI-compatible endpoint.
	BaseURL string

	// TimeoutSecs bounds each request. Default: 60
	TimeoutSecs int64
}

// OpenAIConfigFromEnv builds a config from OPENAI_API_KEY.
func OpenAIConfigFromEnv() OpenAIConfig {
	return OpenAIConfig{APIKey: os.Getenv(OpenAIAPIKeyEnv)}
}

// OpenAIClient implements Client against OpenAI-compatible chat APIs.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	timeoutSecs int64
}

// NewOpenAIClient validates the configuration and builds the SDK client.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, NewError(KindConfiguration, openaiProviderName,
			fmt.Sprintf("%s environment variable is not set", OpenAIAPIKeyEnv))
	}
	if config.Model == "" {
		config.Model = openaiDefaultModel
	}
	if config.TimeoutSecs <= 0 {
		config.TimeoutSecs = int64(openaiDefaultTimeout / time.Second)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		timeoutSecs: config.TimeoutSecs,
	}, nil
}

// ProviderName returns "openai".
func (c *OpenAIClient) ProviderName() string { return openaiProviderName }

// ModelName returns the configured model.
func (c *OpenAIClient) ModelName() string { return c.model }

// HealthCheck verifies credentials are configured.
func (c *OpenAIClient) HealthCheck(_ context.Context) error {
	if c.client == nil {
		return NewError(KindConfiguration, openaiProviderName, "client not initialized")
	}
	return nil
}

// EstimateTokens approximates the token count of text.
func (c *OpenAIClient) EstimateTokens(text string) int { return estimateTokens(text) }

// Generate performs one chat completion call.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, clampTimeout(c.timeoutSecs, openaiDefaultTimeout))
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError(openaiProviderName, c.timeoutSecs)
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &Error{
				Kind:     ClassifyStatus(apiErr.HTTPStatusCode),
				Provider: openaiProviderName,
				Model:    c.model,
				Message:  apiErr.Message,
				Cause:    err,
			}
		}
		return nil, WrapError(openaiProviderName, c.model, err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(KindInvalidResponse, openaiProviderName, "response contains no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, NewError(KindContentBlocked, openaiProviderName, "content blocked by safety filters")
	}

	in := resp.Usage.PromptTokens
	out := resp.Usage.CompletionTokens
	total := resp.Usage.TotalTokens

	return &GenerateResponse{
		Text:         choice.Message.Content,
		ModelUsed:    resp.Model,
		FinishReason: string(choice.FinishReason),
		TokenUsage: &TokenUsage{
			InputTokens:  &in,
			OutputTokens: &out,
			TotalTokens:  &total,
		},
	}, nil
}
