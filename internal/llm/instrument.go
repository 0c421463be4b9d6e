package llm

import (
	"context"
	"time"

	"github.com/haasonsaas/retrochat/internal/observability"
)

// MeteredClient decorates a Client with Prometheus instrumentation:
// request counts and latency by provider/model, plus token consumption
// when the provider reports it.
type MeteredClient struct {
	inner   Client
	metrics *observability.Metrics
}

// Instrument wraps client with metrics recording. A nil metrics handle
// returns the client unchanged.
func Instrument(client Client, metrics *observability.Metrics) Client {
	if metrics == nil {
		return client
	}
	return &MeteredClient{inner: client, metrics: metrics}
}

// Generate delegates and records outcome, latency and token usage.
func (m *MeteredClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	resp, err := m.inner.Generate(ctx, req)
	elapsed := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordLLMRequest(m.inner.ProviderName(), m.inner.ModelName(), status, elapsed)

	if resp != nil && resp.TokenUsage != nil {
		input, output := 0, 0
		if resp.TokenUsage.InputTokens != nil {
			input = *resp.TokenUsage.InputTokens
		}
		if resp.TokenUsage.OutputTokens != nil {
			output = *resp.TokenUsage.OutputTokens
		}
		m.metrics.RecordTokens(m.inner.ProviderName(), m.inner.ModelName(), input, output)
	}

	return resp, err
}

// ProviderName delegates to the wrapped client.
func (m *MeteredClient) ProviderName() string { return m.inner.ProviderName() }

// ModelName delegates to the wrapped client.
func (m *MeteredClient) ModelName() string { return m.inner.ModelName() }

// HealthCheck delegates to the wrapped client.
func (m *MeteredClient) HealthCheck(ctx context.Context) error { return m.inner.HealthCheck(ctx) }

// EstimateTokens delegates to the wrapped client.
func (m *MeteredClient) EstimateTokens(text string) int { return m.inner.EstimateTokens(text) }
