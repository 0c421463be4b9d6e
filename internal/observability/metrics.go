package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Analysis request lifecycle outcomes
//   - LLM request performance, counts, and token consumption
//   - Active analysis counts for capacity planning
type Metrics struct {
	// AnalysisCounter counts analysis executions by outcome.
	// Labels: outcome (completed|failed|cancelled)
	AnalysisCounter *prometheus.CounterVec

	// AnalysisDuration measures full analysis wall time in seconds.
	// Buckets: 1s .. 600s
	AnalysisDuration prometheus.Histogram

	// ActiveAnalyses is a gauge tracking pending and running requests.
	ActiveAnalyses prometheus.Gauge

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider, model and status.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (input|output)
	LLMTokensUsed *prometheus.CounterVec

	// TurnsSummarized counts turn summaries written, by outcome.
	// Labels: outcome (ok|error)
	TurnsSummarized *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry creates metrics against a specific registry.
// Pass nil to use the default registry. Tests use a private registry so
// repeated construction does not panic on duplicate registration.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &Metrics{
		AnalysisCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "retrochat_analyses_total",
			Help: "Total analysis executions by outcome.",
		}, []string{"outcome"}),

		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrochat_analysis_duration_seconds",
			Help:    "Wall time of full session analyses.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		ActiveAnalyses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "retrochat_active_analyses",
			Help: "Number of pending or running analysis requests.",
		}),

		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "retrochat_llm_request_duration_seconds",
			Help:    "LLM API call latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "retrochat_llm_requests_total",
			Help: "Total LLM requests by provider, model and status.",
		}, []string{"provider", "model", "status"}),

		LLMTokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "retrochat_llm_tokens_total",
			Help: "Token consumption by provider, model and direction.",
		}, []string{"provider", "model", "type"}),

		TurnsSummarized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "retrochat_turns_summarized_total",
			Help: "Turn summaries attempted, by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordAnalysis records one finished analysis.
func (m *Metrics) RecordAnalysis(outcome string, durationSecs float64) {
	m.AnalysisCounter.WithLabelValues(outcome).Inc()
	if durationSecs > 0 {
		m.AnalysisDuration.Observe(durationSecs)
	}
}

// RecordLLMRequest records one LLM call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSecs float64) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSecs)
}

// RecordTokens records token consumption for one LLM call.
func (m *Metrics) RecordTokens(provider, model string, input, output int) {
	if input > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(input))
	}
	if output > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(output))
	}
}
