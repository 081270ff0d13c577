// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ResolutionsTotal counts answered inbound messages by the stage that produced the answer.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_resolutions_total",
			Help: "Inbound messages resolved, by answer source",
		},
		[]string{"source"},
	)

	// ResolutionDuration tracks wall-clock time of the whole resolution chain.
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrbot_resolution_duration_seconds",
			Help:    "Resolution pipeline duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10, 20, 30, 45},
		},
		[]string{"source"},
	)

	// KnowledgeHitsTotal counts knowledge base hits by matcher stage.
	KnowledgeHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_knowledge_hits_total",
			Help: "Knowledge base article selections by matcher stage",
		},
		[]string{"stage"},
	)

	// StageErrorsTotal counts matcher stages that failed and were skipped.
	StageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_stage_errors_total",
			Help: "Resolution stages that errored and were treated as no answer",
		},
		[]string{"stage"},
	)

	// GenerationFailuresTotal counts generative backend failures by class.
	GenerationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbot_generation_failures_total",
			Help: "Generative backend failures by class",
		},
		[]string{"provider", "kind"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// RelayFailuresTotal counts answers that could not be delivered to the chat.
	RelayFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrbot_relay_failures_total",
			Help: "Answers that failed to be relayed to the chat platform",
		},
	)

	// ConversationsTotal tracks conversations by the status transition that produced them.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Conversation lifecycle transitions",
		},
		[]string{"status"},
	)

	// SSEConnectionsActive tracks open conversation event streams.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// MessagesTotal tracks total messages recorded.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages recorded",
		},
		[]string{"type"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordResolution records the source and duration of one resolved message.
func RecordResolution(source string, duration float64) {
	ResolutionsTotal.WithLabelValues(source).Inc()
	ResolutionDuration.WithLabelValues(source).Observe(duration)
}

// RecordLLMUsage records token usage reported by a provider.
func RecordLLMUsage(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connections gauge.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connections gauge.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
