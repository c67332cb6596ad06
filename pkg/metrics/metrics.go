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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// LLMRequestDuration tracks completion call latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Completion request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "purpose", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// TurnsTotal counts send-message turns by terminal state.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Conversation turns by outcome",
		},
		[]string{"outcome"},
	)

	// TurnsInFlight tracks turns currently being processed.
	TurnsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_turns_in_flight",
			Help: "Turns currently being processed",
		},
	)

	// ArtifactsTotal counts extracted artifacts.
	ArtifactsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifacts_extracted_total",
			Help: "Code artifacts extracted from assistant responses",
		},
		[]string{"language"},
	)

	// AttachmentsTotal counts stored uploads.
	AttachmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attachments_stored_total",
			Help: "Uploaded files written to disk",
		},
	)

	// AttachmentBytesTotal counts stored upload bytes.
	AttachmentBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attachments_stored_bytes_total",
			Help: "Bytes of uploaded files written to disk",
		},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks committed messages.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages committed",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordLLMCall records metrics for one completion call.
func RecordLLMCall(provider, purpose, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, purpose, status).Observe(duration)
	if tokensIn > 0 {
		LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
	}
}

// RecordArtifact counts one extracted artifact.
func RecordArtifact(language string) {
	if language == "" {
		language = "none"
	}
	ArtifactsTotal.WithLabelValues(language).Inc()
}

// RecordAttachment counts one stored upload of size bytes.
func RecordAttachment(size int) {
	AttachmentsTotal.Inc()
	AttachmentBytesTotal.Add(float64(size))
}
