// Package metrics holds the Prometheus instruments of the tutor backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
	WebSocketMessages    *prometheus.CounterVec

	// Chat metrics
	ChatRequests       *prometheus.CounterVec
	ChatRequestLatency prometheus.Histogram
	LLMFailures        *prometheus.CounterVec

	// Continuity metrics
	StreakAdvances prometheus.Counter
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebSocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "revisahub_websocket_connections_active",
			Help: "Number of active chat WebSocket connections",
		}),

		WebSocketMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "revisahub_websocket_messages_total",
			Help: "Total number of WebSocket frames by direction",
		}, []string{"direction"}), // "inbound" or "outbound"

		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "revisahub_chat_requests_total",
			Help: "Total number of chat turns processed by transport and image presence",
		}, []string{"transport", "has_image"}),

		ChatRequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "revisahub_chat_request_duration_seconds",
			Help:    "Chat turn latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		LLMFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "revisahub_llm_failures_total",
			Help: "LLM calls answered with the fallback text, by error kind",
		}, []string{"kind"}),

		StreakAdvances: factory.NewCounter(prometheus.CounterOpts{
			Name: "revisahub_streak_advances_total",
			Help: "Number of persisted streak day advances",
		}),
	}
}

// ObserveChat records one completed chat turn.
func (m *Metrics) ObserveChat(transport string, hasImage bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "false"
	if hasImage {
		label = "true"
	}
	m.ChatRequests.WithLabelValues(transport, label).Inc()
	m.ChatRequestLatency.Observe(elapsed.Seconds())
}

// LLMFailure counts a fallback answer.
func (m *Metrics) LLMFailure(kind string) {
	if m == nil {
		return
	}
	m.LLMFailures.WithLabelValues(kind).Inc()
}

// StreakAdvanced counts one streak day advance.
func (m *Metrics) StreakAdvanced() {
	if m == nil {
		return
	}
	m.StreakAdvances.Inc()
}

// WebSocketOpened tracks a new chat connection.
func (m *Metrics) WebSocketOpened() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Inc()
}

// WebSocketClosed tracks a closed chat connection.
func (m *Metrics) WebSocketClosed() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Dec()
}

// WebSocketFrame counts one frame in direction "inbound" or "outbound".
func (m *Metrics) WebSocketFrame(direction string) {
	if m == nil {
		return
	}
	m.WebSocketMessages.WithLabelValues(direction).Inc()
}
