package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat request outcomes.
const (
	OutcomeStreamed    = "streamed"
	OutcomeRateLimited = "rate_limited"
	OutcomeBadRequest  = "bad_request"
	OutcomeNoContext   = "no_context"
	OutcomeQueueFull   = "queue_full"
)

// Metrics groups the chat service collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	ChatRequests   *prometheus.CounterVec
	StreamEvents   *prometheus.CounterVec
	ActiveStreams  prometheus.Gauge
	StreamDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"transport", "outcome"}),
		StreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "stream_events_total",
			Help:      "Stream events delivered to clients by type.",
		}, []string{"type"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docchat",
			Name:      "active_streams",
			Help:      "Chat streams currently open.",
		}),
		StreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docchat",
			Name:      "stream_duration_seconds",
			Help:      "Time from the start of a chat stream to its last frame.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
	}
	m.registry.MustRegister(
		m.ChatRequests,
		m.StreamEvents,
		m.ActiveStreams,
		m.StreamDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Request(transport, outcome string) {
	m.ChatRequests.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) Event(eventType string) {
	m.StreamEvents.WithLabelValues(eventType).Inc()
}

// StreamStarted marks a stream as open and returns the func that closes it.
func (m *Metrics) StreamStarted() func() {
	start := time.Now()
	m.ActiveStreams.Inc()
	return func() {
		m.ActiveStreams.Dec()
		m.StreamDuration.Observe(time.Since(start).Seconds())
	}
}

// TrackRateLimitClients exports the number of clients the rate limiter holds
// a window for, read from clients at scrape time.
func (m *Metrics) TrackRateLimitClients(clients func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "docchat",
		Name:      "rate_limit_clients",
		Help:      "Clients with a rate limit window in memory.",
	}, func() float64 {
		return float64(clients())
	}))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
