package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a relaycat run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Protocol metrics
	EnvelopesReceivedTotal *prometheus.CounterVec
	MessagesSentTotal      prometheus.Counter
	PingsTotal             prometheus.Counter

	// Outcome metrics
	OutcomesTotal   *prometheus.CounterVec
	DuplicatesTotal prometheus.Counter
	PayloadsPrinted prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_sessions_total",
				Help: "Total number of relay sessions started",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_sessions_active",
				Help: "Number of relay sessions currently running",
			},
		),
		SessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_session_duration_seconds",
				Help:    "Duration of relay sessions in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		EnvelopesReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_envelopes_received_total",
				Help: "Total number of inbound text messages by envelope kind",
			},
			[]string{"kind"},
		),
		MessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_messages_sent_total",
				Help: "Total number of outbound lines written to relays",
			},
		),
		PingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_pings_total",
				Help: "Total number of ping frames answered",
			},
		),

		OutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_outcomes_total",
				Help: "Total number of session outcomes by kind",
			},
			[]string{"kind"},
		),
		DuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_duplicates_total",
				Help: "Total number of payloads dropped by deduplication",
			},
		),
		PayloadsPrinted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_payloads_printed_total",
				Help: "Total number of payloads written to the output",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsTotal)
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionDuration)

	m.registry.MustRegister(m.EnvelopesReceivedTotal)
	m.registry.MustRegister(m.MessagesSentTotal)
	m.registry.MustRegister(m.PingsTotal)

	m.registry.MustRegister(m.OutcomesTotal)
	m.registry.MustRegister(m.DuplicatesTotal)
	m.registry.MustRegister(m.PayloadsPrinted)
}

// SessionStarted records a new running session
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionFinished records a session reaching the Closed state
func (m *Metrics) SessionFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(d.Seconds())
}

// EnvelopeReceived records one classified inbound message
func (m *Metrics) EnvelopeReceived(kind string) {
	if m == nil {
		return
	}
	m.EnvelopesReceivedTotal.WithLabelValues(kind).Inc()
}

// MessageSent records one outbound line
func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.MessagesSentTotal.Inc()
}

// PingAnswered records one ping/pong exchange
func (m *Metrics) PingAnswered() {
	if m == nil {
		return
	}
	m.PingsTotal.Inc()
}

// OutcomeEmitted records one session outcome; kind is "success" or a failure kind
func (m *Metrics) OutcomeEmitted(kind string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(kind).Inc()
}

// DuplicateDropped records a payload suppressed by deduplication
func (m *Metrics) DuplicateDropped() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
}

// PayloadPrinted records a payload written to the output
func (m *Metrics) PayloadPrinted() {
	if m == nil {
		return
	}
	m.PayloadsPrinted.Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
