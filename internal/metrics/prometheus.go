package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcomes.
const (
	OutcomeDelivered     = "delivered"
	OutcomeFallback      = "fallback"
	OutcomeSkipped       = "skipped"
	OutcomeUndeliverable = "undeliverable"
	OutcomeDropped       = "dropped"
)

// Metrics contains all Prometheus metrics for the relay.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge

	Fanouts      *prometheus.CounterVec
	Deliveries   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	CallFailures *prometheus.CounterVec

	RejectedEvents *prometheus.CounterVec
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "babel_active_connections",
			Help: "Current number of connected members",
		}),
		ActiveRooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "babel_active_rooms",
			Help: "Current number of non-empty rooms",
		}),
		Fanouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "babel_fanouts_total",
			Help: "Total number of routed messages by path",
		}, []string{"path"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "babel_deliveries_total",
			Help: "Per-recipient delivery results by path and outcome",
		}, []string{"path", "outcome"}),
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "babel_external_call_duration_seconds",
			Help:    "Latency of translator and synthesizer calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}, []string{"call"}),
		CallFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "babel_external_call_failures_total",
			Help: "Failed translator and synthesizer calls",
		}, []string{"call"}),
		RejectedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "babel_rejected_events_total",
			Help: "Inbound events rejected at the connection boundary",
		}, []string{"reason"}),
	}
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Set(float64(n))
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.ActiveRooms.Set(float64(n))
}

func (m *Metrics) Fanout(path string) {
	if m == nil {
		return
	}
	m.Fanouts.WithLabelValues(path).Inc()
}

func (m *Metrics) Delivery(path, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(path, outcome).Inc()
}

// ObserveCall records one external call; err != nil also counts a failure.
func (m *Metrics) ObserveCall(call string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.CallDuration.WithLabelValues(call).Observe(time.Since(started).Seconds())
	if err != nil {
		m.CallFailures.WithLabelValues(call).Inc()
	}
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedEvents.WithLabelValues(reason).Inc()
}
