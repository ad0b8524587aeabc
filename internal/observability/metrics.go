package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe: every recording method is a no-op on a nil receiver so
// components can be constructed without a registry in tests.
type Metrics struct {
	registry         *prometheus.Registry
	AgentsConnected  prometheus.Gauge
	ViewersConnected prometheus.Gauge
	EventsTotal      *prometheus.CounterVec
	FramesReceived   *prometheus.CounterVec
	FrameRequests    *prometheus.CounterVec
	CommandsSent     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		AgentsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "capture_broker",
			Name:      "agents_connected",
			Help:      "Number of live agent sessions",
		}),
		ViewersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "capture_broker",
			Name:      "viewers_connected",
			Help:      "Number of connected viewer websockets",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capture_broker",
			Name:      "events_total",
			Help:      "Inbound events handled by the broker loop",
		}, []string{"kind"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capture_broker",
			Name:      "frames_received_total",
			Help:      "Frames received from agents by outcome",
		}, []string{"result"}),
		FrameRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capture_broker",
			Name:      "frame_requests_total",
			Help:      "Viewer frame pulls by outcome",
		}, []string{"result"}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capture_broker",
			Name:      "commands_sent_total",
			Help:      "Commands sent to agents",
		}, []string{"command", "result"}),
	}
	r.MustRegister(m.AgentsConnected, m.ViewersConnected, m.EventsTotal,
		m.FramesReceived, m.FrameRequests, m.CommandsSent)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SetAgents(n int) {
	if m == nil {
		return
	}
	m.AgentsConnected.Set(float64(n))
}

func (m *Metrics) ViewerConnected(delta int) {
	if m == nil {
		return
	}
	m.ViewersConnected.Add(float64(delta))
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameReceived(result string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(result).Inc()
}

func (m *Metrics) FrameRequest(result string) {
	if m == nil {
		return
	}
	m.FrameRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) CommandSent(command, result string) {
	if m == nil {
		return
	}
	m.CommandsSent.WithLabelValues(command, result).Inc()
}
