package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the realtime engine's prometheus collectors.
type Metrics struct {
	Connections    prometheus.Gauge
	OnlineUsers    prometheus.Gauge
	InboundEvents  *prometheus.CounterVec
	RejectedEvents *prometheus.CounterVec
	Frames         prometheus.Counter
	Blocked        prometheus.Counter
	Dropped        prometheus.Counter
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to keep them isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat", Subsystem: "ws",
			Name: "connections", Help: "Open websocket connections.",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat", Subsystem: "presence",
			Name: "online_users", Help: "Users with at least one open connection.",
		}),
		InboundEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat", Subsystem: "ws",
			Name: "inbound_events_total", Help: "Decoded inbound frames by type.",
		}, []string{"type"}),
		RejectedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat", Subsystem: "ws",
			Name: "rejected_events_total", Help: "Inbound frames answered with an error, by kind.",
		}, []string{"kind"}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chat", Subsystem: "ws",
			Name: "published_frames_total", Help: "Frames handed to subscriber queues.",
		}),
		Blocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chat", Subsystem: "delivery",
			Name: "blocked_total", Help: "Sends suppressed by the recipient's block-list.",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chat", Subsystem: "ws",
			Name: "dropped_frames_total", Help: "Frames dropped because a subscriber queue was full.",
		}),
	}
}
