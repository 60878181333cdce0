// Package metrics holds the relay's prometheus collectors. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	roomsActive       prometheus.Gauge
	connectionsActive prometheus.Gauge
	messages          *prometheus.CounterVec
	moderation        *prometheus.CounterVec
	storageErrors     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_rooms_active",
			Help: "Room actors currently running.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "WebSocket connections attached to a room.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Inbound frames handled, by message type.",
		}, []string{"type"}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_moderation_actions_total",
			Help: "Kick and ban actions, including joins rejected by a ban.",
		}, []string{"action"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_storage_errors_total",
			Help: "Failed durable store operations.",
		}, []string{"op", "key"}),
	}
	reg.MustRegister(m.roomsActive, m.connectionsActive, m.messages, m.moderation, m.storageErrors)
	return m
}

// Handler exposes the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.roomsActive.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.roomsActive.Dec()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connectionsActive.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connectionsActive.Dec()
	}
}

func (m *Metrics) Message(typ string) {
	if m != nil {
		m.messages.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) Moderation(action string) {
	if m != nil {
		m.moderation.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) StorageError(op, key string) {
	if m != nil {
		m.storageErrors.WithLabelValues(op, key).Inc()
	}
}
