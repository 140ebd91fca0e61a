// Package metrics exposes Prometheus counters for keys, chat and announcements.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redemption results.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Metrics groups the collectors registered for one server instance.
type Metrics struct {
	KeysIssued         prometheus.Counter
	KeyRedemptions     *prometheus.CounterVec
	MessagesBroadcast  prometheus.Counter
	Announcements      prometheus.Counter
	ConnectedClients   prometheus.Gauge
	SlowClientsDropped prometheus.Counter
}

// New registers collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		KeysIssued:         f.NewCounter(prometheus.CounterOpts{Name: "keyroom_keys_issued_total", Help: "Number of one-time keys issued"}),
		KeyRedemptions:     f.NewCounterVec(prometheus.CounterOpts{Name: "keyroom_key_redemptions_total", Help: "Key redemption attempts by result"}, []string{"result"}),
		MessagesBroadcast:  f.NewCounter(prometheus.CounterOpts{Name: "keyroom_messages_broadcast_total", Help: "Chat messages accepted and broadcast"}),
		Announcements:      f.NewCounter(prometheus.CounterOpts{Name: "keyroom_announcements_total", Help: "Announcements set"}),
		ConnectedClients:   f.NewGauge(prometheus.GaugeOpts{Name: "keyroom_connected_clients", Help: "Currently connected real-time clients"}),
		SlowClientsDropped: f.NewCounter(prometheus.CounterOpts{Name: "keyroom_slow_clients_dropped_total", Help: "Clients disconnected because their send buffer was full"}),
	}
}

// KeyIssued counts one issued key.
func (m *Metrics) KeyIssued() {
	if m != nil {
		m.KeysIssued.Inc()
	}
}

// Redemption counts one redemption attempt with the given result.
func (m *Metrics) Redemption(result string) {
	if m != nil {
		m.KeyRedemptions.WithLabelValues(result).Inc()
	}
}

// MessageBroadcast counts one accepted chat message.
func (m *Metrics) MessageBroadcast() {
	if m != nil {
		m.MessagesBroadcast.Inc()
	}
}

// AnnouncementSet counts one announcement update.
func (m *Metrics) AnnouncementSet() {
	if m != nil {
		m.Announcements.Inc()
	}
}

// ClientConnected increments the connected gauge.
func (m *Metrics) ClientConnected() {
	if m != nil {
		m.ConnectedClients.Inc()
	}
}

// ClientDisconnected decrements the connected gauge.
func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.ConnectedClients.Dec()
	}
}

// SlowClientDropped counts one client evicted for backpressure.
func (m *Metrics) SlowClientDropped() {
	if m != nil {
		m.SlowClientsDropped.Inc()
	}
}
