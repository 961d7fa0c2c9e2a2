// Package metrics exposes the coordination layer's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the recorder interfaces of the events, notify, hub and cleanup packages.
type Collector struct {
	events        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	connections   prometheus.Gauge
	swept         *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatr_events_total",
			Help: "Inbound events by name and outcome.",
		}, []string{"event", "status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatr_notifications_total",
			Help: "Outbound notifications by kind and delivery result.",
		}, []string{"kind", "result"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatr_ws_connections",
			Help: "Open WebSocket connections.",
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatr_swept_records_total",
			Help: "Stale records removed by the cleanup sweep.",
		}, []string{"partition"}),
	}

	reg.MustRegister(c.events, c.notifications, c.connections, c.swept)

	return c
}

func (c *Collector) RecordEvent(event, status string) {
	c.events.WithLabelValues(event, status).Inc()
}

func (c *Collector) RecordNotification(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	c.notifications.WithLabelValues(kind, result).Inc()
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }

func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) RecordSweep(users, chats int) {
	c.swept.WithLabelValues("users").Add(float64(users))
	c.swept.WithLabelValues("chats").Add(float64(chats))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
