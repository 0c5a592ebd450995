// Package metrics wires the Prometheus collectors for the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors used across the server.
type Registry struct {
	Connections connectionMetrics
	Sessions    sessionMetrics
	Messages    messageMetrics
	Storage     storageMetrics
}

type connectionMetrics struct {
	Active prometheus.Gauge
}

type sessionMetrics struct {
	Active      prometheus.Gauge
	Subscribers prometheus.Gauge
	LockSweeps  prometheus.Counter
}

type messageMetrics struct {
	Published prometheus.Counter
	Dropped   prometheus.Counter
}

type storageMetrics struct {
	WritebackErrors prometheus.Counter
	WriteErrors     prometheus.Counter
}

// NewRegistry creates and registers the Prometheus collectors.
func NewRegistry() *Registry {
	return &Registry{
		Connections: connectionMetrics{
			Active: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gridsync_ws_connections_active",
				Help: "Number of active WebSocket connections.",
			}),
		},
		Sessions: sessionMetrics{
			Active: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gridsync_ws_sessions_active",
				Help: "Number of table sessions currently materialized in memory.",
			}),
			Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gridsync_ws_subscribers_active",
				Help: "Number of connections currently subscribed to a session hub.",
			}),
			LockSweeps: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gridsync_ws_lock_sweeps_total",
				Help: "Total number of cell locks released by the sweeper.",
			}),
		},
		Messages: messageMetrics{
			Published: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gridsync_ws_messages_published_total",
				Help: "Total number of events published to session hubs.",
			}),
			Dropped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gridsync_ws_messages_dropped_total",
				Help: "Total number of events dropped due to a slow subscriber.",
			}),
		},
		Storage: storageMetrics{
			WritebackErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gridsync_ws_storage_writeback_errors_total",
				Help: "Total number of sweeper writeback failures.",
			}),
			WriteErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gridsync_ws_storage_write_errors_total",
				Help: "Total number of structural-mutation storage write failures.",
			}),
		},
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
