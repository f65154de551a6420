package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one server instance. Each
// server registers into its own registry so several can coexist in a process.
type Metrics struct {
	registry     *prometheus.Registry
	online       prometheus.Gauge
	admissions   *prometheus.CounterVec
	frames       *prometheus.CounterVec
	disconnects  *prometheus.CounterVec
	decodeErrors prometheus.Counter
	dropped      prometheus.Counter
}

// NewMetrics creates and registers the server's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatmux_users_online",
			Help: "Number of admitted connections currently registered",
		}),
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmux_admissions_total",
				Help: "Admission attempts by outcome",
			},
			[]string{"result"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmux_frames_sent_total",
				Help: "Frames queued for delivery by tag",
			},
			[]string{"tag"},
		),
		disconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmux_disconnects_total",
				Help: "Disconnections by reason",
			},
			[]string{"reason"},
		),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatmux_decode_errors_total",
			Help: "Inbound frames that could not be decoded",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatmux_rate_limited_frames_total",
			Help: "Inbound frames discarded by the rate limiter",
		}),
	}

	m.registry.MustRegister(m.online, m.admissions, m.frames, m.disconnects, m.decodeErrors, m.dropped)
	return m
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
