package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat"

// Metrics groups every collector of the coordinator.
// Each instance owns its registry so tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive  prometheus.Gauge
	ConnectionsTotal   *prometheus.CounterVec
	PresenceSuperseded prometheus.Counter
	IntentsTotal       *prometheus.CounterVec
	IntentDuration     *prometheus.HistogramVec
	EventsDelivered    *prometheus.CounterVec
	DeliveryFailures   *prometheus.CounterVec
	TypingActive       prometheus.Gauge
	WorkerRestarts     *prometheus.CounterVec
	ProcessRSSBytes    prometheus.Gauge
	ProcessCPUPercent  prometheus.Gauge
	ProcessOpenSockets prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active",
			Help: "Live authenticated connections.",
		}),
		ConnectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_total",
			Help: "Connection attempts by outcome.",
		}, []string{"outcome"}),
		PresenceSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "presence_superseded_total",
			Help: "Connections closed because the same user connected again.",
		}),
		IntentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "intents_total",
			Help: "Inbound intents by name and result code.",
		}, []string{"intent", "code"}),
		IntentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "intent_duration_seconds",
			Help:    "Time from dispatch to the end of fan-out.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"intent"}),
		EventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_delivered_total",
			Help: "Outbound events accepted by a connection.",
		}, []string{"event"}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "delivery_failures_total",
			Help: "Outbound events a connection refused.",
		}, []string{"event"}),
		TypingActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "typing_active",
			Help: "Users currently marked as typing.",
		}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_restarts_total",
			Help: "Supervised workers restarted after a crash.",
		}, []string{"worker"}),
		ProcessRSSBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_rss_bytes",
			Help: "Resident memory sampled by the heartbeat worker.",
		}),
		ProcessCPUPercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_cpu_percent",
			Help: "CPU usage sampled by the heartbeat worker.",
		}),
		ProcessOpenSockets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_open_connections",
			Help: "Open network connections of the process.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
