package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forecast"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	commands  *prometheus.CounterVec
	matches   prometheus.Counter
	shares    prometheus.Counter
	notional  prometheus.Counter
	resting   prometheus.Gauge
	published *prometheus.CounterVec
	snapshots *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Exchange commands by kind and result.",
		}, []string{"command", "result"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Executed matches.",
		}),
		shares: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matched_shares_total",
			Help:      "Shares exchanged in matches.",
		}),
		notional: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matched_notional_total",
			Help:      "Dollar value exchanged in matches.",
		}),
		resting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Orders currently resting on all books.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events by publish result.",
		}, []string{"result"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot writes by result.",
		}, []string{"result"}),
	}
	m.reg.MustRegister(
		m.commands, m.matches, m.shares, m.notional, m.resting,
		m.published, m.snapshots,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// All recorders accept a nil receiver.

func (m *Metrics) Command(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Match(qty int64, notional float64) {
	if m == nil {
		return
	}
	m.matches.Inc()
	m.shares.Add(float64(qty))
	m.notional.Add(notional)
}

func (m *Metrics) RestingOrders(n int) {
	if m == nil {
		return
	}
	m.resting.Set(float64(n))
}

func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.published.WithLabelValues("failed").Inc()
		return
	}
	m.published.WithLabelValues("acked").Inc()
}

func (m *Metrics) Snapshot(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.snapshots.WithLabelValues("error").Inc()
		return
	}
	m.snapshots.WithLabelValues("ok").Inc()
}
