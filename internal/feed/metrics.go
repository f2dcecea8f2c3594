package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks feed fan-out. A nil *Metrics records nothing.
type Metrics struct {
	upstreams   prometheus.Gauge
	subscribers prometheus.Gauge
	delivered   *prometheus.CounterVec
	coalesced   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "handoff",
			Subsystem: "feed",
			Name:      "upstreams",
			Help:      "Open bus subscriptions, one per table and filter.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "handoff",
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Active change subscriptions.",
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Subsystem: "feed",
			Name:      "events_delivered_total",
			Help:      "Changes handed to subscriber handlers.",
		}, []string{"table"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "handoff",
			Subsystem: "feed",
			Name:      "events_coalesced_total",
			Help:      "Changes folded into a resync because a subscriber fell behind.",
		}),
	}
	reg.MustRegister(m.upstreams, m.subscribers, m.delivered, m.coalesced)
	return m
}

func (m *Metrics) upstreamOpened() {
	if m != nil {
		m.upstreams.Inc()
	}
}

func (m *Metrics) upstreamClosed() {
	if m != nil {
		m.upstreams.Dec()
	}
}

func (m *Metrics) subscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) subscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

func (m *Metrics) eventDelivered(table string) {
	if m != nil {
		m.delivered.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) eventCoalesced() {
	if m != nil {
		m.coalesced.Inc()
	}
}
