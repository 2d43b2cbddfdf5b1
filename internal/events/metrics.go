package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsPublished    *prometheus.CounterVec
	EnvelopesDropped   prometheus.Counter
	Subscribers        prometheus.Gauge
	StreamsOpen        prometheus.Gauge
	StreamsOpenedTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_events_published_total",
			Help: "Total number of events published, by event type",
		}, []string{"type"}),
		EnvelopesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_event_envelopes_dropped_total",
			Help: "Envelopes dropped from slow subscriber queues",
		}),
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tradegate_event_subscribers",
			Help: "Current number of live event subscriptions",
		}),
		StreamsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tradegate_event_streams_open",
			Help: "Current number of open SSE connections",
		}),
		StreamsOpenedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_event_streams_opened_total",
			Help: "Total number of SSE connections accepted",
		}),
	}
}

func (m *Metrics) EventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EnvelopeDropped() {
	m.EnvelopesDropped.Inc()
}

func (m *Metrics) SubscriberAdded() {
	m.Subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	m.Subscribers.Dec()
}

func (m *Metrics) StreamOpened() {
	m.StreamsOpen.Inc()
	m.StreamsOpenedTotal.Inc()
}

func (m *Metrics) StreamClosed() {
	m.StreamsOpen.Dec()
}
