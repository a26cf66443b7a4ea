package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports EventBusMetrics to Prometheus.
type Collector struct {
	metrics   *EventBusMetrics
	published *prometheus.Desc
	handled   *prometheus.Desc
}

// NewCollector returns a collector over m. Register it with a prometheus.Registerer.
func NewCollector(m *EventBusMetrics) *Collector {
	return &Collector{
		metrics: m,
		published: prometheus.NewDesc(
			"vuntgram_events_published_total",
			"Domain events published on the in-process bus.",
			[]string{"event_type"}, nil,
		),
		handled: prometheus.NewDesc(
			"vuntgram_event_handlers_total",
			"Event handler runs by outcome.",
			[]string{"event_type", "outcome"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.published
	ch <- c.handled
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.metrics == nil {
		return
	}
	s := c.metrics.Snapshot()
	for t, n := range s.Published {
		ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(n), string(t))
	}
	for t, n := range s.Succeeded {
		ch <- prometheus.MustNewConstMetric(c.handled, prometheus.CounterValue, float64(n), string(t), "ok")
	}
	for t, n := range s.Failed {
		ch <- prometheus.MustNewConstMetric(c.handled, prometheus.CounterValue, float64(n), string(t), "error")
	}
}
