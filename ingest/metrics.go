package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeComplete  = "complete"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// Metrics counts what requests ingested. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Events   prometheus.Counter
	Dropped  prometheus.Counter
	Lost     prometheus.Counter
	Requests *prometheus.CounterVec
}

// NewMetrics creates the ingestion metrics and registers them with reg, if reg isn't nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracehist",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Number of events counted in histogram models.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracehist",
			Subsystem: "ingest",
			Name:      "events_dropped_total",
			Help:      "Number of events ignored because of negative timestamps.",
		}),
		Lost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracehist",
			Subsystem: "ingest",
			Name:      "events_lost_total",
			Help:      "Number of events reported as lost by trace sources.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracehist",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Number of finished ingestion requests, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.Dropped, m.Lost, m.Requests)
	}
	return m
}

func (m *Metrics) counted() {
	if m != nil {
		m.Events.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) lost(n int64) {
	if m != nil && n > 0 {
		m.Lost.Add(float64(n))
	}
}

func (m *Metrics) requestDone(outcome string) {
	if m != nil {
		m.Requests.WithLabelValues(outcome).Inc()
	}
}
