package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the messaging core.
type Metrics struct {
	EventsCommitted     prometheus.Counter
	EventInsertFailures prometheus.Counter
	ProjectorRuns       prometheus.Counter
	ProjectorFailures   prometheus.Counter
	Deliveries          *prometheus.CounterVec
}

// New creates and registers all messaging metrics.
func New() *Metrics {
	return &Metrics{
		EventsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "courier_events_committed_total",
			Help: "Total number of lifecycle events persisted to the log",
		}),
		EventInsertFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "courier_event_insert_failures_total",
			Help: "Total number of event rows that failed to persist and were skipped",
		}),
		ProjectorRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "courier_projector_runs_total",
			Help: "Total number of summary projector syncs",
		}),
		ProjectorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "courier_projector_failures_total",
			Help: "Total number of summary projector syncs that returned an error",
		}),
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_deliveries_total",
			Help: "Delivery attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
	}
}

func (m *Metrics) IncrementEventsCommitted() {
	m.EventsCommitted.Inc()
}

func (m *Metrics) IncrementEventInsertFailures() {
	m.EventInsertFailures.Inc()
}

func (m *Metrics) IncrementProjectorRuns() {
	m.ProjectorRuns.Inc()
}

func (m *Metrics) IncrementProjectorFailures() {
	m.ProjectorFailures.Inc()
}

func (m *Metrics) ObserveDelivery(channel, outcome string) {
	m.Deliveries.WithLabelValues(channel, outcome).Inc()
}
