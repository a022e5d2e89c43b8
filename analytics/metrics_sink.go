package analytics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	users "github.com/goliatone/go-admin-users"
)

// MetricsSink counts events by verb
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink registers the counter on reg
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_users_activity_events_total",
			Help: "Total number of recorded user admin activity events",
		},
		[]string{"event"},
	)
	if reg != nil {
		if err := reg.Register(events); err != nil {
			return nil, err
		}
	}
	return &MetricsSink{events: events}, nil
}

// Collector exposes the counter, mostly for tests
func (s *MetricsSink) Collector() prometheus.Collector {
	return s.events
}

// Record implements users.ActivitySink
func (s *MetricsSink) Record(_ context.Context, event users.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}
