package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Applied events by unqualified variant
	EventsApplied *prometheus.CounterVec

	// Rejected applies by error code
	EventsRejected *prometheus.CounterVec

	ApplyDuration prometheus.Histogram

	// Lock-version conflicts that forced an apply retry
	CommitConflicts prometheus.Counter

	// Notifications created by type: "webhook", "email"
	NotificationsCreated *prometheus.CounterVec

	// Delivery attempts by type and outcome: "delivered", "failed"
	Deliveries *prometheus.CounterVec

	OutboxPublished prometheus.Counter
}

// New creates and registers all metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movetrack_events_applied_total",
			Help: "Total number of events committed, by variant",
		}, []string{"variant"}),

		EventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movetrack_events_rejected_total",
			Help: "Total number of rejected event applications, by error code",
		}, []string{"code"}),

		ApplyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "movetrack_event_apply_duration_seconds",
			Help:    "Duration of event application including commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		CommitConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "movetrack_event_commit_conflicts_total",
			Help: "Total number of optimistic lock conflicts during apply",
		}),

		NotificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movetrack_notifications_created_total",
			Help: "Total number of notifications created, by type",
		}, []string{"type"}),

		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movetrack_notification_deliveries_total",
			Help: "Total number of delivery attempts, by type and outcome",
		}, []string{"type", "outcome"}),

		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "movetrack_outbox_tasks_published_total",
			Help: "Total number of outbox tasks handed to the queue",
		}),
	}
}

func (m *Metrics) IncrementApplied(variant string) {
	if m != nil {
		m.EventsApplied.WithLabelValues(variant).Inc()
	}
}

func (m *Metrics) IncrementRejected(code string) {
	if m != nil {
		m.EventsRejected.WithLabelValues(code).Inc()
	}
}

// ObserveApply records the duration of one apply call.
func (m *Metrics) ObserveApply(d time.Duration) {
	if m != nil {
		m.ApplyDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCommitConflicts() {
	if m != nil {
		m.CommitConflicts.Inc()
	}
}

func (m *Metrics) IncrementNotifications(notificationType string) {
	if m != nil {
		m.NotificationsCreated.WithLabelValues(notificationType).Inc()
	}
}

func (m *Metrics) IncrementDelivery(notificationType, outcome string) {
	if m != nil {
		m.Deliveries.WithLabelValues(notificationType, outcome).Inc()
	}
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m != nil {
		m.OutboxPublished.Add(float64(n))
	}
}
