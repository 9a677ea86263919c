package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid everywhere; recording methods no-op so tests can skip registration.
type Metrics struct {
	AllocationsCreated   prometheus.Counter
	Releases             *prometheus.CounterVec
	ReleaseFailures      *prometheus.CounterVec
	ReleaseTxRetries     prometheus.Counter
	ReleaseDuration      prometheus.Histogram
	ProposalTransitions  *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
	NotificationsDeduped prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AllocationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nidhi_allocations_created_total",
			Help: "Total number of fund allocations created",
		}),
		Releases: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nidhi_releases_total",
			Help: "Total number of fund releases written, by kind",
		}, []string{"kind"}),
		ReleaseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nidhi_release_failures_total",
			Help: "Total number of refused releases, by reason",
		}, []string{"reason"}),
		ReleaseTxRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nidhi_release_tx_retries_total",
			Help: "Total number of release transactions retried after a conflict",
		}),
		ReleaseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nidhi_release_duration_seconds",
			Help:    "Latency of the atomic release check-and-write",
			Buckets: prometheus.DefBuckets,
		}),
		ProposalTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nidhi_proposal_transitions_total",
			Help: "Total number of proposal status transitions, by target status",
		}, []string{"to"}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nidhi_notifications_emitted_total",
			Help: "Total number of notification events emitted, by kind",
		}, []string{"kind"}),
		NotificationsDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nidhi_notifications_deduped_total",
			Help: "Total number of notification events suppressed by the idempotency marker",
		}),
	}
}

func (m *Metrics) IncAllocationsCreated() {
	if m == nil {
		return
	}
	m.AllocationsCreated.Inc()
}

func (m *Metrics) IncReleases(kind string) {
	if m == nil {
		return
	}
	m.Releases.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncReleaseFailures(reason string) {
	if m == nil {
		return
	}
	m.ReleaseFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncReleaseTxRetries() {
	if m == nil {
		return
	}
	m.ReleaseTxRetries.Inc()
}

func (m *Metrics) ObserveReleaseDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ReleaseDuration.Observe(seconds)
}

func (m *Metrics) IncProposalTransitions(to string) {
	if m == nil {
		return
	}
	m.ProposalTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncNotificationsSent(kind string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncNotificationsDeduped() {
	if m == nil {
		return
	}
	m.NotificationsDeduped.Inc()
}
