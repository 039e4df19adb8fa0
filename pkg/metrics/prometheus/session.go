package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fcrepo/ocfl-persistence/pkg/metrics"
)

// sessionMetrics is the Prometheus implementation of metrics.SessionMetrics.
type sessionMetrics struct {
	persistsTotal    *prometheus.CounterVec
	persistDuration  *prometheus.HistogramVec
	commitsTotal     *prometheus.CounterVec
	commitDuration   *prometheus.HistogramVec
	rollbacksTotal   *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	reapedTotal      prometheus.Counter
}

// NewSessionMetrics creates a new Prometheus-backed SessionMetrics
// instance, or a no-op implementation if metrics are disabled.
func NewSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopSessionMetrics()
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		persistsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrepo_persist_session_persists_total",
				Help: "Total number of Persist calls dispatched, by operation kind and status",
			},
			[]string{"kind", "status"},
		),
		persistDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fcrepo_persist_session_persist_duration_seconds",
				Help: "Duration of dispatched Persist calls by operation kind",
				Buckets: []float64{
					0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
				},
			},
			[]string{"kind"},
		),
		commitsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrepo_persist_session_commits_total",
				Help: "Total number of Commit calls by terminal outcome",
			},
			[]string{"outcome"}, // committed, prepare_failed, commit_failed
		),
		commitDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fcrepo_persist_session_commit_duration_seconds",
				Help: "Total duration of Commit calls by terminal outcome",
				Buckets: []float64{
					0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
				},
			},
			[]string{"outcome"},
		),
		rollbacksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrepo_persist_session_rollbacks_total",
				Help: "Total number of Rollback calls by outcome and reason",
			},
			[]string{"outcome", "reason"}, // outcome: rolled_back, rollback_failed
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fcrepo_persist_session_active",
				Help: "Current number of live sessions held by the Session Manager",
			},
		),
		reapedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fcrepo_persist_session_reaped_total",
				Help: "Total number of sessions reaped by the Session Manager's orphan sweep",
			},
		),
	}
}

func (m *sessionMetrics) RecordPersist(kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.persistsTotal.WithLabelValues(kind, status).Inc()
	m.persistDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *sessionMetrics) RecordCommit(outcome string, duration time.Duration) {
	m.commitsTotal.WithLabelValues(outcome).Inc()
	m.commitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *sessionMetrics) RecordRollback(outcome string, reason string) {
	m.rollbacksTotal.WithLabelValues(outcome, reason).Inc()
}

func (m *sessionMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *sessionMetrics) RecordReaped() {
	m.reapedTotal.Inc()
}
