package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records outcomes of settlement and trust operations.
type SettlementMetrics struct {
	duration    *prometheus.HistogramVec
	settled     prometheus.Counter
	replayed    prometheus.Counter
	conflicts   prometheus.Counter
	failures    *prometheus.CounterVec
	suspensions prometheus.Counter
	clamped     prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of settle calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	settled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlements_completed_total",
		Help: "Orders settled for the first time.",
	})
	replayed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlements_replayed_total",
		Help: "Idempotent settle replays that were no-ops.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_conflicts_total",
		Help: "Transient settlement conflicts encountered (including retried ones).",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_failures_total",
		Help: "Settle calls that failed, labeled by error code.",
	}, []string{"code"})
	suspensions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restaurant_suspensions_total",
		Help: "Restaurants suspended by a trust threshold crossing.",
	})
	clamped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_fee_clamped_total",
		Help: "Settlements whose courier deduction exceeded the delivery fee.",
	})
	reg.MustRegister(duration, settled, replayed, conflicts, failures, suspensions, clamped)
	return &SettlementMetrics{
		duration:    duration,
		settled:     settled,
		replayed:    replayed,
		conflicts:   conflicts,
		failures:    failures,
		suspensions: suspensions,
		clamped:     clamped,
	}
}

// ObserveDuration records one settle call with its outcome label.
func (m *SettlementMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncSettled counts a first-time settlement.
func (m *SettlementMetrics) IncSettled() {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.Inc()
}

// IncReplayed counts an idempotent no-op replay.
func (m *SettlementMetrics) IncReplayed() {
	if m == nil || m.replayed == nil {
		return
	}
	m.replayed.Inc()
}

// IncConflict counts a transient settlement conflict.
func (m *SettlementMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

// IncFailure counts a failed settle call by error code.
func (m *SettlementMetrics) IncFailure(code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncSuspension counts a restaurant suspension.
func (m *SettlementMetrics) IncSuspension() {
	if m == nil || m.suspensions == nil {
		return
	}
	m.suspensions.Inc()
}

// IncCourierClamped counts a courier fee clamped to zero.
func (m *SettlementMetrics) IncCourierClamped() {
	if m == nil || m.clamped == nil {
		return
	}
	m.clamped.Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
