package mailbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session outcomes and mailbox traffic. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	SessionsOpened     prometheus.Counter
	SessionsAggregated prometheus.Counter
	SessionsAbandoned  *prometheus.CounterVec
	Posts              *prometheus.CounterVec
	AwaitSeconds       *prometheus.HistogramVec
}

// NewMetrics creates the mailbox metrics and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schnorrkel_sessions_opened_total",
			Help: "Signing sessions opened by the coordinator",
		}),
		SessionsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schnorrkel_sessions_aggregated_total",
			Help: "Signing sessions that produced a verified aggregate signature",
		}),
		SessionsAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schnorrkel_sessions_abandoned_total",
			Help: "Signing sessions abandoned before aggregation",
		}, []string{"reason"}), // reason: timeout, mismatch, nonce_reuse, conflict, error
		Posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schnorrkel_mailbox_posts_total",
			Help: "Payloads posted to the mailbox",
		}, []string{"kind"}),
		AwaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schnorrkel_mailbox_await_seconds",
			Help:    "Time spent waiting for a round to complete",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.SessionsOpened, m.SessionsAggregated, m.SessionsAbandoned, m.Posts, m.AwaitSeconds)
	}
	return m
}

func (m *Metrics) opened() {
	if m != nil {
		m.SessionsOpened.Inc()
	}
}

func (m *Metrics) aggregated() {
	if m != nil {
		m.SessionsAggregated.Inc()
	}
}

func (m *Metrics) abandoned(reason string) {
	if m != nil {
		m.SessionsAbandoned.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) posted(kind Kind) {
	if m != nil {
		m.Posts.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) awaited(kind Kind, start time.Time) {
	if m != nil {
		m.AwaitSeconds.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}
}
