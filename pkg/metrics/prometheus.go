package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesTotal   *prometheus.CounterVec
	authTransitions *prometheus.CounterVec
	balanceFetches  *prometheus.CounterVec
	balanceLatency  *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_channel_messages_total",
				Help: "Total channel messages received, by parse result",
			},
			[]string{"channel", "parsed"},
		),
		authTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_auth_transitions_total",
				Help: "Total auth state transitions, by resulting state",
			},
			[]string{"state"},
		),
		balanceFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_balance_fetches_total",
				Help: "Total balance fetch attempts, by outcome",
			},
			[]string{"outcome"},
		),
		balanceLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigrelay_balance_fetch_duration_seconds",
				Help:    "Duration of balance fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordMessage records one received channel message.
func (r *Recorder) RecordMessage(channelID int64, parsed bool) {
	r.messagesTotal.WithLabelValues(strconv.FormatInt(channelID, 10), strconv.FormatBool(parsed)).Inc()
}

// RecordAuthTransition records an auth state transition.
func (r *Recorder) RecordAuthTransition(state string) {
	r.authTransitions.WithLabelValues(state).Inc()
}

// RecordBalanceFetch records a balance fetch attempt with its latency.
func (r *Recorder) RecordBalanceFetch(outcome string, seconds float64) {
	r.balanceFetches.WithLabelValues(outcome).Inc()
	r.balanceLatency.WithLabelValues(outcome).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
