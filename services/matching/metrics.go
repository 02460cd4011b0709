package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine counters. A nil registerer yields unregistered
// collectors, which is what tests use.
type Metrics struct {
	swipes         *prometheus.CounterVec
	matches        prometheus.Counter
	raceLosses     prometheus.Counter
	messages       prometheus.Counter
	notifyFailures *prometheus.CounterVec
	membership     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		swipes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventmatch_swipes_total",
			Help: "Swipes recorded, by decision.",
		}, []string{"decision"}),
		matches: f.NewCounter(prometheus.CounterOpts{
			Name: "eventmatch_matches_created_total",
			Help: "Match rows inserted.",
		}),
		raceLosses: f.NewCounter(prometheus.CounterOpts{
			Name: "eventmatch_match_races_lost_total",
			Help: "Match inserts that lost a concurrent mutual-like race and returned the existing row.",
		}),
		messages: f.NewCounter(prometheus.CounterOpts{
			Name: "eventmatch_messages_sent_total",
			Help: "Messages persisted.",
		}),
		notifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventmatch_notify_failures_total",
			Help: "Realtime notifications that could not be handed to the transport.",
		}, []string{"kind"}),
		membership: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventmatch_membership_changes_total",
			Help: "Archive, unarchive and erase operations applied.",
		}, []string{"action"}),
	}
}
