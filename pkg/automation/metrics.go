package automation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "boxdao"

var (
	passesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_passes_total",
		Help:      "Reconciliation passes that ran.",
	})

	droppedTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_dropped_triggers_total",
		Help:      "Triggers dropped because a pass was in flight.",
	})

	subscriptionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "head_subscription_errors_total",
		Help:      "Head subscriptions that ended with an error and were opened again.",
	})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconciliation_pass_duration_seconds",
		Help:      "Duration of a reconciliation pass.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	trackedProposals = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_proposals",
		Help:      "Proposals in the tracked set.",
	})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actions_total",
		Help:      "Governor writes by action and outcome.",
	}, []string{"action", "outcome"})

	mismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proposal_mismatches_total",
		Help:      "Actions skipped because the local payload no longer matches the proposal.",
	})

	resolveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolve_errors_total",
		Help:      "Proposals that could not be resolved.",
	})
)

const (
	outcomeConfirmed = "confirmed"
	outcomeFailed    = "failed"
	outcomeReverted  = "reverted"
	outcomeTimeout   = "timeout"
)
