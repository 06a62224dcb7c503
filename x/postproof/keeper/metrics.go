package keeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/proofofpost/pop/x/postproof/types"
)

// PostproofMetrics holds all Prometheus metrics for the postproof module
type PostproofMetrics struct {
	ConfigsCreated       prometheus.Counter
	ConfigsUpdated       prometheus.Counter
	VerificationRequests *prometheus.CounterVec
	Callbacks            *prometheus.CounterVec
	RewardsPaid          prometheus.Counter
	RewardAmountPaid     prometheus.Counter
	PendingJobsExpired   prometheus.Counter
	EscrowLocked         prometheus.Counter
}

var (
	postproofMetricsOnce sync.Once
	postproofMetrics     *PostproofMetrics
)

// NewPostproofMetrics creates and registers postproof metrics (singleton pattern)
func NewPostproofMetrics() *PostproofMetrics {
	postproofMetricsOnce.Do(func() {
		postproofMetrics = &PostproofMetrics{
			ConfigsCreated: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "configs_created_total",
					Help:      "Total campaign configs created",
				},
			),
			ConfigsUpdated: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "configs_updated_total",
					Help:      "Total campaign config updates applied",
				},
			),
			VerificationRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "verification_requests_total",
					Help:      "Verification requests by outcome",
				},
				[]string{"outcome"},
			),
			Callbacks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "callbacks_total",
					Help:      "Job result callbacks by result",
				},
				[]string{"result"},
			),
			RewardsPaid: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "rewards_paid_total",
					Help:      "Total rewards paid to claimants",
				},
			),
			RewardAmountPaid: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "reward_amount_paid_total",
					Help:      "Sum of reward amounts paid, in base units",
				},
			),
			PendingJobsExpired: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "pending_jobs_expired_total",
					Help:      "Pending jobs cleared after their deadline",
				},
			),
			EscrowLocked: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pop",
					Subsystem: "postproof",
					Name:      "escrow_locked_total",
					Help:      "Sum of escrow transferred into campaigns, in base units",
				},
			),
		}
	})
	return postproofMetrics
}

// outcomeLabel maps an error to a metric label.
func outcomeLabel(err error) string {
	if err == nil {
		return "accepted"
	}
	if c := types.CategoryOf(err); c != types.CategoryNone {
		return string(c)
	}
	return "error"
}
