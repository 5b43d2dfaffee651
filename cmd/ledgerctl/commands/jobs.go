package commands

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// AsynqQueue is the Queue backed by asynq.
type AsynqQueue struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewAsynqQueue connects the client and inspector to redisAddr.
func NewAsynqQueue(redisAddr string) *AsynqQueue {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &AsynqQueue{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Enqueue submits task.
func (q *AsynqQueue) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return q.client.Enqueue(ctx, task, opts...)
}

// Stats reports the default queue metrics.
func (q *AsynqQueue) Stats(ctx context.Context) (QueueStats, error) {
	info, err := q.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// Close releases underlying resources.
func (q *AsynqQueue) Close() error {
	var err error
	if closeErr := q.inspector.Close(); closeErr != nil {
		err = closeErr
	}
	if closeErr := q.client.Close(); closeErr != nil {
		err = closeErr
	}
	return err
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background ledger jobs",
	}

	var (
		tenantID, fiscalYearID int64
		thresholdAmount        string
		thresholdPercent       string
	)
	enqueue := &cobra.Command{
		Use:       "enqueue integrity|balances|budget",
		Short:     "Enqueue a ledger job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"integrity", "balances", "budget"},
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := buildTask(args[0], tenantID, fiscalYearID, thresholdAmount, thresholdPercent)
			if err != nil {
				return err
			}
			q, err := deps.OpenQueue()
			if err != nil {
				return fmt.Errorf("opening queue: %w", err)
			}
			defer func() { _ = q.Close() }()

			info, err := q.Enqueue(cmd.Context(), task)
			if err != nil {
				return err
			}
			cmd.Printf("enqueued %s id=%s queue=%s\n", task.Type(), info.ID, info.Queue)
			return nil
		},
	}
	enqueue.Flags().Int64Var(&tenantID, "tenant", 0, "limit the job to one tenant; 0 runs for every tenant")
	enqueue.Flags().Int64Var(&fiscalYearID, "fiscal-year", 0, "budget job: fiscal year id; 0 uses the active year")
	enqueue.Flags().StringVar(&thresholdAmount, "threshold-amount", "", "budget job: flag variances at or above this amount")
	enqueue.Flags().StringVar(&thresholdPercent, "threshold-percent", "", "budget job: flag variances at or above this percent")
	cmd.AddCommand(enqueue)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := deps.OpenQueue()
			if err != nil {
				return fmt.Errorf("opening queue: %w", err)
			}
			defer func() { _ = q.Close() }()
			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		},
	})

	return cmd
}

func buildTask(name string, tenantID, fiscalYearID int64, amount, percent string) (*asynq.Task, error) {
	switch name {
	case "integrity":
		return jobs.NewIntegrityTask(tenantID)
	case "balances":
		return jobs.NewBalancesRefreshTask(tenantID)
	case "budget":
		return jobs.NewBudgetVarianceTask(jobs.BudgetVariancePayload{
			TenantID:         tenantID,
			FiscalYearID:     fiscalYearID,
			ThresholdAmount:  amount,
			ThresholdPercent: percent,
		})
	default:
		return nil, fmt.Errorf("unsupported job %q (want integrity, balances or budget)", name)
	}
}
