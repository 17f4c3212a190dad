package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/service/queue"
	"github.com/secmon-lab/crmsync/pkg/service/worker"
	"github.com/urfave/cli/v3"
)

// Queue holds CLI flags for the task queue and the task worker pool
type Queue struct {
	dsn          string
	table        string
	capacity     int
	workers      int
	maxAttempts  int
	pollInterval time.Duration
	lease        time.Duration
}

func (x *Queue) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "queue-dsn",
			Usage:       "Task queue DSN (memory:// or postgres://...)",
			Category:    "Queue",
			Value:       "memory://",
			Sources:     cli.EnvVars("CRMSYNC_QUEUE_DSN"),
			Destination: &x.dsn,
		},
		&cli.StringFlag{
			Name:        "queue-table",
			Usage:       "Table name of the postgres task queue",
			Category:    "Queue",
			Value:       queue.DefaultPostgresTable,
			Sources:     cli.EnvVars("CRMSYNC_QUEUE_TABLE"),
			Destination: &x.table,
		},
		&cli.IntFlag{
			Name:        "queue-capacity",
			Usage:       "Maximum number of queued tasks for the postgres queue (0 for unbounded)",
			Category:    "Queue",
			Sources:     cli.EnvVars("CRMSYNC_QUEUE_CAPACITY"),
			Destination: &x.capacity,
		},
		&cli.IntFlag{
			Name:        "queue-workers",
			Usage:       "Number of concurrent task workers",
			Category:    "Queue",
			Value:       worker.DefaultWorkers,
			Sources:     cli.EnvVars("CRMSYNC_QUEUE_WORKERS"),
			Destination: &x.workers,
		},
		&cli.IntFlag{
			Name:        "queue-max-attempts",
			Usage:       "Attempts per task before it is dropped",
			Category:    "Queue",
			Value:       worker.DefaultMaxAttempts,
			Sources:     cli.EnvVars("CRMSYNC_QUEUE_MAX_ATTEMPTS"),
			Destination: &x.maxAttempts,
		},
		&cli.DurationFlag{
			Name:        "queue-poll-interval",
			Usage:       "Interval between polls of an empty queue",
			Category:    "Queue",
			Value:       worker.DefaultPollInterval,
			Sources:     cli.EnvVars("CRMSYNC_QUEUE_POLL_INTERVAL"),
			Destination: &x.pollInterval,
		},
		&cli.DurationFlag{
			Name:        "queue-lease",
			Usage:       "How long a dequeued postgres task stays hidden before it is redelivered",
			Category:    "Queue",
			Value:       queue.DefaultLease,
			Sources:     cli.EnvVars("CRMSYNC_QUEUE_LEASE"),
			Destination: &x.lease,
		},
	}
}

func (x Queue) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("dsn.len", len(x.dsn)),
		slog.String("table", x.table),
		slog.Int("workers", x.workers),
		slog.Int("max-attempts", x.maxAttempts),
		slog.Duration("poll-interval", x.pollInterval),
		slog.Duration("lease", x.lease),
	)
}

// Configure opens the task queue. The caller closes it.
func (x *Queue) Configure(ctx context.Context) (interfaces.TaskQueue, error) {
	q, err := queue.New(ctx, x.dsn,
		queue.WithTable(x.table),
		queue.WithCapacity(x.capacity),
		queue.WithLease(x.lease),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure task queue")
	}
	return q, nil
}

// WorkerOptions returns the task worker options set by flags
func (x *Queue) WorkerOptions() []worker.TaskWorkerOption {
	return []worker.TaskWorkerOption{
		worker.WithWorkers(x.workers),
		worker.WithMaxAttempts(x.maxAttempts),
		worker.WithPollInterval(x.pollInterval),
	}
}
