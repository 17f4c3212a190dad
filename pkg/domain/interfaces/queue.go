package interfaces

import (
	"context"

	"github.com/secmon-lab/crmsync/pkg/domain/model"
)

// TaskQueue carries background work between producers (sync, webhook and
// assignment paths) and the task worker. Delivery is at least once.
type TaskQueue interface {
	// Enqueue adds a task. A task with NotBefore in the future is not
	// delivered before that time.
	Enqueue(ctx context.Context, task *model.Task) error

	// Dequeue leases and returns the next due task. The task stays in the
	// queue, hidden from other consumers, until it is acknowledged or the
	// lease expires. Returns nil without an error when no task is due.
	Dequeue(ctx context.Context) (*model.Task, error)

	// Ack removes a task returned by Dequeue. Acknowledging a task whose
	// lease already expired and was taken by another consumer is a no-op.
	Ack(ctx context.Context, task *model.Task) error

	// Len returns the number of queued tasks, due or not
	Len(ctx context.Context) (int, error)

	Close() error
}
