package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
)

// DefaultLease is how long a dequeued task stays hidden before it is handed
// out again unless acknowledged
const DefaultLease = 5 * time.Minute

type memoryItem struct {
	notBefore   time.Time
	lockedUntil time.Time
	receipt     string
	payload     []byte
}

// Memory is an in-process task queue. Tasks are stored serialized so that
// what the worker receives is exactly what a persistent queue would carry.
type Memory struct {
	mu    sync.Mutex
	items []*memoryItem
	seq   uint64
	lease time.Duration
	now   func() time.Time
}

var _ interfaces.TaskQueue = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{now: time.Now, lease: DefaultLease}
}

// WithClock replaces the clock used to decide whether a task is due
func (q *Memory) WithClock(now func() time.Time) *Memory {
	q.now = now
	return q
}

// WithLease sets how long a dequeued task is hidden from other consumers
func (q *Memory) WithLease(lease time.Duration) *Memory {
	if lease > 0 {
		q.lease = lease
	}
	return q
}

func (q *Memory) Enqueue(ctx context.Context, task *model.Task) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, &memoryItem{notBefore: task.NotBefore, payload: data})
	return nil
}

func (q *Memory) Dequeue(ctx context.Context) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, item := range q.items {
		if !item.notBefore.IsZero() && item.notBefore.After(now) {
			continue
		}
		if item.lockedUntil.After(now) {
			continue
		}

		task, err := decodeTask(item.payload)
		if err != nil {
			return nil, err
		}

		// every lease gets a fresh receipt so that a late Ack of an expired
		// lease cannot remove the task from its new holder
		q.seq++
		item.receipt = strconv.FormatUint(q.seq, 10)
		item.lockedUntil = now.Add(q.lease)
		task.Receipt = item.receipt
		return task, nil
	}
	return nil, nil
}

func (q *Memory) Ack(ctx context.Context, task *model.Task) error {
	if task == nil || task.Receipt == "" {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.receipt == task.Receipt {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *Memory) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *Memory) Close() error {
	return nil
}
