package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
)

const (
	DefaultPostgresTable     = "crmsync_tasks"
	postgresOperationTimeout = 10 * time.Second
)

// ErrQueueFull is returned by Enqueue when a capacity is set and reached
var ErrQueueFull = goerr.New("task queue is full")

// Postgres is a task queue backed by a Postgres table. Concurrent workers
// claim rows with FOR UPDATE SKIP LOCKED and stamp a lease on them, so a
// task is handed to one worker at a time. The row is deleted on Ack; a row
// whose lease expired is handed out again.
type Postgres struct {
	db       *sql.DB
	table    string
	capacity int
	lease    time.Duration
}

var _ interfaces.TaskQueue = (*Postgres)(nil)

type PostgresOption func(*Postgres)

// WithTable overrides the queue table name
func WithTable(name string) PostgresOption {
	return func(q *Postgres) {
		if name != "" {
			q.table = name
		}
	}
}

// WithCapacity bounds the number of queued tasks; zero means unbounded
func WithCapacity(capacity int) PostgresOption {
	return func(q *Postgres) {
		q.capacity = capacity
	}
}

// WithLease sets how long a dequeued task is hidden from other workers
func WithLease(lease time.Duration) PostgresOption {
	return func(q *Postgres) {
		if lease > 0 {
			q.lease = lease
		}
	}
}

func NewPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres queue")
	}

	q := &Postgres{db: db, table: DefaultPostgresTable, lease: DefaultLease}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

func (q *Postgres) quotedTable() string {
	return pq.QuoteIdentifier(q.table)
}

func (q *Postgres) ensureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			task_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			not_before TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			locked_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, q.quotedTable())
	if _, err := q.db.ExecContext(ctx, createTable); err != nil {
		return goerr.Wrap(err, "failed to create queue table", goerr.V("table", q.table))
	}

	// tables created before leases existed
	addLease := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS locked_until TIMESTAMPTZ", q.quotedTable())
	if _, err := q.db.ExecContext(ctx, addLease); err != nil {
		return goerr.Wrap(err, "failed to add lease column", goerr.V("table", q.table))
	}

	createIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (not_before, id)",
		pq.QuoteIdentifier(q.table+"_due_idx"), q.quotedTable())
	if _, err := q.db.ExecContext(ctx, createIndex); err != nil {
		return goerr.Wrap(err, "failed to create queue index", goerr.V("table", q.table))
	}
	return nil
}

func (q *Postgres) lockKey() int64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(q.table))
	return int64(hasher.Sum64())
}

func (q *Postgres) Enqueue(ctx context.Context, task *model.Task) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}

	notBefore := task.NotBefore
	if notBefore.IsZero() {
		notBefore = time.Now().UTC()
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin enqueue transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if q.capacity > 0 {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", q.lockKey()); err != nil {
			return goerr.Wrap(err, "failed to lock queue")
		}
		var depth int
		if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", q.quotedTable())).Scan(&depth); err != nil {
			return goerr.Wrap(err, "failed to count queue")
		}
		if depth >= q.capacity {
			return goerr.Wrap(ErrQueueFull, "cannot enqueue task",
				goerr.V("task_id", task.ID), goerr.V("capacity", q.capacity))
		}
	}

	insert := fmt.Sprintf("INSERT INTO %s (task_id, kind, payload, not_before) VALUES ($1, $2, $3, $4)", q.quotedTable())
	if _, err := tx.ExecContext(ctx, insert, string(task.ID), string(task.Kind), string(data), notBefore); err != nil {
		return goerr.Wrap(err, "failed to insert task", goerr.V("task_id", task.ID))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit task", goerr.V("task_id", task.ID))
	}
	committed = true
	return nil
}

func (q *Postgres) Dequeue(ctx context.Context) (*model.Task, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET locked_until = NOW() + ($1::double precision * INTERVAL '1 millisecond')
		WHERE id = (
			SELECT id
			FROM %[1]s
			WHERE not_before <= NOW()
				AND (locked_until IS NULL OR locked_until <= NOW())
			ORDER BY not_before ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, payload, locked_until`, q.quotedTable())

	var id int64
	var payload string
	var lockedUntil time.Time
	err := q.db.QueryRowContext(ctx, query, q.lease.Milliseconds()).Scan(&id, &payload, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to lease task")
	}

	task, err := decodeTask([]byte(payload))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode leased task", goerr.V("id", id))
	}
	task.Receipt = strconv.FormatInt(id, 10) + "@" + strconv.FormatInt(lockedUntil.UnixMicro(), 10)
	return task, nil
}

// Ack deletes the leased row. The lease stamp is part of the receipt so a
// late Ack does not delete a row that another worker leased since.
func (q *Postgres) Ack(ctx context.Context, task *model.Task) error {
	if task == nil || task.Receipt == "" {
		return nil
	}

	id, lockedUntil, err := parseReceipt(task.Receipt)
	if err != nil {
		return goerr.Wrap(err, "invalid task receipt", goerr.V("task_id", task.ID), goerr.V("receipt", task.Receipt))
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND locked_until = $2", q.quotedTable())
	if _, err := q.db.ExecContext(ctx, query, id, lockedUntil); err != nil {
		return goerr.Wrap(err, "failed to ack task", goerr.V("task_id", task.ID), goerr.V("id", id))
	}
	return nil
}

func parseReceipt(receipt string) (int64, time.Time, error) {
	idPart, stampPart, ok := strings.Cut(receipt, "@")
	if !ok {
		return 0, time.Time{}, goerr.New("receipt without lease stamp")
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, goerr.Wrap(err, "bad receipt id")
	}
	stamp, err := strconv.ParseInt(stampPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, goerr.Wrap(err, "bad receipt stamp")
	}
	return id, time.UnixMicro(stamp), nil
}

func (q *Postgres) Len(ctx context.Context) (int, error) {
	var depth int
	if err := q.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", q.quotedTable())).Scan(&depth); err != nil {
		return 0, goerr.Wrap(err, "failed to count queue")
	}
	return depth, nil
}

// Drop removes the queue table. Only used to clean up test runs.
func (q *Postgres) Drop(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", q.quotedTable())); err != nil {
		return goerr.Wrap(err, "failed to drop queue table", goerr.V("table", q.table))
	}
	return nil
}

func (q *Postgres) Close() error {
	return q.db.Close()
}
