package queue

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
)

// New builds a task queue from a DSN. An empty DSN or "memory://" selects
// the in-process queue; "postgres://" and "postgresql://" select the
// Postgres queue.
func New(ctx context.Context, dsn string, opts ...PostgresOption) (interfaces.TaskQueue, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == "memory://" || dsn == "memory" {
		return NewMemory(), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse queue DSN")
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		return NewMemory(), nil
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn, opts...)
	default:
		return nil, goerr.New("unsupported queue DSN scheme", goerr.V("scheme", u.Scheme))
	}
}

func encodeTask(task *model.Task) ([]byte, error) {
	if err := task.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid task")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode task", goerr.V("task_id", task.ID))
	}
	return data, nil
}

func decodeTask(data []byte) (*model.Task, error) {
	var task model.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, goerr.Wrap(err, "failed to decode task")
	}
	return &task, nil
}
