package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/repository/memory"
	"github.com/secmon-lab/crmsync/pkg/service/queue"
	"github.com/secmon-lab/crmsync/pkg/usecase"
)

type testEnv struct {
	repo  *memory.Memory
	queue *queue.Memory
	crm   *mockCRM
	uc    *usecase.UseCases
}

func newTestEnv(t *testing.T, opts ...usecase.Option) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:  memory.New(),
		queue: queue.NewMemory(),
		crm:   newMockCRM(),
	}
	opts = append([]usecase.Option{
		usecase.WithCRM(env.crm),
		usecase.WithTaskQueue(env.queue),
	}, opts...)
	env.uc = usecase.New(env.repo, opts...)
	return env
}

func (e *testEnv) connect(t *testing.T, locationID types.LocationID) {
	t.Helper()
	gt.NoError(t, e.repo.Credentials().Save(context.Background(), &model.Credentials{
		LocationID:   locationID,
		AccessToken:  "access-" + string(locationID),
		RefreshToken: "refresh-" + string(locationID),
	})).Required()
}

func (e *testEnv) saveUser(t *testing.T, id types.UserID, locationID types.LocationID, status types.UserStatus) *model.User {
	t.Helper()
	result, err := e.repo.User().Upsert(context.Background(), &model.User{
		ID:          id,
		LocationRef: locationID,
		LocationID:  locationID,
		Name:        "User " + string(id),
		Email:       string(id) + "@example.com",
		Status:      status,
	})
	gt.NoError(t, err).Required()
	return result.User
}

func (e *testEnv) saveCategory(t *testing.T, id types.CategoryID, isDefault bool) *model.Category {
	t.Helper()
	c := &model.Category{ID: id, Name: "Category " + string(id), Default: isDefault}
	_, err := e.repo.Category().Save(context.Background(), c)
	gt.NoError(t, err).Required()
	return c
}

func (e *testEnv) assignments(t *testing.T, userID types.UserID) []*model.Assignment {
	t.Helper()
	list, err := e.repo.Assignment().ListByUser(context.Background(), userID)
	gt.NoError(t, err).Required()
	return list
}

// drainTasks dequeues and acknowledges every due task
func (e *testEnv) drainTasks(t *testing.T) []*model.Task {
	t.Helper()
	var tasks []*model.Task
	for {
		task, err := e.queue.Dequeue(context.Background())
		gt.NoError(t, err).Required()
		if task == nil {
			return tasks
		}
		gt.NoError(t, e.queue.Ack(context.Background(), task)).Required()
		tasks = append(tasks, task)
	}
}
