package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

// assigner owns the single write path for assignments: create-if-absent
// locally, then publish a projection task for every row that was created.
type assigner struct {
	repo  interfaces.Repository
	queue interfaces.TaskQueue
	now   func() time.Time
}

func newAssigner(repo interfaces.Repository, queue interfaces.TaskQueue, now func() time.Time) *assigner {
	return &assigner{repo: repo, queue: queue, now: now}
}

// assign creates the (user, category) assignment unless it exists. It
// reports whether a new row was written.
func (a *assigner) assign(ctx context.Context, user *model.User, category *model.Category) (bool, error) {
	created, err := a.repo.Assignment().CreateIfAbsent(ctx, &model.Assignment{
		UserID:     user.ID,
		CategoryID: category.ID,
		AssignedAt: a.now(),
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to create assignment",
			goerr.V(UserIDKey, user.ID),
			goerr.V(CategoryIDKey, category.ID))
	}
	if !created {
		return false, nil
	}

	logging.From(ctx).Debug("assignment created", "userID", user.ID, "categoryID", category.ID)
	a.publish(ctx, user, category)
	return true, nil
}

// assignEach assigns every category to the user and returns the number of
// rows created. Failures stop at the first error.
func (a *assigner) assignEach(ctx context.Context, user *model.User, categories []*model.Category) (int, error) {
	count := 0
	for _, category := range categories {
		created, err := a.assign(ctx, user, category)
		if err != nil {
			return count, err
		}
		if created {
			count++
		}
	}
	return count, nil
}

// publish enqueues a projection task. The local assignment is already
// committed, so an enqueue failure is logged and not returned.
func (a *assigner) publish(ctx context.Context, user *model.User, category *model.Category) {
	task := model.NewAssignmentTask(user, category, a.now())
	if err := a.queue.Enqueue(ctx, task); err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to enqueue assignment task",
			goerr.V(UserIDKey, user.ID),
			goerr.V(CategoryIDKey, category.ID)), "assignment task dropped")
	}
}

func (a *assigner) publishRefresh(ctx context.Context, user *model.User) {
	task := model.NewContactRefreshTask(user, a.now())
	if err := a.queue.Enqueue(ctx, task); err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to enqueue contact refresh task",
			goerr.V(UserIDKey, user.ID)), "contact refresh task dropped")
	}
}
