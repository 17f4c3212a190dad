package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

// PropagatorUseCase spreads default categories onto active users
type PropagatorUseCase struct {
	repo     interfaces.Repository
	assigner *assigner
}

// PropagationResult summarizes a bulk default assignment run
type PropagationResult struct {
	Users      int
	Categories int
	Created    int
	Failed     int
}

func NewPropagatorUseCase(repo interfaces.Repository, assigner *assigner) *PropagatorUseCase {
	return &PropagatorUseCase{repo: repo, assigner: assigner}
}

// OnCategorySaved assigns a category to every active user when it has just
// become a default category. Saving an already-default category again does
// nothing. Per-user failures are logged and skipped.
func (uc *PropagatorUseCase) OnCategorySaved(ctx context.Context, category *model.Category, previousDefault bool) (int, error) {
	if previousDefault || !category.Default {
		return 0, nil
	}

	users, err := uc.repo.User().ListActive(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list active users", goerr.V(CategoryIDKey, category.ID))
	}

	created := 0
	for _, user := range users {
		ok, err := uc.assigner.assign(ctx, user, category)
		if err != nil {
			_ = errutil.Handle(ctx, err, "failed to propagate default category")
			continue
		}
		if ok {
			created++
		}
	}

	logging.From(ctx).Info("default category propagated",
		"categoryID", category.ID,
		"activeUsers", len(users),
		"created", created)

	return created, nil
}

// OnUserActivated assigns every default category to the user
func (uc *PropagatorUseCase) OnUserActivated(ctx context.Context, user *model.User) (int, error) {
	categories, err := uc.repo.Category().ListDefault(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list default categories", goerr.V(UserIDKey, user.ID))
	}

	created, err := uc.assigner.assignEach(ctx, user, categories)
	if err != nil {
		return created, err
	}

	if created > 0 {
		logging.From(ctx).Info("default categories assigned", "userID", user.ID, "created", created)
	}
	return created, nil
}

// AssignDefaultsToActiveUsers ensures every active user holds every default
// category.
func (uc *PropagatorUseCase) AssignDefaultsToActiveUsers(ctx context.Context) (*PropagationResult, error) {
	categories, err := uc.repo.Category().ListDefault(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list default categories")
	}

	users, err := uc.repo.User().ListActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list active users")
	}

	result := &PropagationResult{
		Users:      len(users),
		Categories: len(categories),
	}

	for _, user := range users {
		created, err := uc.assigner.assignEach(ctx, user, categories)
		result.Created += created
		if err != nil {
			_ = errutil.Handle(ctx, err, "failed to assign default categories")
			result.Failed++
		}
	}

	logging.From(ctx).Info("default categories assigned to active users",
		"users", result.Users,
		"categories", result.Categories,
		"created", result.Created,
		"failed", result.Failed)

	return result, nil
}
