package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/usecase"
)

func TestCategory_CreateDefaultPropagates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.saveUser(t, "u1", "loc1", types.UserStatusActive)

	result, err := env.uc.Category.Create(ctx, usecase.CategoryInput{Name: "Cold calls", Default: true})
	gt.NoError(t, err).Required()
	gt.NoError(t, result.Category.ID.Validate())
	gt.Value(t, result.Assigned).Equal(1)

	_, err = env.uc.Category.Create(ctx, usecase.CategoryInput{ID: result.Category.ID, Name: "Dup"})
	gt.Error(t, err).Is(usecase.ErrInvalidInput)
}

func TestCategory_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.uc.Category.Create(ctx, usecase.CategoryInput{ID: "no-name"})
	gt.Error(t, err).Is(usecase.ErrInvalidInput)

	_, err = env.uc.Category.Update(ctx, usecase.CategoryInput{ID: "missing", Name: "x"})
	gt.Error(t, err).Is(usecase.ErrCategoryNotFound)

	_, err = env.uc.Category.Get(ctx, "missing")
	gt.Error(t, err).Is(usecase.ErrCategoryNotFound)
}

func TestCategory_DeleteRemovesAssignmentsFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.saveUser(t, "u1", "loc1", types.UserStatusActive)
	env.saveCategory(t, "a", false)
	_, err := env.repo.Assignment().CreateIfAbsent(ctx, &model.Assignment{UserID: "u1", CategoryID: "a"})
	gt.NoError(t, err).Required()

	gt.NoError(t, env.uc.Category.Delete(ctx, "a")).Required()
	gt.Array(t, env.assignments(t, "u1")).Length(0)

	gt.Error(t, env.uc.Category.Delete(ctx, "a")).Is(usecase.ErrCategoryNotFound)
}

func TestCategory_Import(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.saveUser(t, "u1", "loc1", types.UserStatusActive)
	env.saveCategory(t, "closing", false)

	inputs := []usecase.CategoryInput{
		{ID: "onboarding", Name: "Onboarding", Default: true},
		{ID: "closing", Name: "Closing", Default: true},
		{ID: "objections", Name: "Objections"},
	}

	result, err := env.uc.Category.Import(ctx, inputs)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Created).Equal(2)
	gt.Value(t, result.Updated).Equal(1)
	gt.Value(t, result.Assigned).Equal(2)

	again, err := env.uc.Category.Import(ctx, inputs)
	gt.NoError(t, err).Required()
	gt.Value(t, again.Created).Equal(0)
	gt.Value(t, again.Updated).Equal(3)
	gt.Value(t, again.Assigned).Equal(0)

	list, err := env.uc.Category.List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, list).Length(3)

	_, err = env.uc.Category.Import(ctx, []usecase.CategoryInput{{Name: "no id"}})
	gt.Error(t, err).Is(usecase.ErrInvalidInput)
}
