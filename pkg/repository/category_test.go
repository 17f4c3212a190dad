package repository_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

func runCategoryRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Save returns previous state", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		cat := &model.Category{ID: types.NewCategoryID(), Name: "Onboarding", Description: "first steps"}
		prev, err := repo.Category().Save(ctx, cat)
		gt.NoError(t, err).Required()
		gt.Value(t, prev).Nil()

		cat.Default = true
		prev, err = repo.Category().Save(ctx, cat)
		gt.NoError(t, err).Required()
		gt.Value(t, prev).NotNil()
		gt.Bool(t, prev.Default).False()

		prev, err = repo.Category().Save(ctx, cat)
		gt.NoError(t, err).Required()
		gt.Bool(t, prev.Default).True()

		got, err := repo.Category().Get(ctx, cat.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("Onboarding")
		gt.Value(t, got.Description).Equal("first steps")
		gt.Bool(t, got.Default).True()
	})

	t.Run("ListDefault returns only default categories", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		def := &model.Category{ID: types.NewCategoryID(), Name: "Default", Default: true}
		other := &model.Category{ID: types.NewCategoryID(), Name: "Other"}
		for _, c := range []*model.Category{def, other} {
			_, err := repo.Category().Save(ctx, c)
			gt.NoError(t, err).Required()
		}

		defaults, err := repo.Category().ListDefault(ctx)
		gt.NoError(t, err).Required()
		found := map[types.CategoryID]bool{}
		for _, c := range defaults {
			found[c.ID] = true
		}
		gt.Bool(t, found[def.ID]).True()
		gt.Bool(t, found[other.ID]).False()

		all, err := repo.Category().List(ctx)
		gt.NoError(t, err).Required()
		gt.Number(t, len(all)).GreaterOrEqual(2)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		cat := &model.Category{ID: types.NewCategoryID(), Name: "Temp"}
		_, err := repo.Category().Save(ctx, cat)
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Category().Delete(ctx, cat.ID)).Required()
		_, err = repo.Category().Get(ctx, cat.ID)
		gt.Error(t, err).Is(interfaces.ErrNotFound)
		gt.Error(t, repo.Category().Delete(ctx, cat.ID)).Is(interfaces.ErrNotFound)
	})
}

func TestCategoryRepository(t *testing.T) {
	runAllBackends(t, runCategoryRepositoryTest)
}
