package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

type CategoryUseCase struct {
	repo       interfaces.Repository
	propagator *PropagatorUseCase
}

// CategoryInput carries the writable fields of a category. An empty ID on
// create generates a new one.
type CategoryInput struct {
	ID          types.CategoryID `json:"id" toml:"id"`
	Name        string           `json:"name" toml:"name"`
	Description string           `json:"description" toml:"description"`
	Default     bool             `json:"default" toml:"default"`
}

// CategorySaveResult is a saved category and the number of assignments its
// save propagated.
type CategorySaveResult struct {
	Category *model.Category
	Assigned int
}

// ImportResult summarizes a category import
type ImportResult struct {
	Created  int
	Updated  int
	Assigned int
}

func NewCategoryUseCase(repo interfaces.Repository, propagator *PropagatorUseCase) *CategoryUseCase {
	return &CategoryUseCase{repo: repo, propagator: propagator}
}

func (uc *CategoryUseCase) Create(ctx context.Context, input CategoryInput) (*CategorySaveResult, error) {
	if input.ID == "" {
		input.ID = types.NewCategoryID()
	}

	if _, err := uc.repo.Category().Get(ctx, input.ID); err == nil {
		return nil, goerr.Wrap(ErrInvalidInput, "category already exists", goerr.V(CategoryIDKey, input.ID))
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to get category", goerr.V(CategoryIDKey, input.ID))
	}

	result, _, err := uc.save(ctx, input)
	return result, err
}

func (uc *CategoryUseCase) Update(ctx context.Context, input CategoryInput) (*CategorySaveResult, error) {
	if _, err := uc.Get(ctx, input.ID); err != nil {
		return nil, err
	}

	result, _, err := uc.save(ctx, input)
	return result, err
}

// save writes the category and runs default propagation when the save
// turned it into a default category. The bool reports whether the category
// is new.
func (uc *CategoryUseCase) save(ctx context.Context, input CategoryInput) (*CategorySaveResult, bool, error) {
	category := &model.Category{
		ID:          input.ID,
		Name:        input.Name,
		Description: input.Description,
		Default:     input.Default,
	}
	if err := category.Validate(); err != nil {
		return nil, false, goerr.Wrap(ErrInvalidInput, err.Error(), goerr.V(CategoryIDKey, input.ID))
	}

	previous, err := uc.repo.Category().Save(ctx, category)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to save category", goerr.V(CategoryIDKey, category.ID))
	}

	saved, err := uc.repo.Category().Get(ctx, category.ID)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to reload category", goerr.V(CategoryIDKey, category.ID))
	}

	previousDefault := previous != nil && previous.Default
	assigned, err := uc.propagator.OnCategorySaved(ctx, saved, previousDefault)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to propagate default category")
	}

	logging.From(ctx).Info("category saved",
		"categoryID", saved.ID,
		"default", saved.Default,
		"becameDefault", saved.BecameDefault(previous),
		"assigned", assigned)

	return &CategorySaveResult{Category: saved, Assigned: assigned}, previous == nil, nil
}

func (uc *CategoryUseCase) Get(ctx context.Context, id types.CategoryID) (*model.Category, error) {
	category, err := uc.repo.Category().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrCategoryNotFound, "category not found", goerr.V(CategoryIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get category", goerr.V(CategoryIDKey, id))
	}
	return category, nil
}

func (uc *CategoryUseCase) List(ctx context.Context) ([]*model.Category, error) {
	categories, err := uc.repo.Category().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list categories")
	}
	return categories, nil
}

// Delete removes the assignments of the category before the category
func (uc *CategoryUseCase) Delete(ctx context.Context, id types.CategoryID) error {
	if _, err := uc.Get(ctx, id); err != nil {
		return err
	}

	removed, err := uc.repo.Assignment().DeleteByCategory(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete assignments of category", goerr.V(CategoryIDKey, id))
	}

	if err := uc.repo.Category().Delete(ctx, id); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrCategoryNotFound, "category not found", goerr.V(CategoryIDKey, id))
		}
		return goerr.Wrap(err, "failed to delete category", goerr.V(CategoryIDKey, id))
	}

	logging.From(ctx).Info("category deleted", "categoryID", id, "assignments", removed)
	return nil
}

// Import creates or updates every category in inputs. Inputs must carry
// an ID so that repeated imports converge.
func (uc *CategoryUseCase) Import(ctx context.Context, inputs []CategoryInput) (*ImportResult, error) {
	for _, input := range inputs {
		if err := input.ID.Validate(); err != nil {
			return nil, goerr.Wrap(ErrInvalidInput, "imported category needs a valid ID",
				goerr.V(CategoryIDKey, input.ID), goerr.V("name", input.Name))
		}
	}

	result := &ImportResult{}
	for _, input := range inputs {
		saved, created, err := uc.save(ctx, input)
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Assigned += saved.Assigned
	}
	return result, nil
}
