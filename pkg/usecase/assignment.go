package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

// AssignmentUseCase administers user/category assignments
type AssignmentUseCase struct {
	repo     interfaces.Repository
	assigner *assigner
	now      func() time.Time
}

// BulkAssignResult reports an AssignAllCategories run
type BulkAssignResult struct {
	LocationID types.LocationID
	Users      int
	Categories int
	Created    int
}

func NewAssignmentUseCase(repo interfaces.Repository, assigner *assigner, now func() time.Time) *AssignmentUseCase {
	return &AssignmentUseCase{repo: repo, assigner: assigner, now: now}
}

// SetUserCategories replaces the category set of a user. The user and every
// category are checked before anything is written, so an unknown id leaves
// the current assignments untouched. A projection task is published for
// every resulting assignment.
func (uc *AssignmentUseCase) SetUserCategories(ctx context.Context, userID types.UserID, categoryIDs []types.CategoryID) ([]*model.Assignment, error) {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, userID))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}

	seen := make(map[types.CategoryID]struct{}, len(categoryIDs))
	ids := make([]types.CategoryID, 0, len(categoryIDs))
	categories := make(map[types.CategoryID]*model.Category, len(categoryIDs))
	for _, id := range categoryIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if err := id.Validate(); err != nil {
			return nil, goerr.Wrap(ErrInvalidInput, "invalid category ID",
				goerr.V(CategoryIDKey, id), goerr.V("reason", err.Error()))
		}

		category, err := uc.repo.Category().Get(ctx, id)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return nil, goerr.Wrap(ErrCategoryNotFound, "category not found", goerr.V(CategoryIDKey, id))
			}
			return nil, goerr.Wrap(err, "failed to get category", goerr.V(CategoryIDKey, id))
		}
		categories[id] = category
		ids = append(ids, id)
	}

	assignments, err := uc.repo.Assignment().ReplaceForUser(ctx, userID, ids, uc.now())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to replace assignments", goerr.V(UserIDKey, userID))
	}

	for _, a := range assignments {
		if category, ok := categories[a.CategoryID]; ok {
			uc.assigner.publish(ctx, user, category)
		}
	}

	logging.From(ctx).Info("user categories replaced", "userID", userID, "categories", len(assignments))
	return assignments, nil
}

// AssignAllCategories gives every user of the location every category in
// one storage unit. Projection tasks are published after the write
// committed.
func (uc *AssignmentUseCase) AssignAllCategories(ctx context.Context, locationID types.LocationID) (*BulkAssignResult, error) {
	if locationID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "location ID is required")
	}

	users, err := uc.repo.User().ListByLocation(ctx, locationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list users", goerr.V(LocationIDKey, locationID))
	}
	categories, err := uc.repo.Category().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list categories")
	}

	result := &BulkAssignResult{
		LocationID: locationID,
		Users:      len(users),
		Categories: len(categories),
	}
	if len(users) == 0 || len(categories) == 0 {
		return result, nil
	}

	now := uc.now()
	usersByID := make(map[types.UserID]*model.User, len(users))
	categoriesByID := make(map[types.CategoryID]*model.Category, len(categories))
	for _, c := range categories {
		categoriesByID[c.ID] = c
	}

	pairs := make([]*model.Assignment, 0, len(users)*len(categories))
	for _, u := range users {
		usersByID[u.ID] = u
		for _, c := range categories {
			pairs = append(pairs, &model.Assignment{UserID: u.ID, CategoryID: c.ID, AssignedAt: now})
		}
	}

	created, err := uc.repo.Assignment().AssignAll(ctx, pairs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to assign categories", goerr.V(LocationIDKey, locationID))
	}
	result.Created = len(created)

	for _, a := range created {
		uc.assigner.publish(ctx, usersByID[a.UserID], categoriesByID[a.CategoryID])
	}

	logging.From(ctx).Info("all categories assigned",
		"locationID", locationID,
		"users", result.Users,
		"categories", result.Categories,
		"created", result.Created)

	return result, nil
}

// ListUserCategories returns the categories assigned to a user
func (uc *AssignmentUseCase) ListUserCategories(ctx context.Context, userID types.UserID) ([]*model.Category, error) {
	if _, err := uc.repo.User().Get(ctx, userID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, userID))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}

	assignments, err := uc.repo.Assignment().ListByUser(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list assignments", goerr.V(UserIDKey, userID))
	}

	categories := make([]*model.Category, 0, len(assignments))
	for _, a := range assignments {
		category, err := uc.repo.Category().Get(ctx, a.CategoryID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				logging.From(ctx).Warn("assignment references missing category", "userID", userID, "categoryID", a.CategoryID)
				continue
			}
			return nil, goerr.Wrap(err, "failed to get category", goerr.V(CategoryIDKey, a.CategoryID))
		}
		categories = append(categories, category)
	}
	return categories, nil
}
