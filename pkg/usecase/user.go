package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

type UserUseCase struct {
	repo interfaces.Repository
}

func NewUserUseCase(repo interfaces.Repository) *UserUseCase {
	return &UserUseCase{repo: repo}
}

func (uc *UserUseCase) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	user, err := uc.repo.User().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, id))
	}
	return user, nil
}

// List returns the users of a location, or every user when locationID is
// empty.
func (uc *UserUseCase) List(ctx context.Context, locationID types.LocationID) ([]*model.User, error) {
	if locationID == "" {
		users, err := uc.repo.User().List(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list users")
		}
		return users, nil
	}

	users, err := uc.repo.User().ListByLocation(ctx, locationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list users", goerr.V(LocationIDKey, locationID))
	}
	return users, nil
}

// Delete removes the assignments of the user and then the user itself.
// Assignments are removed first so that no assignment ever outlives its
// user.
func (uc *UserUseCase) Delete(ctx context.Context, id types.UserID) error {
	removed, err := uc.repo.Assignment().DeleteByUser(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete assignments of user", goerr.V(UserIDKey, id))
	}

	if err := uc.repo.User().Delete(ctx, id); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, id))
		}
		return goerr.Wrap(err, "failed to delete user", goerr.V(UserIDKey, id))
	}

	logging.From(ctx).Info("user deleted", "userID", id, "assignments", removed)
	return nil
}
