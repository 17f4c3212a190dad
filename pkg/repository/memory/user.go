package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[types.UserID]*model.User
}

func newUserRepository() *userRepository {
	return &userRepository{
		users: make(map[types.UserID]*model.User),
	}
}

func (r *userRepository) Upsert(ctx context.Context, user *model.User) (*model.UpsertResult, error) {
	if user.ID == "" {
		return nil, goerr.New("user ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	saved := user.Copy()
	saved.UpdatedAt = now

	existing, ok := r.users[user.ID]
	if ok {
		saved.CreatedAt = existing.CreatedAt
	} else {
		saved.CreatedAt = now
	}
	r.users[saved.ID] = saved

	result := &model.UpsertResult{
		User:    saved.Copy(),
		Created: !ok,
	}
	if ok {
		result.Previous = existing.Copy()
	}
	return result, nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
	}
	return user.Copy(), nil
}

func (r *userRepository) GetInLocation(ctx context.Context, id types.UserID, locationID types.LocationID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok || user.LocationID != locationID {
		return nil, goerr.Wrap(ErrNotFound, "user not found in location",
			goerr.V("id", id), goerr.V("location_id", locationID))
	}
	return user.Copy(), nil
}

func (r *userRepository) list(filter func(*model.User) bool) []*model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		if filter(u) {
			users = append(users, u.Copy())
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	return r.list(func(*model.User) bool { return true }), nil
}

func (r *userRepository) ListByLocation(ctx context.Context, locationID types.LocationID) ([]*model.User, error) {
	return r.list(func(u *model.User) bool { return u.LocationID == locationID }), nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]*model.User, error) {
	return r.list(func(u *model.User) bool { return u.IsActive() }), nil
}

func (r *userRepository) Delete(ctx context.Context, id types.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
	}
	delete(r.users, id)
	return nil
}
