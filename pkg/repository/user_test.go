package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

func runUserRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Upsert creates then updates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := types.UserID(uniqueID("u"))

		user := &model.User{
			ID:          id,
			LocationRef: "loc1",
			LocationID:  "loc1",
			Name:        "Ada Lovelace",
			FirstName:   "Ada",
			LastName:    "Lovelace",
			Email:       "ada@example.com",
			Status:      types.UserStatusInactive,
		}

		first, err := repo.User().Upsert(ctx, user)
		gt.NoError(t, err).Required()
		gt.Bool(t, first.Created).True()
		gt.Value(t, first.Previous).Nil()
		gt.Bool(t, first.User.CreatedAt.IsZero()).False()

		user.Status = types.UserStatusActive
		user.Phone = "+100"
		second, err := repo.User().Upsert(ctx, user)
		gt.NoError(t, err).Required()
		gt.Bool(t, second.Created).False()
		gt.Value(t, second.Previous).NotNil()
		gt.Value(t, second.Previous.Status).Equal(types.UserStatusInactive)
		gt.Bool(t, second.Activated()).True()

		got, err := repo.User().Get(ctx, id)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Phone).Equal("+100")
		gt.Value(t, got.Email).Equal("ada@example.com")
		gt.Bool(t, got.IsActive()).True()
	})

	t.Run("concurrent upsert creates exactly once", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := types.UserID(uniqueID("u"))

		var wg sync.WaitGroup
		var mu sync.Mutex
		created := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := repo.User().Upsert(ctx, &model.User{ID: id, LocationID: "loc1", Status: types.UserStatusActive})
				if err != nil {
					t.Errorf("upsert failed: %v", err)
					return
				}
				if res.Created {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		gt.Value(t, created).Equal(1)
	})

	t.Run("GetInLocation is scoped to the location", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := types.UserID(uniqueID("u"))

		_, err := repo.User().Upsert(ctx, &model.User{ID: id, LocationRef: "loc1", LocationID: "loc1"})
		gt.NoError(t, err).Required()

		got, err := repo.User().GetInLocation(ctx, id, "loc1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(id)

		_, err = repo.User().GetInLocation(ctx, id, "loc2")
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("List filters", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		loc := types.LocationID(uniqueID("loc"))

		users := []*model.User{
			{ID: types.UserID(uniqueID("a")), LocationID: loc, Status: types.UserStatusActive},
			{ID: types.UserID(uniqueID("b")), LocationID: loc, Status: types.UserStatusInactive},
			{ID: types.UserID(uniqueID("c")), LocationID: "elsewhere", Status: "Active"},
		}
		for _, u := range users {
			_, err := repo.User().Upsert(ctx, u)
			gt.NoError(t, err).Required()
		}

		byLoc, err := repo.User().ListByLocation(ctx, loc)
		gt.NoError(t, err).Required()
		gt.Array(t, byLoc).Length(2)

		active, err := repo.User().ListActive(ctx)
		gt.NoError(t, err).Required()
		activeIDs := map[types.UserID]bool{}
		for _, u := range active {
			activeIDs[u.ID] = true
		}
		gt.Bool(t, activeIDs[users[0].ID]).True()
		gt.Bool(t, activeIDs[users[1].ID]).False()
		gt.Bool(t, activeIDs[users[2].ID]).True()
	})

	t.Run("Delete removes user and reports missing", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := types.UserID(uniqueID("u"))

		_, err := repo.User().Upsert(ctx, &model.User{ID: id, LocationID: "loc1"})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.User().Delete(ctx, id)).Required()

		_, err = repo.User().Get(ctx, id)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()

		err = repo.User().Delete(ctx, id)
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})
}

func TestUserRepository(t *testing.T) {
	runAllBackends(t, runUserRepositoryTest)
}
