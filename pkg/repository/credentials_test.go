package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

func runCredentialsRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Save and Get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		loc := types.LocationID(uniqueID("loc"))
		expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		cred := &model.Credentials{
			LocationID:   loc,
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
			ExpiresAt:    expiresAt,
			Scope:        "users.readonly",
			LocationName: "Main Office",
			Timezone:     "Asia/Tokyo",
		}
		gt.NoError(t, repo.Credentials().Save(ctx, cred)).Required()

		got, err := repo.Credentials().Get(ctx, loc)
		gt.NoError(t, err).Required()
		gt.Value(t, got.AccessToken).Equal("access-1")
		gt.Value(t, got.LocationName).Equal("Main Office")
		gt.Value(t, got.Timezone).Equal("Asia/Tokyo")
		gt.Bool(t, got.ExpiresAt.Equal(expiresAt)).True()
		createdAt := got.CreatedAt

		got.ReplaceTokens(model.TokenSet{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 60})
		gt.NoError(t, repo.Credentials().Save(ctx, got)).Required()

		updated, err := repo.Credentials().Get(ctx, loc)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.AccessToken).Equal("access-2")
		gt.Value(t, updated.RefreshToken).Equal("refresh-2")
		gt.Value(t, updated.Scope).Equal("")
		gt.Bool(t, updated.CreatedAt.Equal(createdAt)).True()
	})

	t.Run("Get unknown location", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Credentials().Get(context.Background(), types.LocationID(uniqueID("missing")))
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		a := types.LocationID(uniqueID("a"))
		b := types.LocationID(uniqueID("b"))
		gt.NoError(t, repo.Credentials().Save(ctx, &model.Credentials{LocationID: a})).Required()
		gt.NoError(t, repo.Credentials().Save(ctx, &model.Credentials{LocationID: b})).Required()

		list, err := repo.Credentials().List(ctx)
		gt.NoError(t, err).Required()
		found := 0
		for _, c := range list {
			if c.LocationID == a || c.LocationID == b {
				found++
			}
		}
		gt.Value(t, found).Equal(2)
	})
}

func TestCredentialsRepository(t *testing.T) {
	runAllBackends(t, runCredentialsRepositoryTest)
}
