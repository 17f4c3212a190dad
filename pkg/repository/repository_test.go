package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/repository/firestore"
	"github.com/secmon-lab/crmsync/pkg/repository/memory"
	"github.com/secmon-lab/crmsync/pkg/repository/postgres"
)

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
	repo, err := postgres.New(ctx, dsn, postgres.WithTablePrefix(prefix))
	if err != nil {
		t.Fatalf("failed to create postgres repository: %v", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate postgres repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.DropAll(context.Background()); err != nil {
			t.Errorf("failed to drop postgres tables: %v", err)
		}
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close postgres repository: %v", err)
		}
	})
	return repo
}

// runAllBackends runs a contract test against every repository backend
func runAllBackends(t *testing.T, run func(t *testing.T, newRepo func(t *testing.T) interfaces.Repository)) {
	t.Run("memory", func(t *testing.T) { run(t, newMemoryRepository) })
	t.Run("firestore", func(t *testing.T) { run(t, newFirestoreRepository) })
	t.Run("postgres", func(t *testing.T) { run(t, newPostgresRepository) })
}

// uniqueID returns an ID that does not collide across runs sharing a backend
func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
