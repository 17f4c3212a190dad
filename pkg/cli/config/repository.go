package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/repository/firestore"
	"github.com/secmon-lab/crmsync/pkg/repository/memory"
	"github.com/secmon-lab/crmsync/pkg/repository/postgres"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	postgresDSN      string
	tablePrefix      string
	autoMigrate      bool
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (memory, firestore or postgres)",
			Category:    "Repository",
			Value:       BackendMemory,
			Sources:     cli.EnvVars("CRMSYNC_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("CRMSYNC_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("CRMSYNC_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix prepended to every Firestore collection name",
			Category:    "Repository",
			Sources:     cli.EnvVars("CRMSYNC_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL DSN (required when using postgres backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("CRMSYNC_POSTGRES_DSN"),
			Destination: &r.postgresDSN,
		},
		&cli.StringFlag{
			Name:        "postgres-table-prefix",
			Usage:       "Prefix prepended to every PostgreSQL table name",
			Category:    "Repository",
			Sources:     cli.EnvVars("CRMSYNC_POSTGRES_TABLE_PREFIX"),
			Destination: &r.tablePrefix,
		},
		&cli.BoolFlag{
			Name:        "postgres-auto-migrate",
			Usage:       "Create or update PostgreSQL tables on startup",
			Category:    "Repository",
			Sources:     cli.EnvVars("CRMSYNC_POSTGRES_AUTO_MIGRATE"),
			Destination: &r.autoMigrate,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("project_id", r.projectID),
		slog.String("database_id", r.databaseID),
		slog.Int("postgres-dsn.len", len(r.postgresDSN)),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// CollectionPrefix returns the Firestore collection prefix
func (r *Repository) CollectionPrefix() string {
	return r.collectionPrefix
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID,
			firestore.WithCollectionPrefix(r.collectionPrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case BackendPostgres:
		repo, err := r.ConfigurePostgres(ctx)
		if err != nil {
			return nil, err
		}
		if r.autoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				_ = repo.Close()
				return nil, goerr.Wrap(err, "failed to migrate postgres schema")
			}
		}
		logging.Default().Info("Using PostgreSQL repository", "table_prefix", r.tablePrefix)
		return repo, nil

	case BackendMemory, "":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrUnsupportedBackend, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}

// ConfigurePostgres opens the PostgreSQL repository without migrating it
func (r *Repository) ConfigurePostgres(ctx context.Context) (*postgres.Postgres, error) {
	if r.postgresDSN == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "postgres-dsn is required when using postgres backend")
	}
	repo, err := postgres.New(ctx, r.postgresDSN, postgres.WithTablePrefix(r.tablePrefix))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize postgres repository")
	}
	return repo, nil
}
