package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/cli/config"
	"github.com/secmon-lab/crmsync/pkg/repository/firestore"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
	"github.com/secmon-lab/crmsync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dryRun bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview Firestore index changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes or PostgreSQL tables",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			switch repoCfg.Backend() {
			case config.BackendFirestore:
				return migrateFirestore(ctx, &repoCfg, dryRun)
			case config.BackendPostgres:
				return migratePostgres(ctx, &repoCfg)
			default:
				logging.Default().Info("Nothing to migrate", "backend", repoCfg.Backend())
				return nil
			}
		},
	}
}

func migratePostgres(ctx context.Context, repoCfg *config.Repository) error {
	repo, err := repoCfg.ConfigurePostgres(ctx)
	if err != nil {
		return err
	}
	defer safe.Close(ctx, repo)

	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	logging.Default().Info("PostgreSQL schema migrated")
	return nil
}

func migrateFirestore(ctx context.Context, repoCfg *config.Repository, dryRun bool) error {
	logger := logging.Default()
	if repoCfg.ProjectID() == "" {
		return goerr.Wrap(config.ErrInvalidConfig, "firestore-project-id is required for migration")
	}

	logger.Info("Migrate configuration",
		"projectID", repoCfg.ProjectID(),
		"databaseID", repoCfg.DatabaseID(),
		"dryRun", dryRun)

	indexConfig := getIndexConfig(repoCfg.CollectionPrefix())

	client, err := fireconf.NewClient(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID())
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}

		if len(plan.Steps) == 0 {
			logger.Info("No changes required")
			return nil
		}

		for _, step := range plan.Steps {
			logger.Info("Migration step",
				"collection", step.Collection,
				"operation", step.Operation,
				"description", step.Description,
				"destructive", step.Destructive)
		}
		return nil
	}

	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

// getIndexConfig returns the composite indexes backing the ordered
// repository queries
func getIndexConfig(prefix string) *fireconf.Config {
	name := func(base string) string {
		if prefix != "" {
			return prefix + "_" + base
		}
		return base
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: name(firestore.CollectionUsers),
				Indexes: []fireconf.Index{
					// ListByLocation
					{
						Fields: []fireconf.IndexField{
							{Path: "location_id", Order: fireconf.OrderAscending},
							{Path: "id", Order: fireconf.OrderAscending},
						},
					},
					// ListActive
					{
						Fields: []fireconf.IndexField{
							{Path: "status", Order: fireconf.OrderAscending},
							{Path: "id", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: name(firestore.CollectionCategories),
				Indexes: []fireconf.Index{
					// ListDefault
					{
						Fields: []fireconf.IndexField{
							{Path: "default", Order: fireconf.OrderAscending},
							{Path: "name", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
