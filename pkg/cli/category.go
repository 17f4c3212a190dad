package cli

import (
	"context"
	"os"

	"github.com/secmon-lab/crmsync/pkg/cli/config"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdCategory() *cli.Command {
	return &cli.Command{
		Name:  "category",
		Usage: "Manage roleplay categories",
		Commands: []*cli.Command{
			cmdCategoryImport(),
		},
	}
}

func cmdCategoryImport() *cli.Command {
	var path string
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Path to the category TOML file",
			Required:    true,
			Sources:     cli.EnvVars("CRMSYNC_CATEGORY_FILE"),
			Destination: &path,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:  "import",
		Usage: "Create or update categories from a TOML file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			file, err := config.LoadCategoryFile(path)
			if err != nil {
				return err
			}
			logging.Default().Info("Category file loaded", "path", path, "count", len(file.Categories))

			rt, err := rtCfg.build(ctx, c.Root().Version)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			result, err := rt.uc.Category.Import(ctx, file.Inputs())
			if err != nil {
				return err
			}

			projected, err := rt.drain(ctx)
			if err != nil {
				return err
			}

			_, _ = okColor.Fprint(os.Stdout, "OK ")
			printCounts(os.Stdout,
				"created", result.Created,
				"updated", result.Updated,
				"assigned", result.Assigned,
				"projected", projected,
			)
			return nil
		},
	}
}
