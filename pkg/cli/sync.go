package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	keyColor  = color.New(color.FgHiCyan)
)

func printSyncResults(w io.Writer, results []*usecase.SyncResult, projected int) {
	for _, r := range results {
		if r.Err != nil {
			_, _ = failColor.Fprint(w, "FAIL ")
			_, _ = fmt.Fprintf(w, "%s %s\n", r.LocationID, r.Err.Error())
			continue
		}
		_, _ = okColor.Fprint(w, "OK   ")
		_, _ = fmt.Fprintf(w, "%s ", r.LocationID)
		printCounts(w,
			"processed", r.Processed,
			"created", r.Created,
			"updated", r.Updated,
			"skipped", r.Skipped,
			"assigned", r.Assigned,
		)
	}
	_, _ = keyColor.Fprint(w, "projected")
	_, _ = fmt.Fprintf(w, "=%d\n", projected)
}

// printCounts writes alternating key/count pairs on one line
func printCounts(w io.Writer, pairs ...any) {
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			_, _ = fmt.Fprint(w, " ")
		}
		_, _ = keyColor.Fprint(w, pairs[i])
		_, _ = fmt.Fprintf(w, "=%v", pairs[i+1])
	}
	_, _ = fmt.Fprintln(w)
}

func cmdSync() *cli.Command {
	var locationID string
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "location-id",
			Aliases:     []string{"l"},
			Usage:       "Sync only this location (default: every connected location)",
			Destination: &locationID,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror remote users into storage and project new assignments",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := rtCfg.build(ctx, c.Root().Version)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			var results []*usecase.SyncResult
			if locationID != "" {
				result, err := rt.uc.Sync.RefreshLocation(ctx, types.LocationID(locationID))
				if err != nil {
					return err
				}
				results = append(results, result)
			} else {
				results, err = rt.uc.Sync.SyncAll(ctx)
				if err != nil {
					return err
				}
			}

			projected, err := rt.drain(ctx)
			if err != nil {
				return err
			}

			printSyncResults(os.Stdout, results, projected)
			return nil
		},
	}
}

func cmdAssignDefaults() *cli.Command {
	var rtCfg runtimeConfig

	return &cli.Command{
		Name:  "assign-defaults",
		Usage: "Assign every default category to every active user",
		Flags: rtCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := rtCfg.build(ctx, c.Root().Version)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			result, err := rt.uc.Propagator.AssignDefaultsToActiveUsers(ctx)
			if err != nil {
				return err
			}

			projected, err := rt.drain(ctx)
			if err != nil {
				return err
			}

			if result.Failed > 0 {
				_, _ = failColor.Fprint(os.Stdout, "PARTIAL ")
			} else {
				_, _ = okColor.Fprint(os.Stdout, "OK ")
			}
			printCounts(os.Stdout,
				"users", result.Users,
				"categories", result.Categories,
				"created", result.Created,
				"failed", result.Failed,
				"projected", projected,
			)
			return nil
		},
	}
}

func cmdRefreshTokens() *cli.Command {
	var rtCfg runtimeConfig

	return &cli.Command{
		Name:  "refresh-tokens",
		Usage: "Refresh the OAuth tokens of every connected location",
		Flags: rtCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := rtCfg.build(ctx, c.Root().Version)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			result, err := rt.uc.Auth.RefreshAll(ctx)
			if err != nil {
				return err
			}

			if result.Failed > 0 {
				_, _ = failColor.Fprint(os.Stdout, "PARTIAL ")
			} else {
				_, _ = okColor.Fprint(os.Stdout, "OK ")
			}
			printCounts(os.Stdout, "refreshed", result.Refreshed, "failed", result.Failed)
			return nil
		},
	}
}
