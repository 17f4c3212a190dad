package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/crmsync/pkg/controller/http"
	"github.com/secmon-lab/crmsync/pkg/service/worker"
	"github.com/secmon-lab/crmsync/pkg/utils/async"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var syncOnStart bool
	var tokenRefreshInterval time.Duration
	var maxBodySize int64
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("CRMSYNC_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "sync-on-start",
			Usage:       "Sync users of every connected location in the background on startup",
			Sources:     cli.EnvVars("CRMSYNC_SYNC_ON_START"),
			Destination: &syncOnStart,
		},
		&cli.DurationFlag{
			Name:        "token-refresh-interval",
			Usage:       "Interval of the OAuth token refresh worker (0 disables it)",
			Value:       worker.DefaultTokenRefreshInterval,
			Sources:     cli.EnvVars("CRMSYNC_TOKEN_REFRESH_INTERVAL"),
			Destination: &tokenRefreshInterval,
		},
		&cli.Int64Flag{
			Name:        "max-body-size",
			Usage:       "Maximum accepted request body in bytes",
			Value:       httpctrl.DefaultMaxBodySize,
			Sources:     cli.EnvVars("CRMSYNC_MAX_BODY_SIZE"),
			Destination: &maxBodySize,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server and background workers",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := rtCfg.build(ctx, c.Root().Version)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if err := rt.worker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start task worker")
			}
			defer rt.worker.Stop()

			if tokenRefreshInterval > 0 && rtCfg.crm.IsOAuthConfigured() {
				refreshWorker := worker.NewTokenRefreshWorker(rt.uc.Auth, tokenRefreshInterval)
				if err := refreshWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start token refresh worker")
				}
				defer refreshWorker.Stop()
			}

			if syncOnStart {
				async.Dispatch(ctx, func(ctx context.Context) error {
					results, err := rt.uc.Sync.SyncAll(ctx)
					if err != nil {
						return err
					}
					for _, r := range results {
						logging.From(ctx).Info("startup sync finished",
							"locationID", r.LocationID,
							"processed", r.Processed,
							"created", r.Created,
							"failed", r.Err != nil,
						)
					}
					return nil
				})
			}

			httpOpts := []httpctrl.Options{
				httpctrl.WithMaxBodySize(maxBodySize),
			}
			if secret := rtCfg.crm.WebhookSecret(); secret != "" {
				httpOpts = append(httpOpts, httpctrl.WithWebhookSecret(secret))
				logging.Default().Info("Webhook signature verification enabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(rt.uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
