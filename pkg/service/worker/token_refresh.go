package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/crmsync/pkg/usecase"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

const DefaultTokenRefreshInterval = time.Hour

// TokenRefresher refreshes the stored OAuth tokens of every location
type TokenRefresher interface {
	RefreshAll(ctx context.Context) (*usecase.RefreshResult, error)
}

// TokenRefreshWorker periodically rotates the OAuth tokens of every
// connected location.
//
// A single server instance is assumed; running several would refresh the
// same tokens concurrently.
type TokenRefreshWorker struct {
	refresher TokenRefresher
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewTokenRefreshWorker(refresher TokenRefresher, interval time.Duration) *TokenRefreshWorker {
	if interval <= 0 {
		interval = DefaultTokenRefreshInterval
	}
	return &TokenRefreshWorker{
		refresher: refresher,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the refresh loop in a goroutine. The first refresh runs
// immediately.
func (w *TokenRefreshWorker) Start(ctx context.Context) error {
	logging.Default().Info("token refresh worker starting", "interval", w.interval.String())
	go w.run(ctx)
	return nil
}

func (w *TokenRefreshWorker) Stop() {
	logging.Default().Info("token refresh worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("token refresh worker stopped")
}

func (w *TokenRefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refresh(ctx)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("token refresh worker context cancelled")
			return
		}
	}
}

func (w *TokenRefreshWorker) refresh(ctx context.Context) {
	start := time.Now()
	result, err := w.refresher.RefreshAll(ctx)
	if err != nil {
		logging.Default().Error("token refresh failed (will retry next interval)", "error", err.Error())
		return
	}
	logging.Default().Info("token refresh cycle completed",
		"refreshed", result.Refreshed,
		"failed", result.Failed,
		"duration", time.Since(start).String())
}
