package feed

import (
	"context"
	"log/slog"
	"time"
)

// StartRefreshJob polls live status on the given interval until ctx is
// cancelled. Runs in its own goroutine; the first refresh happens after one
// full interval since Load already enriched the roster.
func (f *Feed) StartRefreshJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		slog.Info("live refresh job started", slog.Duration("interval", interval), slog.String("component", "feed"))
		for {
			select {
			case <-ctx.Done():
				slog.Info("live refresh job stopped", slog.String("component", "feed"))
				return
			case <-ticker.C:
				f.RefreshLive(ctx)
			}
		}
	}()
}
