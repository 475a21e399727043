package workspace

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Evictor drops workspaces that have been idle since before cutoff.
type Evictor interface {
	EvictIdle(ctx context.Context, cutoff time.Time) (int, error)
}

// StartSweeper evicts idle workspaces every interval until ctx is done.
func StartSweeper(
	ctx context.Context,
	store Evictor,
	interval time.Duration,
	idle time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.EvictIdle(ctx, time.Now().Add(-idle))
				if err != nil {
					log.Error("failed to evict idle workspaces", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("evicted idle workspaces", zap.Int("removed", removed))
				}
			}
		}
	}()
}
