package repository

import (
	"context"
	"time"

	"github.com/bassista/docsweep/internal/logger"
)

// StartPersistence runs a goroutine that periodically flushes the tracked
// roster to disk when membership changed. On ctx.Done it performs a final
// flush before returning. The returned channel is closed once the loop has
// shut down.
func StartPersistence(
	ctx context.Context,
	store RosterStore,
	saver Saver,
	interval time.Duration,
) <-chan struct{} {
	done := make(chan struct{})
	logger.WithComponent("persist").Debugf("starting roster persistence with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Final flush on shutdown - use background context so it completes.
				flushRoster(context.Background(), store, saver)
				logger.WithComponent("persist").Info("roster persistence stopped after final flush")
				return
			case <-ticker.C:
				flushRoster(ctx, store, saver)
			}
		}
	}()
	return done
}

// flushRoster persists the roster if membership changed since the last flush.
func flushRoster(ctx context.Context, store RosterStore, saver Saver) {
	if !store.IsDirty() {
		logger.WithComponent("persist").Trace("roster unchanged, skipping flush")
		return
	}

	if err := ctx.Err(); err != nil {
		logger.WithComponent("persist").Debugf("flush cancelled: %v", err)
		return
	}

	roster, err := store.Roster()
	if err != nil {
		logger.WithComponent("persist").Errorf("persist error: failed to get roster: %v", err)
		return
	}

	roster.Metadata.LastUpdate = time.Now().UnixMilli()

	if err := saver.Save(ctx, &roster); err != nil {
		logger.WithComponent("persist").Errorf("persist error: failed to save: %v", err)
		return
	}

	store.ClearDirty()
	store.SetLastUpdate(roster.Metadata.LastUpdate)
	logger.WithComponent("persist").Info("roster persisted to disk")
}
