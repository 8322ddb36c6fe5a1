package syncer

import (
	"context"
	"errors"
	"time"
)

// SetManual flags a user-driven sync as active. The auto-sync loop yields
// while the flag is up.
func (d *Driver) SetManual(active bool) {
	d.manual.Store(active)
}

// AutoSync ticks once a minute until ctx is cancelled, running a full sync
// whenever auto-sync is enabled, the configured interval has elapsed, and no
// manual sync holds the flag. Failures are logged and retried on the next
// due tick.
func (d *Driver) AutoSync(ctx context.Context) error {
	tick := d.tickEvery
	if tick == 0 {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastAttempt time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		enabled, err := d.store.AutoSyncEnabled()
		if err != nil {
			d.logger.Warn().Err(err).Msg("auto sync: read settings")
			continue
		}
		if !enabled {
			continue
		}
		interval, err := d.store.SyncIntervalMinutes()
		if err != nil {
			d.logger.Warn().Err(err).Msg("auto sync: read interval")
			continue
		}
		if time.Since(lastAttempt) < time.Duration(interval)*time.Minute {
			continue
		}
		if d.manual.Load() {
			d.logger.Debug().Msg("auto sync yielding to manual sync")
			continue
		}

		lastAttempt = time.Now()
		if _, err := d.Sync(ctx); err != nil {
			if errors.Is(err, ErrSyncInFlight) {
				continue
			}
			d.logger.Warn().Err(err).Msg("auto sync failed")
		}
	}
}
