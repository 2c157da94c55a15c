package db

import (
	"context"
	"fmt"
	"time"
)

// PruneResult describes one retention pass.
type PruneResult struct {
	Deleted  int64
	Cutoff   time.Time
	Duration time.Duration
}

// Prune deletes history rows created before now minus retention, then
// vacuums. A non-positive retention keeps everything.
//
// Example:
//
//	res, err := database.Prune(ctx, 30*24*time.Hour)
func (d *Database) Prune(ctx context.Context, retention time.Duration) (PruneResult, error) {
	start := time.Now()
	result := PruneResult{Cutoff: start.Add(-retention)}
	if retention <= 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	conn, err := d.handle()
	if err != nil {
		return result, err
	}

	res, err := conn.ExecContext(ctx,
		"DELETE FROM generation_history WHERE created_at < ?",
		result.Cutoff.UnixMilli(),
	)
	if err != nil {
		return result, fmt.Errorf("prune generation_history: %w", err)
	}
	if result.Deleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("prune rows affected: %w", err)
	}

	if result.Deleted > 0 {
		if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("prune succeeded but VACUUM failed: %w", err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// PruneSchedule configures StartPruner.
type PruneSchedule struct {
	Retention time.Duration
	Interval  time.Duration
	// OnPrune, if set, sees every pass. Used for logging.
	OnPrune func(PruneResult, error)
}

// StartPruner runs Prune once immediately and then every Interval until ctx
// is cancelled. It returns a channel closed when the goroutine exits.
func (d *Database) StartPruner(ctx context.Context, schedule PruneSchedule) <-chan struct{} {
	done := make(chan struct{})
	if schedule.Retention <= 0 || schedule.Interval <= 0 {
		close(done)
		return done
	}

	report := func() {
		res, err := d.Prune(ctx, schedule.Retention)
		if schedule.OnPrune != nil && ctx.Err() == nil {
			schedule.OnPrune(res, err)
		}
	}

	go func() {
		defer close(done)
		report()

		ticker := time.NewTicker(schedule.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report()
			}
		}
	}()
	return done
}
