package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clicker/internal/game"
	"clicker/internal/save"
)

var errSkip = errors.New("skip save")

// Worker applies offline progress to saves nobody has written recently.
type Worker struct {
	store  save.StaleLister
	engine *game.Engine
	log    *slog.Logger
	now    func() time.Time
}

func New(store save.StaleLister, engine *game.Engine, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, engine: engine, log: logger, now: time.Now}
}

type Report struct {
	Scanned  int
	Advanced int
	Skipped  int
}

// RunOnce ticks every save idle for at least idle by the time since its last
// write. Each save is read, ticked and written back atomically by the store.
func (w *Worker) RunOnce(ctx context.Context, idle time.Duration) (Report, error) {
	now := w.now()
	metas, err := w.store.ListStale(ctx, now.Add(-idle))
	if err != nil {
		return Report{}, fmt.Errorf("list stale saves: %w", err)
	}
	var rep Report
	var errs []error
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		var res game.TickResult
		err := w.store.Advance(ctx, meta.ID, func(d *game.GameData, cur save.Meta) error {
			if !d.Settings.OfflineProgress {
				return errSkip
			}
			// cur is re-read under the store's lock; a save written after
			// ListStale makes the game fresh again.
			elapsed := now.Sub(cur.UpdatedAt)
			if elapsed < idle {
				return errSkip
			}
			res = w.engine.Tick(d, elapsed)
			return nil
		})
		switch {
		case errors.Is(err, errSkip), errors.Is(err, save.ErrNotFound):
			rep.Skipped++
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("advance %s: %w", meta.ID, err))
			continue
		}
		rep.Advanced++
		w.log.Debug("offline progress applied",
			"save_id", meta.ID,
			"ticks", res.Ticks,
			"earned", res.Earned.String(),
		)
	}
	return rep, errors.Join(errs...)
}
