// Package sweeper removes registrations that never reached a paid state.
//
// Every registration carries a durable expiry deadline assigned at creation,
// so the sweep survives process restarts: a single periodic pass deletes
// pending registrations past their deadline and any registrations a manager
// marked cancelled, releasing the shirt units they held. A short poll interval
// keeps cleanup prompt without per-registration timers.
package sweeper

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/rotadovale/motofest/internal/store"
)

// Sweeper periodically deletes expired and cancelled registrations.
type Sweeper struct {
	DB       *sql.DB
	Interval time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New creates a sweeper polling at the given interval.
func New(db *sql.DB, interval time.Duration) *Sweeper {
	return &Sweeper{DB: db, Interval: interval, now: time.Now}
}

// Run sweeps on a fixed interval until the context is cancelled. Errors are
// logged and never stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				slog.Error("sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("swept registrations", "count", n)
			}
		}
	}
}

// Sweep runs one pass and returns how many registrations were removed.
// Deletions go through SweepRegistration, whose status guard leaves a row
// alone if it was confirmed or deleted between the scan and the delete;
// either counts as already handled, not as an error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := store.ListSweepable(ctx, s.DB, now)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		err := store.SweepRegistration(ctx, s.DB, id, now)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Error("failed to sweep registration", "id", id, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
