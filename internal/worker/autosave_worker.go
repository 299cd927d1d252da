// Package worker holds the two background coordinators that run against a
// live session: periodic autosave and the time warning/expiry loop. Both
// are restartable at any point — they carry no timing state of their own,
// everything derives from the session's start timestamp.
package worker

import (
	"context"
	"time"

	"github.com/quizora/session-engine/internal/session"
	"github.com/quizora/session-engine/internal/store"
	"github.com/rs/zerolog"
)

// AutosaveWorker periodically snapshots an in-progress session and persists
// it. It is best-effort: a failed save is logged and the next tick is the
// retry; foreground operations are never blocked — the snapshot is taken
// under the session lock, the store write happens outside it.
type AutosaveWorker struct {
	engine    *session.Engine
	snapshots store.SnapshotStore
	probe     store.ConnectivityProbe
	interval  time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(engine *session.Engine, snapshots store.SnapshotStore, probe store.ConnectivityProbe, interval time.Duration, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		engine:    engine,
		snapshots: snapshots,
		probe:     probe,
		interval:  interval,
		now:       time.Now,
		log: log.With().
			Str("component", "autosave_worker").
			Str("session_id", engine.ID().String()).
			Logger(),
	}
}

// Start runs the tick loop until ctx is cancelled or the session leaves
// InProgress. Call in a goroutine. Cancelling does not discard the session;
// a later restart resumes saving with no loss of correctness.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Autosave started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Autosave stopped")
			return
		case <-ticker.C:
			if !w.engine.InProgress() {
				w.log.Info().Msg("Session no longer in progress, autosave exiting")
				return
			}
			w.tick(ctx)
		}
	}
}

func (w *AutosaveWorker) tick(ctx context.Context) {
	if !w.probe.Online(ctx) {
		w.log.Debug().Msg("Offline, skipping autosave tick")
		return
	}

	now := w.now()
	snap := w.engine.Snapshot(now)

	if err := w.snapshots.SaveSnapshot(ctx, snap); err != nil {
		// Not retried out-of-band: the next scheduled tick is the retry.
		w.log.Warn().Err(err).Msg("Autosave failed, will retry next tick")
		return
	}

	w.engine.MarkAutosaved(now)
	w.log.Debug().
		Int("answers", len(snap.Answers)).
		Int("remaining_seconds", snap.RemainingSeconds).
		Msg("Snapshot persisted")
}
