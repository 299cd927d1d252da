package worker

import (
	"context"
	"errors"
	"time"

	"github.com/quizora/session-engine/internal/notify"
	"github.com/quizora/session-engine/internal/session"
	"github.com/rs/zerolog"
)

// TimekeeperWorker recomputes remaining time on every tick, emits warning
// events as thresholds are crossed, and forces submission at zero. Each
// tick derives purely from the session's start timestamp, so the loop can
// be stopped and restarted (suspend/resume) without drift: the first tick
// after an arbitrary pause is already correct.
type TimekeeperWorker struct {
	engine   *session.Engine
	notifier notify.Notifier
	tick     time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewTimekeeperWorker creates a new TimekeeperWorker.
func NewTimekeeperWorker(engine *session.Engine, notifier notify.Notifier, tick time.Duration, log zerolog.Logger) *TimekeeperWorker {
	return &TimekeeperWorker{
		engine:   engine,
		notifier: notifier,
		tick:     tick,
		now:      time.Now,
		log: log.With().
			Str("component", "timekeeper_worker").
			Str("session_id", engine.ID().String()).
			Logger(),
	}
}

// Start runs the tick loop until ctx is cancelled, the session leaves
// InProgress, or the deadline forces a submit. Call in a goroutine. The
// tick never blocks on I/O; a forced submit snapshots under the lock and
// persists outside it.
func (w *TimekeeperWorker) Start(ctx context.Context) {
	w.log.Info().Dur("tick", w.tick).Msg("Timekeeper started")

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Timekeeper stopped")
			return
		case <-ticker.C:
			if !w.engine.InProgress() {
				w.log.Info().Msg("Session no longer in progress, timekeeper exiting")
				return
			}
			if done := w.step(ctx); done {
				return
			}
		}
	}
}

// step processes one tick. Returns true when the session has expired and
// no further ticks should run.
func (w *TimekeeperWorker) step(ctx context.Context) bool {
	now := w.now()

	for _, threshold := range w.engine.DueWarnings(now) {
		w.notifier.Warn(w.engine.ID(), threshold, notify.WarningMessage(threshold))
	}

	if w.engine.Remaining(now) > 0 {
		return false
	}

	w.notifier.TimeUp(w.engine.ID())

	// Observing zero never submits by itself; the forced submit is an
	// explicit call, and losing the race to a manual submit is benign.
	if _, err := w.engine.Submit(ctx, true); err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadySubmitting), errors.Is(err, session.ErrInvalidTransition):
			w.log.Debug().Msg("Submission already handled elsewhere")
		default:
			w.log.Error().Err(err).Msg("Forced submission failed, backup should be in place")
		}
	} else {
		w.log.Info().Msg("Session auto-submitted at deadline")
	}
	return true
}
