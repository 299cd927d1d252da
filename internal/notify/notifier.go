// Package notify delivers time-warning and expiry events to external
// listeners. The engine's coordinators only see the Notifier interface.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier receives edge-triggered time warnings and the terminal
// "time's up" event for a session.
type Notifier interface {
	Warn(sessionID uuid.UUID, remaining time.Duration, message string)
	TimeUp(sessionID uuid.UUID)
}

// WarningMessage renders the human-readable text for a threshold.
func WarningMessage(remaining time.Duration) string {
	if remaining >= time.Minute {
		minutes := int(remaining / time.Minute)
		if minutes == 1 {
			return "1 minute remaining"
		}
		return fmt.Sprintf("%d minutes remaining", minutes)
	}
	seconds := int(remaining / time.Second)
	return fmt.Sprintf("%d seconds remaining", seconds)
}

// LogNotifier writes events to the structured log. It backs every
// deployment; the WebSocket hub is layered on top via Fanout.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Warn(sessionID uuid.UUID, remaining time.Duration, message string) {
	n.log.Info().
		Str("session_id", sessionID.String()).
		Int("remaining_seconds", int(remaining/time.Second)).
		Msg(message)
}

func (n *LogNotifier) TimeUp(sessionID uuid.UUID) {
	n.log.Info().
		Str("session_id", sessionID.String()).
		Msg("Time is up, forcing submission")
}

// Fanout delivers every event to all wrapped notifiers.
type Fanout []Notifier

func (f Fanout) Warn(sessionID uuid.UUID, remaining time.Duration, message string) {
	for _, n := range f {
		n.Warn(sessionID, remaining, message)
	}
}

func (f Fanout) TimeUp(sessionID uuid.UUID) {
	for _, n := range f {
		n.TimeUp(sessionID)
	}
}
