package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWarningMessage(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      string
	}{
		{10 * time.Minute, "10 minutes remaining"},
		{5 * time.Minute, "5 minutes remaining"},
		{time.Minute, "1 minute remaining"},
		{30 * time.Second, "30 seconds remaining"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WarningMessage(tt.remaining))
	}
}

type recordingNotifier struct {
	warns   int
	timeUps int
}

func (r *recordingNotifier) Warn(uuid.UUID, time.Duration, string) { r.warns++ }
func (r *recordingNotifier) TimeUp(uuid.UUID)                      { r.timeUps++ }

func TestFanoutDeliversToAll(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	fanout := Fanout{first, second}
	sessionID := uuid.New()

	fanout.Warn(sessionID, 5*time.Minute, WarningMessage(5*time.Minute))
	fanout.TimeUp(sessionID)

	assert.Equal(t, 1, first.warns)
	assert.Equal(t, 1, second.warns)
	assert.Equal(t, 1, first.timeUps)
	assert.Equal(t, 1, second.timeUps)
}
