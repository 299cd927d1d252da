package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTimeWarning Event = "time_warning"
	EventTimeUp      Event = "time_up"
)

// TimeWarningEvent is pushed when remaining time crosses a threshold.
type TimeWarningEvent struct {
	Event            Event  `json:"event"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Message          string `json:"message"`
}

// TimeUpEvent is pushed once when the deadline is reached.
type TimeUpEvent struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

const writeTimeout = 10 * time.Second

// Hub fans session events out to subscribed WebSocket connections. A slow
// or dead connection is dropped, never allowed to block a tick.
type Hub struct {
	mu    sync.Mutex
	conns map[uuid.UUID]map[*websocket.Conn]struct{}
	log   zerolog.Logger
}

// NewHub creates a Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[uuid.UUID]map[*websocket.Conn]struct{}),
		log:   log.With().Str("component", "notify_hub").Logger(),
	}
}

// Subscribe registers a connection for a session's events.
func (h *Hub) Subscribe(sessionID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[sessionID][conn] = struct{}{}
}

// Unsubscribe removes a connection.
func (h *Hub) Unsubscribe(sessionID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[sessionID], conn)
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}

func (h *Hub) Warn(sessionID uuid.UUID, remaining time.Duration, message string) {
	h.broadcast(sessionID, TimeWarningEvent{
		Event:            EventTimeWarning,
		RemainingSeconds: int(remaining / time.Second),
		Message:          message,
	})
}

func (h *Hub) TimeUp(sessionID uuid.UUID) {
	h.broadcast(sessionID, TimeUpEvent{
		Event:   EventTimeUp,
		Message: "Time is up. Your session is being submitted.",
	})
}

func (h *Hub) broadcast(sessionID uuid.UUID, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[sessionID] {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(payload); err != nil {
			h.log.Debug().Err(err).
				Str("session_id", sessionID.String()).
				Msg("Dropping dead WebSocket subscriber")
			conn.Close()
			delete(h.conns[sessionID], conn)
		}
	}
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}
