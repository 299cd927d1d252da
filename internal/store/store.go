// Package store holds the persistence collaborators of the session engine:
// the snapshot store used by autosave, the submission store used by the
// pipeline, the connectivity probe, and the local durable backup.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/model"
)

// SnapshotStore persists in-progress session snapshots. Autosave treats it
// as at-least-once: duplicate writes are harmless, last write wins.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
}

// SnapshotLoader reads back the latest snapshot of a session. Recovery after
// a process restart goes through it.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, sessionID uuid.UUID) (*model.Snapshot, error)
}

// SnapshotBackend is a store that can both save and load snapshots.
type SnapshotBackend interface {
	SnapshotStore
	SnapshotLoader
}

// ConnectivityProbe reports whether the external store is reachable.
// Autosave skips its tick entirely while offline.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}

// AlwaysOnline is a ConnectivityProbe that never reports offline.
type AlwaysOnline struct{}

func (AlwaysOnline) Online(context.Context) bool { return true }
