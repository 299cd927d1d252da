package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/config"
	"github.com/quizora/session-engine/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps the latest snapshot of each session hot in
// Redis so a refreshed client can recover its state without touching
// PostgreSQL. It also mirrors the start timestamp, which is enough to
// recompute remaining time on its own.
type RedisSnapshotStore struct {
	rdb *redis.Client
}

// NewRedisSnapshotStore creates a RedisSnapshotStore.
func NewRedisSnapshotStore(rdb *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{rdb: rdb}
}

// SaveSnapshot writes the snapshot JSON and the session start timestamp.
func (s *RedisSnapshotStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.SessionSnapshotKey(snap.SessionID.String()), payload, 0)
	if snap.StartedAtEpoch > 0 {
		pipe.Set(ctx, config.CacheKey.SessionStartKey(snap.SessionID.String()), snap.StartedAtEpoch, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads back the cached snapshot.
func (s *RedisSnapshotStore) LoadSnapshot(ctx context.Context, sessionID uuid.UUID) (*model.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionSnapshotKey(sessionID.String())).Bytes()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// LayeredSnapshotStore writes snapshots to the durable store and mirrors
// them into the cache best-effort. A cache failure never fails the save;
// a durable-store failure does. Loads try the cache first.
type LayeredSnapshotStore struct {
	durable SnapshotBackend
	cache   SnapshotBackend
}

// NewLayeredSnapshotStore composes a durable store with a cache layer.
func NewLayeredSnapshotStore(durable, cache SnapshotBackend) *LayeredSnapshotStore {
	return &LayeredSnapshotStore{durable: durable, cache: cache}
}

func (s *LayeredSnapshotStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := s.durable.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	_ = s.cache.SaveSnapshot(ctx, snap)
	return nil
}

func (s *LayeredSnapshotStore) LoadSnapshot(ctx context.Context, sessionID uuid.UUID) (*model.Snapshot, error) {
	if snap, err := s.cache.LoadSnapshot(ctx, sessionID); err == nil {
		return snap, nil
	}
	return s.durable.LoadSnapshot(ctx, sessionID)
}

// RedisProbe reports connectivity by pinging Redis. While the ping fails,
// autosave treats the session as offline and skips its tick.
type RedisProbe struct {
	rdb *redis.Client
}

// NewRedisProbe creates a RedisProbe.
func NewRedisProbe(rdb *redis.Client) *RedisProbe {
	return &RedisProbe{rdb: rdb}
}

func (p *RedisProbe) Online(ctx context.Context) bool {
	return p.rdb.Ping(ctx).Err() == nil
}
