package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// ActivityRepository buffers session heartbeats in Redis. The latest beat per
// session is kept in a hash for monitoring and every beat is queued for the
// heartbeat worker to persist in bulk.
type ActivityRepository struct {
	rdb *redis.Client
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(rdb *redis.Client) *ActivityRepository {
	return &ActivityRepository{rdb: rdb}
}

// RecordHeartbeat stores the beat and enqueues it for persistence.
func (r *ActivityRepository) RecordHeartbeat(ctx context.Context, beat model.Heartbeat) error {
	raw, err := json.Marshal(beat)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	fields := map[string]any{
		"last_active": beat.ServerTime.UTC().Format(time.RFC3339Nano),
	}
	if beat.ClientTime != nil {
		fields["last_client_time"] = beat.ClientTime.UTC().Format(time.RFC3339Nano)
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, config.CacheKey.SessionActivityKey(beat.SessionID.String()), fields)
	pipe.RPush(ctx, config.WorkerKey.PersistHeartbeatsQueue, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	return nil
}

// LastActive returns the most recent server time a heartbeat was seen for the
// session, or nil when none is buffered.
func (r *ActivityRepository) LastActive(ctx context.Context, sessionID uuid.UUID) (*time.Time, error) {
	v, err := r.rdb.HGet(ctx, config.CacheKey.SessionActivityKey(sessionID.String()), "last_active").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("parse last_active: %w", err)
	}
	return &t, nil
}

// Clear drops the buffered activity of a closed session.
func (r *ActivityRepository) Clear(ctx context.Context, sessionID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.SessionActivityKey(sessionID.String())).Err()
}
