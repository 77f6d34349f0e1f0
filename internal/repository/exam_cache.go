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

// ErrCacheMiss is returned when an exam snapshot is not cached.
var ErrCacheMiss = errors.New("exam snapshot not cached")

// ExamCache keeps exam snapshots (exam metadata + question set) in Redis.
type ExamCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewExamCache creates a new ExamCache. A zero ttl keeps entries until invalidated.
func NewExamCache(rdb *redis.Client, ttl time.Duration) *ExamCache {
	return &ExamCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached snapshot or ErrCacheMiss.
func (c *ExamCache) Get(ctx context.Context, examID uuid.UUID) (*model.ExamSnapshot, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ExamSnapshotKey(examID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snap model.ExamSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores a snapshot.
func (c *ExamCache) Set(ctx context.Context, snap *model.ExamSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := config.CacheKey.ExamSnapshotKey(snap.Exam.ID.String())
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}

// Invalidate drops a snapshot so the next read reloads it from PostgreSQL.
func (c *ExamCache) Invalidate(ctx context.Context, examID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamSnapshotKey(examID.String())).Err()
}
