package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	HeartbeatBatchTimeout = 2 * time.Second
	PollTimeout           = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ActivityPersister writes heartbeats to the sessions table.
type ActivityPersister interface {
	BulkUpdateActivity(ctx context.Context, beats []model.Heartbeat) error
	UpdateActivity(ctx context.Context, beat model.Heartbeat) error
}

// HeartbeatWorker drains persist_heartbeats_queue and stores last_active /
// last_client_time in PostgreSQL in batches.
type HeartbeatWorker struct {
	store     ActivityPersister
	rdb       *redis.Client
	batchSize int
	backoff   time.Duration
	log       zerolog.Logger
}

// NewHeartbeatWorker creates a new HeartbeatWorker.
func NewHeartbeatWorker(store ActivityPersister, rdb *redis.Client, batchSize int, log zerolog.Logger) *HeartbeatWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &HeartbeatWorker{
		store:     store,
		rdb:       rdb,
		batchSize: batchSize,
		backoff:   2 * time.Second,
		log:       log.With().Str("component", "heartbeat_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *HeartbeatWorker) Start(ctx context.Context) {
	w.log.Info().Int("batch_size", w.batchSize).Msg("HeartbeatWorker started")

	buffer := make([]model.Heartbeat, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 &&
			(len(buffer) >= w.batchSize || time.Since(lastFlush) >= HeartbeatBatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistHeartbeatsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var beat model.Heartbeat
		if err := json.Unmarshal([]byte(result[1]), &beat); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed heartbeat")
			continue
		}

		buffer = append(buffer, beat)
	}
}

// flushSafe attempts the bulk update, then row-by-row, then requeue.
func (w *HeartbeatWorker) flushSafe(ctx context.Context, batch []model.Heartbeat) {
	if len(batch) == 0 {
		return
	}

	err := w.store.BulkUpdateActivity(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Heartbeats persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk heartbeat update failed, attempting row-by-row recovery")

	var requeue []model.Heartbeat
	for _, b := range batch {
		if err := w.store.UpdateActivity(ctx, b); err != nil {
			w.log.Error().Err(err).Str("session_id", b.SessionID.String()).Msg("Heartbeat update failed, requeueing")
			requeue = append(requeue, b)
		}
	}
	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *HeartbeatWorker) requeue(ctx context.Context, items []model.Heartbeat) {
	pipe := w.rdb.Pipeline()
	for _, b := range items {
		data, _ := json.Marshal(b)
		pipe.RPush(ctx, config.WorkerKey.PersistHeartbeatsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("Failed to requeue heartbeats, activity lost")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed heartbeats back to Redis")
	sleepCtx(ctx, w.backoff)
}

func (w *HeartbeatWorker) shutdown(buffer []model.Heartbeat) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.flushSafe(shutdownCtx, buffer)
	w.log.Info().Msg("Worker stopped")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
