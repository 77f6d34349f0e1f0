package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthChecker reports whether the stores behind the engine are reachable.
type HealthChecker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(pool *pgxpool.Pool, rdb *redis.Client) *HealthChecker {
	return &HealthChecker{pool: pool, rdb: rdb}
}

// Check pings PostgreSQL and Redis and reports "ok" or "unavailable" per store.
// healthy is false when any store failed.
func (h *HealthChecker) Check(ctx context.Context) (status map[string]string, healthy bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status = map[string]string{"postgres": "ok", "redis": "ok"}
	healthy = true

	if err := h.pool.Ping(ctx); err != nil {
		status["postgres"] = "unavailable"
		healthy = false
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		status["redis"] = "unavailable"
		healthy = false
	}
	return status, healthy
}
