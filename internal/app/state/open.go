package state

import (
	"context"
	"fmt"
	"time"

	"chatr/internal/app/db"
	"chatr/internal/pkg/logx"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open connects the configured backend. The returned close function releases its
// connections and is never nil.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Backend {
	case BackendMemory:
		logx.Warn("Using the in-memory state store; state is lost on restart and not shared between instances")
		return NewMemoryStore(), func() {}, nil

	case BackendPostgres:
		pool, err := db.NewPool(ctx, opts.DatabaseDSN)
		if err != nil {
			return nil, func() {}, err
		}
		logx.Info("PostgreSQL state store ready")
		return NewPostgresStore(pool), pool.Close, nil

	case BackendRedis:
		rdb := NewRedisClient(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, func() {}, fmt.Errorf("failed to ping redis at %s: %w", opts.RedisAddr, err)
		}
		logx.Info("Redis state store ready", "addr", opts.RedisAddr, "db", opts.RedisDB)
		return NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
	}

	return nil, func() {}, fmt.Errorf("unknown state backend %q", opts.Backend)
}
