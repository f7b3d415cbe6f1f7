// Package factory builds a history.Store from environment configuration.
package factory

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/history/hybrid"
	redisstore "github.com/spectracehq/audit-sdk-go/history/redis"
	sqlitestore "github.com/spectracehq/audit-sdk-go/history/sqlite"
)

// FromEnv selects the history backend via AUDIT_HISTORY_BACKEND: sqlite
// (default), redis, or hybrid.
func FromEnv(ctx context.Context) (history.Store, error) {
	_ = ctx

	backend := strings.ToLower(strings.TrimSpace(getenv("AUDIT_HISTORY_BACKEND", "sqlite")))
	switch backend {
	case "sqlite":
		path := getenv("AUDIT_SQLITE_PATH", "./.audit/history.db")
		return sqlitestore.New(path)

	case "redis":
		return newRedisStoreFromEnv()

	case "hybrid":
		path := getenv("AUDIT_SQLITE_PATH", "./.audit/history.db")
		durable, err := sqlitestore.New(path)
		if err != nil {
			return nil, err
		}
		cache, err := newRedisStoreFromEnv()
		if err != nil {
			return hybrid.New(durable, nil)
		}
		return hybrid.New(durable, cache)

	default:
		return nil, fmt.Errorf("unsupported AUDIT_HISTORY_BACKEND %q (use sqlite, redis, or hybrid)", backend)
	}
}

func newRedisStoreFromEnv() (history.Store, error) {
	addr := getenv("AUDIT_REDIS_ADDR", "127.0.0.1:6379")
	password := strings.TrimSpace(os.Getenv("AUDIT_REDIS_PASSWORD"))
	db := getenvInt("AUDIT_REDIS_DB", 0)
	ttl := getenvDuration("AUDIT_REDIS_TTL", 72*time.Hour)

	opts := []redisstore.Option{
		redisstore.WithPassword(password),
		redisstore.WithDB(db),
		redisstore.WithTTL(ttl),
	}
	return redisstore.New(addr, opts...)
}

func getenv(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func getenvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
