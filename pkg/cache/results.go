package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazyhaar/climmo/pkg/metrics"
)

const resultPrefix = "climmo:result:"

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Results stores computed responses as JSON in Redis so several processes
// can share them. A Results without a client is disabled: Get always misses
// and Set does nothing.
type Results struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewResults wraps rc; a nil rc disables the cache. ttl <= 0 means one hour.
func NewResults(rc *redis.Client, ttl time.Duration) *Results {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Results{rc: rc, ttl: ttl}
}

// Enabled reports whether a Redis client is configured.
func (r *Results) Enabled() bool { return r != nil && r.rc != nil }

// Key builds a result key from its parts. Callers include the dataset
// Version so a changed file never serves a stale result.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return resultPrefix + hex.EncodeToString(sum[:16])
}

// Get decodes the value stored under key into v and reports whether it was
// found.
func (r *Results) Get(ctx context.Context, key string, v any) bool {
	if !r.Enabled() {
		return false
	}
	s, err := r.rc.Get(ctx, key).Result()
	if err != nil || s == "" {
		if err != nil && err != redis.Nil {
			slog.Warn("redis get failed", "error", err)
		}
		metrics.CacheMissesTotal.WithLabelValues("results").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		metrics.CacheMissesTotal.WithLabelValues("results").Inc()
		return false
	}
	metrics.CacheHitsTotal.WithLabelValues("results").Inc()
	return true
}

// Set stores v under key. Failures are logged and otherwise ignored.
func (r *Results) Set(ctx context.Context, key string, v any) {
	if !r.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.rc.Set(ctx, key, string(b), r.ttl).Err(); err != nil {
		slog.Warn("redis set failed", "error", err)
	}
}

// Purge deletes every stored result and returns how many keys were removed.
func (r *Results) Purge(ctx context.Context) (int, error) {
	if !r.Enabled() {
		return 0, nil
	}
	var n int
	iter := r.rc.Scan(ctx, 0, resultPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := r.rc.Del(ctx, iter.Val()).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}
