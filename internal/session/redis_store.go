package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tckz/static-front/internal/logger"
)

// RedisStore persists session records as JSON blobs with a key TTL derived
// from the record's absolute expiry, so Redis itself retires stale sessions.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed session store. prefix namespaces the
// keys and may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get %s: %w", id, err)
	}

	var w wireRecord
	if err := json.Unmarshal([]byte(val), &w); err != nil {
		// A blob we cannot read is a session that does not exist.
		logger.Warn("discarding unreadable session record", "id", id, "error", err.Error())
		return nil, nil
	}
	return fromWire(w), nil
}

func (r *RedisStore) Put(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("session: missing id")
	}

	ttl := time.Until(time.Unix(rec.Expire, 0))
	if ttl <= 0 {
		return fmt.Errorf("session: expire must be in the future")
	}

	data, err := json.Marshal(toWire(rec))
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", rec.ID, err)
	}

	if err := r.client.Set(ctx, r.key(rec.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %s: %w", rec.ID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del %s: %w", id, err)
	}
	return nil
}
