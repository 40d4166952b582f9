package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "callboard:cache:"

// RedisStore shares cache entries between replicas through Redis
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore parses url (redis://...) and pings the server
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{redis: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

// Close releases the underlying connection pool
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := s.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}
	return s.redis.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, redisKeyPrefix+key).Err()
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.redis.Del(ctx, keys...).Result()
	return int(n), err
}

func (s *RedisStore) Entries(ctx context.Context) (map[string]Entry, error) {
	keys, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}

	out := make(map[string]Entry, len(keys))
	for _, full := range keys {
		key := strings.TrimPrefix(full, redisKeyPrefix)
		e, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = e
		}
	}
	return out, nil
}

// scan lists full redis keys under the cache namespace starting with prefix
func (s *RedisStore) scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, redisKeyPrefix+escapeGlob(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
