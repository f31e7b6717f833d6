package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// scanBatch is the SCAN page size used by Clear and Stats.
const scanBatch = 200

// RedisStore is a Store shared across replicas. Keys are namespaced with a
// prefix so several deployments can share one database.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// RedisOptions configure a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	Timeout   time.Duration
}

// NewRedisStore connects a RedisStore. The connection is established lazily
// by the client; use Ping to verify reachability.
func NewRedisStore(opts RedisOptions) *RedisStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})
	return &RedisStore{client: client, prefix: opts.KeyPrefix, ttl: opts.TTL}
}

// Ping verifies the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return eris.Wrap(err, "cache: redis ping")
	}
	return nil
}

// Close releases the client's connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	s.hits.Add(1)
	return val, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis delete %s", key)
	}
	return nil
}

// Clear implements Store using SCAN so large keyspaces are not blocked.
func (s *RedisStore) Clear(ctx context.Context, prefix string) (int, error) {
	n := 0
	err := s.scan(ctx, prefix, func(keys []string) error {
		deleted, err := s.client.Del(ctx, keys...).Result()
		n += int(deleted)
		return err
	})
	if err != nil {
		return n, eris.Wrap(err, "cache: redis clear")
	}
	return n, nil
}

// Stats implements Store. Entries counts keys under the store prefix.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	entries := 0
	err := s.scan(ctx, "", func(keys []string) error {
		entries += len(keys)
		return nil
	})
	hits, misses := s.hits.Load(), s.misses.Load()
	st := Stats{
		Backend: "redis",
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
	if err != nil {
		return st, eris.Wrap(err, "cache: redis stats")
	}
	return st, nil
}

func (s *RedisStore) scan(ctx context.Context, prefix string, fn func(keys []string) error) error {
	var cursor uint64
	match := s.key(prefix) + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
