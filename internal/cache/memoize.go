package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Memoize returns the cached value for key, or runs compute and caches its
// result. hit reports whether the value came from the store. Store failures
// are logged and fall through to compute; only compute errors are returned.
func Memoize[T any](ctx context.Context, s Store, key string, ttl time.Duration, compute func() (T, error)) (value T, hit bool, err error) {
	if s != nil {
		data, ok, getErr := s.Get(ctx, key)
		switch {
		case getErr != nil:
			zap.L().Warn("cache: get failed, recomputing", zap.String("key", key), zap.Error(getErr))
		case ok:
			if jsonErr := json.Unmarshal(data, &value); jsonErr == nil {
				return value, true, nil
			}
			zap.L().Warn("cache: corrupt entry, recomputing", zap.String("key", key))
		}
	}

	value, err = compute()
	if err != nil {
		return value, false, err
	}

	if s != nil {
		if setErr := store(ctx, s, key, value, ttl); setErr != nil {
			zap.L().Warn("cache: set failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return value, false, nil
}

func store(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	return s.Set(ctx, key, data, ttl)
}
