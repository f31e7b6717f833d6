package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_BasicGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100, time.Hour)

	_, ok, err := s.Get(ctx, "zones")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "zones", []byte("payload"), 0))
	got, ok, err := s.Get(ctx, "zones")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	require.NoError(t, s.Delete(ctx, "zones"))
	_, ok, _ = s.Get(ctx, "zones")
	assert.False(t, ok)
}

func TestMemoryStore_TTLExpiration(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(100, 5*time.Minute, WithClock(clock))

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Minute))

	clock.Advance(59 * time.Second)
	_, ok, _ := s.Get(ctx, "b")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok, _ = s.Get(ctx, "b")
	assert.False(t, ok, "entry expires exactly at its ttl")

	clock.Advance(4*time.Minute - time.Nanosecond)
	_, ok, _ = s.Get(ctx, "a")
	assert.True(t, ok)

	clock.Advance(time.Nanosecond)
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)

	st, _ := s.Stats(ctx)
	assert.Zero(t, st.Entries, "expired entries are removed on access")
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3, time.Hour)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, k, []byte(k), 0))
	}
	// touch a so b becomes the oldest
	_, _, _ = s.Get(ctx, "a")
	require.NoError(t, s.Set(ctx, "d", []byte("d"), 0))

	for k, want := range map[string]bool{"a": true, "b": false, "c": true, "d": true} {
		_, ok, _ := s.Get(ctx, k)
		assert.Equal(t, want, ok, k)
	}

	// overwrite refreshes in place
	require.NoError(t, s.Set(ctx, "c", []byte("c2"), 0))
	got, _, _ := s.Get(ctx, "c")
	assert.Equal(t, []byte("c2"), got)
	st, _ := s.Stats(ctx)
	assert.Equal(t, 3, st.Entries)
}

func TestMemoryStore_ClearByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100, time.Hour)
	for _, k := range []string{"heatmap:aqi", "heatmap:rainfall", "clusters:aqi", "zones"} {
		require.NoError(t, s.Set(ctx, k, []byte("x"), 0))
	}

	n, err := s.Clear(ctx, "heatmap:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Hour)
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	_, _, _ = s.Get(ctx, "k")
	_, _, _ = s.Get(ctx, "k")
	_, _, _ = s.Get(ctx, "missing")

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, 10, st.MaxEntries)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.InDelta(t, 2.0/3.0, st.HitRate, 1e-9)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(50, time.Hour)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("k%d", (g*200+i)%80)
				_ = s.Set(ctx, key, []byte(key), 0)
				_, _, _ = s.Get(ctx, key)
			}
		}()
	}
	wg.Wait()

	st, _ := s.Stats(ctx)
	assert.LessOrEqual(t, st.Entries, 50)
}

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoize(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(10, time.Minute, WithClock(clock))

	calls := 0
	compute := func() (payload, error) {
		calls++
		return payload{Name: "zone_1", Score: float64(calls)}, nil
	}

	v, hit, err := Memoize(ctx, s, "p", 0, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, payload{Name: "zone_1", Score: 1}, v)

	v, hit, err = Memoize(ctx, s, "p", 0, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1.0, v.Score)
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute)
	v, hit, _ = Memoize(ctx, s, "p", 0, compute)
	assert.False(t, hit)
	assert.Equal(t, 2.0, v.Score)
}

func TestMemoize_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)
	boom := errors.New("boom")

	_, _, err := Memoize(ctx, s, "k", 0, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	_, ok, _ := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoize_CorruptEntryAndNilStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)
	require.NoError(t, s.Set(ctx, "k", []byte("{not json"), 0))

	v, hit, err := Memoize(ctx, s, "k", 0, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)

	v, hit, err = Memoize[int](ctx, nil, "k", 0, func() (int, error) { return 9, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 9, v)
}

func TestRedisStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStore(RedisOptions{Addr: "127.0.0.1:1", KeyPrefix: "zr:", Timeout: 100 * time.Millisecond})
	defer func() { _ = s.Close() }()

	assert.Error(t, s.Ping(ctx))

	_, ok, err := s.Get(ctx, "zones")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "cache: redis get zones")

	// Memoize degrades to compute when the store is down
	v, hit, err := Memoize(ctx, Store(s), "zones", 0, func() (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", v)

	assert.Equal(t, "zr:zones", s.key("zones"))
}

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("ZONEROUTER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ZONEROUTER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s := NewRedisStore(RedisOptions{Addr: addr, KeyPrefix: fmt.Sprintf("zr-test-%d:", time.Now().UnixNano())})
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Set(ctx, "heatmap:aqi", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "zones", []byte("2"), time.Minute))

	got, ok, err := s.Get(ctx, "zones")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), got)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)

	n, err := s.Clear(ctx, "heatmap:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
