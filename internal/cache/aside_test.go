package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/railcore/railcore/internal/codes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyStore fails every operation
type faultyStore struct{}

var errDown = errors.New("connection refused")

func (faultyStore) Get(context.Context, string) ([]byte, error) { return nil, errDown }
func (faultyStore) Set(context.Context, string, []byte, time.Duration) error { return errDown }
func (faultyStore) Delete(context.Context, ...string) error { return errDown }
func (faultyStore) Ping(context.Context) error { return errDown }
func (faultyStore) Close() error { return nil }

type entry struct {
	Name string `json:"name"`
}

func newTestAside() (*Aside, *MemoryStore) {
	mem := NewMemoryStore(100, time.Minute)
	return NewAside(mem, time.Minute, zerolog.Nop()), mem
}

func TestReadThrough(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAside()

	calls := 0
	load := func(context.Context) (entry, error) {
		calls++
		return entry{Name: "Київ"}, nil
	}

	t.Run("Miss loads and populates", func(t *testing.T) {
		v, err := Read(ctx, a, "station:code:2200001", load)
		require.NoError(t, err)
		assert.Equal(t, "Київ", v.Name)
		assert.Equal(t, 1, calls)
	})

	t.Run("Hit skips the loader", func(t *testing.T) {
		v, err := Read(ctx, a, "station:code:2200001", load)
		require.NoError(t, err)
		assert.Equal(t, "Київ", v.Name)
		assert.Equal(t, 1, calls)
	})

	t.Run("Invalidate forces a reload", func(t *testing.T) {
		a.Invalidate(ctx, "station:code:2200001")
		_, err := Read(ctx, a, "station:code:2200001", load)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestReadLoaderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	a, mem := newTestAside()
	notFound := errors.New("not found")

	_, err := Read(ctx, a, "train:001Л", func(context.Context) (entry, error) {
		return entry{}, notFound
	})
	assert.ErrorIs(t, err, notFound)

	_, err = mem.Get(ctx, "train:001Л")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestReadUndecodableEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	a, mem := newTestAside()
	require.NoError(t, mem.Set(ctx, "train:001Л", []byte("{not json"), time.Minute))

	v, err := Read(ctx, a, "train:001Л", func(context.Context) (entry, error) {
		return entry{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v.Name)

	data, err := mem.Get(ctx, "train:001Л")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fresh"}`, string(data))
}

func TestCacheFailuresDegradeToStore(t *testing.T) {
	ctx := context.Background()
	a := NewAside(faultyStore{}, time.Minute, zerolog.Nop())

	v, err := Read(ctx, a, "stations:all", func(context.Context) ([]entry, error) {
		return []entry{{Name: "Київ"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, v, 1)

	assert.NotPanics(t, func() {
		a.Populate(ctx, "train:001Л", entry{})
		a.Invalidate(ctx, "stations:all")
	})
	assert.Error(t, a.Ping(ctx))
}

func TestReadCountsResults(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAside()
	load := func(context.Context) (entry, error) { return entry{}, nil }

	before := testutil.ToFloat64(requestsTotal.WithLabelValues("metrics-probe", resultMiss))
	_, err := Read(ctx, a, "metrics-probe:1", load)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(requestsTotal.WithLabelValues("metrics-probe", resultMiss)))

	hits := testutil.ToFloat64(requestsTotal.WithLabelValues("metrics-probe", resultHit))
	_, err = Read(ctx, a, "metrics-probe:1", load)
	require.NoError(t, err)
	assert.Equal(t, hits+1, testutil.ToFloat64(requestsTotal.WithLabelValues("metrics-probe", resultHit)))
}

// ttlStore records the expiry of every write
type ttlStore struct {
	*MemoryStore
	ttls []time.Duration
}

func (s *ttlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.ttls = append(s.ttls, ttl)
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func TestWriteExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("Coordinator passes its expiry", func(t *testing.T) {
		rec := &ttlStore{MemoryStore: NewMemoryStore(10, time.Minute)}
		NewAside(rec, time.Minute, zerolog.Nop()).Populate(ctx, "k", entry{Name: "a"})
		NewAside(rec, 0, zerolog.Nop()).Populate(ctx, "k", entry{Name: "b"})
		assert.Equal(t, []time.Duration{time.Minute, DefaultTTL}, rec.ttls)
	})

	t.Run("Memory store keeps its construction expiry", func(t *testing.T) {
		mem := NewMemoryStore(10, time.Minute)
		require.NoError(t, mem.Set(ctx, "k", []byte(`"v"`), time.Nanosecond))
		time.Sleep(5 * time.Millisecond)

		got, err := mem.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte(`"v"`), got)
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "stations:all", StationsAllKey())
	assert.Equal(t, "station:code:2200001", StationKey(2200001))
	assert.Equal(t, "train:001Л", TrainKey(codes.TrainNumber("001Л")))
	assert.Equal(t, "trips:search:2200001:2200120:2024-12-25", TripSearchKey(2200001, 2200120, "2024-12-25"))
	assert.Equal(t, "trips", resource(TripSearchKey(2200001, 2200120, "x")))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("Memory by default", func(t *testing.T) {
		t.Setenv("REDIS_URL", "")
		t.Setenv("REDIS_HOST", "")
		t.Setenv("CACHE_TTL", "")
		cfg := LoadConfigFromEnv()
		assert.False(t, cfg.UsesRedis())
		assert.Equal(t, 60*time.Second, cfg.TTL)
		assert.Equal(t, 1000, cfg.Capacity)

		s, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("Redis when host is set", func(t *testing.T) {
		t.Setenv("REDIS_HOST", "cache.internal")
		t.Setenv("REDIS_PORT", "6380")
		cfg := LoadConfigFromEnv()
		assert.True(t, cfg.UsesRedis())
		assert.Equal(t, "cache.internal:6380", cfg.Addr())
	})

	t.Run("URL overrides host", func(t *testing.T) {
		cfg := &Config{URL: "rediss://:secret@cache.example.com:6390/2", TTL: time.Minute}
		opts, err := redisOptions(cfg)
		require.NoError(t, err)
		assert.Equal(t, "cache.example.com:6390", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.NotNil(t, opts.TLSConfig)
		assert.Equal(t, 10, opts.PoolSize)
	})

	t.Run("Non-positive TTL is rejected", func(t *testing.T) {
		_, err := Open(context.Background(), &Config{TTL: 0, Capacity: 10})
		assert.Error(t, err)
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	s, err := OpenRedis(ctx, &Config{URL: "redis://" + addr + "/15", TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	key := "railcore-test:" + time.Now().Format(time.RFC3339Nano)
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, key, []byte("v"), time.Minute))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}
