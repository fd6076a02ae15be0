package redis

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/networknext/portal/pkg/errors"
)

type testStruct struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type countingObserver struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
}

func (o *countingObserver) CacheHit(kind string) {
	o.mu.Lock()
	o.hits[kind]++
	o.mu.Unlock()
}

func (o *countingObserver) CacheMiss(kind string) {
	o.mu.Lock()
	o.misses[kind]++
	o.mu.Unlock()
}

// CacheMockSuite drives the cache against redismock for exact command checks.
type CacheMockSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheMockSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = NewRedisCache(NewClientFromUniversal(db, logging.NewNopLogger()), logging.NewNopLogger(),
		WithPrefix("test:"), WithoutJitter())
}

func (s *CacheMockSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *CacheMockSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:key1").RedisNil()

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.Equal(ErrCacheMiss, err)
}

func (s *CacheMockSuite) TestGet_NullMarkerIsMiss() {
	s.mock.ExpectGet("test:key1").SetVal(nullMarker)

	var dest testStruct
	s.Equal(ErrCacheMiss, s.cache.Get(context.Background(), "key1", &dest))
}

func (s *CacheMockSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:key1").SetErr(stderrors.New("READONLY"))

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheMockSuite) TestSet_ExactTTL() {
	s.mock.ExpectSet("test:key1", []byte(`{"name":"John","age":30}`), time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "key1", testStruct{Name: "John", Age: 30}, time.Minute))
}

func (s *CacheMockSuite) TestDelete() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)

	s.NoError(s.cache.Delete(context.Background(), "k1", "k2"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheMockSuite) TestDeleteByPrefix() {
	s.mock.ExpectScan(0, "test:lookup:*", 100).SetVal([]string{"test:lookup:a"}, 7)
	s.mock.ExpectDel("test:lookup:a").SetVal(1)
	s.mock.ExpectScan(7, "test:lookup:*", 100).SetVal([]string{"test:lookup:b"}, 0)
	s.mock.ExpectDel("test:lookup:b").SetVal(1)

	n, err := s.cache.DeleteByPrefix(context.Background(), "lookup:")
	s.NoError(err)
	s.Equal(int64(2), n)
}

func TestCacheMockSuite(t *testing.T) {
	suite.Run(t, new(CacheMockSuite))
}

func newMiniCache(t *testing.T, opts ...CacheOption) (Cache, *Client) {
	t.Helper()
	client, _ := newTestClient(t)
	opts = append([]CacheOption{WithPrefix("t:")}, opts...)
	return NewRedisCache(client, logging.NewNopLogger(), opts...), client
}

func TestGetOrSet_LoadsOnceThenHits(t *testing.T) {
	obs := newCountingObserver()
	cache, _ := newMiniCache(t, WithObserver(obs))
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return testStruct{Name: "Ada", Age: 36}, nil
	}

	var first, second testStruct
	require.NoError(t, cache.GetOrSet(ctx, "profile:ada", &first, time.Minute, loader))
	require.NoError(t, cache.GetOrSet(ctx, "profile:ada", &second, time.Minute, loader))

	assert.Equal(t, testStruct{Name: "Ada", Age: 36}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, obs.hits["profile"])
	assert.Equal(t, 1, obs.misses["profile"])
}

func TestGetOrSet_ConcurrentMissesShareLoader(t *testing.T) {
	cache, _ := newMiniCache(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return testStruct{Name: "x"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var dest testStruct
			assert.NoError(t, cache.GetOrSet(ctx, "k", &dest, time.Minute, loader))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestGetOrSet_NilValueCachedAsMiss(t *testing.T) {
	cache, _ := newMiniCache(t)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	var dest testStruct
	assert.Equal(t, ErrCacheMiss, cache.GetOrSet(ctx, "none", &dest, time.Minute, loader))
	assert.Equal(t, ErrCacheMiss, cache.GetOrSet(ctx, "none", &dest, time.Minute, loader))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrSet_LoaderError(t *testing.T) {
	cache, _ := newMiniCache(t)
	boom := pkgerrors.Internal("boom")

	var dest testStruct
	err := cache.GetOrSet(context.Background(), "err", &dest, time.Minute, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, ErrCacheMiss, cache.Get(context.Background(), "err", &dest))
}

func TestDeleteByPrefix(t *testing.T) {
	cache, _ := newMiniCache(t)
	ctx := context.Background()

	for _, k := range []string{"lookup:a", "lookup:b", "profile:a"} {
		require.NoError(t, cache.Set(ctx, k, 1, time.Minute))
	}
	n, err := cache.DeleteByPrefix(ctx, "lookup:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var v int
	require.NoError(t, cache.Get(ctx, "profile:a", &v))
	assert.Equal(t, 1, v)
	assert.Equal(t, ErrCacheMiss, cache.Get(ctx, "lookup:a", &v))
	assert.NoError(t, cache.Ping(ctx))
}

func TestSet_JitterStaysWithinTenPercent(t *testing.T) {
	cache, client := newMiniCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "j", "v", 100*time.Second))
	ttl, err := client.GetUnderlyingClient().TTL(ctx, "t:j").Result()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ttl, 89*time.Second)
	assert.LessOrEqual(t, ttl, 110*time.Second)
}
