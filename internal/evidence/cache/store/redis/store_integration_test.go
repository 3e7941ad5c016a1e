//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"phoneintel/internal/evidence/cache"
	"phoneintel/internal/evidence/cache/cachetest"
	"phoneintel/internal/evidence/cache/store/redis"
	"phoneintel/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

const prefix = "phoneintel:"

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.Require().NoError(s.redis.Client.Health(context.Background()))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.Reset(context.Background(), prefix))
}

func (s *RedisStoreSuite) TestConformance() {
	cachetest.Run(s.T(), func(t *testing.T, _ *cachetest.Clock) cache.Store {
		s.Require().NoError(s.redis.Reset(context.Background(), prefix))
		return redis.New(s.redis.Client, prefix)
	}, cachetest.Options{NativeExpiry: true})
}

func (s *RedisStoreSuite) TestNativeExpiry() {
	ctx := context.Background()
	store := redis.New(s.redis.Client, prefix)
	key := cache.Key("unit", "ttl")

	s.Require().NoError(store.Set(ctx, key, []byte(`[]`), 200*time.Millisecond))
	_, ok, err := store.Get(ctx, key)
	s.Require().NoError(err)
	s.True(ok)

	s.Eventually(func() bool {
		_, ok, err := store.Get(ctx, key)
		return err == nil && !ok
	}, 2*time.Second, 50*time.Millisecond)

	n, err := store.DeleteExpired(ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisStoreSuite) TestKeysArePrefixed() {
	ctx := context.Background()
	store := redis.New(s.redis.Client, prefix)
	key := cache.Key("unit", "prefixed")
	s.Require().NoError(store.Set(ctx, key, []byte(`1`), time.Minute))

	exists, err := s.redis.Client.Exists(ctx, prefix+key).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
}
