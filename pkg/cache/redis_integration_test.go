//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"courier/pkg/cache"
	"courier/pkg/testutil/containers"
)

type cachedOrg struct {
	Name         string            `json:"name"`
	Translations map[string]string `json:"translations"`
}

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Redis[cachedOrg]
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.NewRedis[cachedOrg](s.redis.Client, "test:")
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	org := cachedOrg{Name: "City of Bergen", Translations: map[string]string{"nb": "Bergen kommune"}}

	_, ok, err := s.cache.Get(ctx, "org-1")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, "org-1", org, time.Minute))

	got, ok, err := s.cache.Get(ctx, "org-1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("Bergen kommune", got.Translations["nb"])
}

func (s *RedisCacheSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "org-1", cachedOrg{Name: "x"}, 100*time.Millisecond))

	time.Sleep(200 * time.Millisecond)

	_, ok, err := s.cache.Get(ctx, "org-1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "org-1", cachedOrg{Name: "x"}, time.Minute))
	s.Require().NoError(s.cache.Delete(ctx, "org-1"))

	_, ok, err := s.cache.Get(ctx, "org-1")
	s.Require().NoError(err)
	s.False(ok)

	// Deleting an absent key is not an error.
	s.NoError(s.cache.Delete(ctx, "org-1"))
}

func (s *RedisCacheSuite) TestCorruptEntryBehavesLikeMiss() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "test:org-1", "not json", time.Minute).Err())

	_, ok, err := s.cache.Get(ctx, "org-1")
	s.Require().NoError(err)
	s.False(ok)

	// The corrupt entry was evicted.
	exists, err := s.redis.Client.Exists(ctx, "test:org-1").Result()
	s.Require().NoError(err)
	s.Zero(exists)
}
