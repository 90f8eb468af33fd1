package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/report"
)

func TestReportKeys(t *testing.T) {
	assert.Equal(t, "apothecary:report:latest", LatestReportKey())

	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, "apothecary:report:run:6ba7b810-9dad-11d1-80b4-00c04fd430c8", RunReportKey(id))
}

func TestNewReportCacheDisabled(t *testing.T) {
	c, err := NewReportCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Set(context.Background(), LatestReportKey(), &report.Payload{}))
	_, ok, err := c.Get(context.Background(), LatestReportKey())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Invalidate(context.Background(), LatestReportKey()))
	require.NoError(t, c.InvalidateAll(context.Background()))
}

func TestReportTTL(t *testing.T) {
	assert.Equal(t, 90*time.Second, reportTTL(config.CacheConfig{ReportTTLSeconds: 90}))
	assert.Equal(t, defaultReportTTL, reportTTL(config.CacheConfig{}))
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.CacheConfig{RedisURL: "redis://:secret@cache.internal:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = redisOptions(config.CacheConfig{RedisURL: "http://not-redis"})
	assert.Error(t, err)

	opts, err = redisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
}
