package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/report"
)

const reportKeyPrefix = "apothecary:report"

// ReportCache fronts the report store for the read endpoints. A miss
// returns (nil, false, nil); the caller falls through to the store.
type ReportCache interface {
	Get(ctx context.Context, key string) (*report.Payload, bool, error)
	Set(ctx context.Context, key string, payload *report.Payload) error
	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error
}

// LatestReportKey addresses the most recent completed run.
func LatestReportKey() string {
	return reportKeyPrefix + ":latest"
}

// RunReportKey addresses one run's report.
func RunReportKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:run:%s", reportKeyPrefix, id)
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopReportCache struct{}

// NewReportCache returns a redis-backed cache when enabled, otherwise a
// no-op that always misses.
func NewReportCache(cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return &noopReportCache{}, nil
	}

	client, err := dialRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisReportCache{
		client: client,
		ttl:    reportTTL(cfg),
	}, nil
}

// NewNoopReportCache returns the always-miss cache.
func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

func (c *redisReportCache) Get(ctx context.Context, key string) (*report.Payload, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var payload report.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, fmt.Errorf("decode cached report: %w", err)
	}

	return &payload, true, nil
}

func (c *redisReportCache) Set(ctx context.Context, key string, payload *report.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode cached report: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisReportCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *redisReportCache) InvalidateAll(ctx context.Context) error {
	dropped, err := dropByPrefix(ctx, c.client, reportKeyPrefix)
	if err != nil {
		return err
	}
	if dropped > 0 {
		log.Debug().Int("keys", dropped).Msg("report cache invalidated")
	}
	return nil
}

func (n *noopReportCache) Get(ctx context.Context, key string) (*report.Payload, bool, error) {
	return nil, false, nil
}

func (n *noopReportCache) Set(ctx context.Context, key string, payload *report.Payload) error {
	return nil
}

func (n *noopReportCache) Invalidate(ctx context.Context, key string) error {
	return nil
}

func (n *noopReportCache) InvalidateAll(ctx context.Context) error {
	return nil
}
