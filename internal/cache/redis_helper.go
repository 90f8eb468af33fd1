package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
)

const (
	defaultReportTTL    = 5 * time.Minute
	redisDialTimeout    = 5 * time.Second
	reportScanBatchSize = 100
)

// dialRedis connects and pings so a broken cache config fails at
// startup rather than on the first report read.
func dialRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// redisOptions prefers a full REDIS_URL; the host/port fields are the
// fallback for compose-style environments.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func reportTTL(cfg config.CacheConfig) time.Duration {
	if cfg.ReportTTLSeconds > 0 {
		return time.Duration(cfg.ReportTTLSeconds) * time.Second
	}
	return defaultReportTTL
}

// dropByPrefix deletes every key under prefix in SCAN batches and
// returns how many keys went away.
func dropByPrefix(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	var (
		cursor  uint64
		dropped int
	)
	pattern := prefix + "*"

	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, reportScanBatchSize).Result()
		if err != nil {
			return dropped, fmt.Errorf("redis scan failed: %w", err)
		}

		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return dropped, fmt.Errorf("redis delete failed: %w", err)
			}
			dropped += len(keys)
		}

		if next == 0 {
			return dropped, nil
		}
		cursor = next
	}
}
