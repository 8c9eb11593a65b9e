package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	bucketPrefix = "cache:"
	bucketTTL    = 5 * time.Minute
)

// Buckets caches JSON responses grouped under composite keys such as
// ["websites", "42"]. Each bucket is one Redis hash, so dropping the bucket
// drops every cached view of it at once.
//
// A nil *Buckets is valid and caches nothing.
type Buckets struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewBuckets(client *redis.Client, logger *slog.Logger) *Buckets {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Buckets{client: client, ttl: bucketTTL, logger: logger.With("component", "cache")}
}

// BucketKey renders a composite key as a Redis key.
func BucketKey(parts ...string) string {
	return bucketPrefix + strings.Join(parts, ":")
}

// Get loads field from the bucket into dst. It reports false on a miss.
func (b *Buckets) Get(ctx context.Context, bucket []string, field string, dst any) (bool, error) {
	if b == nil {
		return false, nil
	}
	raw, err := b.client.HGet(ctx, BucketKey(bucket...), field).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

func (b *Buckets) Set(ctx context.Context, bucket []string, field string, v any) error {
	if b == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	key := BucketKey(bucket...)
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, key, field, raw)
	pipe.Expire(ctx, key, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the whole bucket.
func (b *Buckets) Invalidate(ctx context.Context, bucket []string) error {
	if b == nil {
		return nil
	}
	if err := b.client.Del(ctx, BucketKey(bucket...)).Err(); err != nil {
		return fmt.Errorf("cache invalidate %v: %w", bucket, err)
	}
	return nil
}

// InvalidateQuietly drops the bucket and only logs failures. Handlers use it
// after a committed write, where a stale cache must not fail the request.
func (b *Buckets) InvalidateQuietly(ctx context.Context, bucket ...string) {
	if b == nil {
		return
	}
	if err := b.Invalidate(ctx, bucket); err != nil {
		b.logger.Warn("cache invalidation failed", "bucket", bucket, "error", err)
	}
}
