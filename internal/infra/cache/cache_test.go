package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consent-app/config"
	"consent-app/internal/domain/plans"
	"consent-app/internal/infra/logger"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConnect(t *testing.T) {
	client, err := Connect(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()
}

func TestBuckets(t *testing.T) {
	mr, client := newRedis(t)
	b := NewBuckets(client, logger.Nop())
	ctx := context.Background()
	bucket := []string{"websites", "7"}

	var got []string
	hit, err := b.Get(ctx, bucket, "list", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, b.Set(ctx, bucket, "list", []string{"a", "b"}))
	require.NoError(t, b.Set(ctx, []string{"websites", "8"}, "list", []string{"z"}))
	assert.True(t, mr.Exists("cache:websites:7"))
	assert.Equal(t, bucketTTL, mr.TTL("cache:websites:7"))

	hit, err = b.Get(ctx, bucket, "list", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, got)

	require.NoError(t, b.Invalidate(ctx, bucket))
	assert.False(t, mr.Exists("cache:websites:7"))
	assert.True(t, mr.Exists("cache:websites:8"))
}

func TestBuckets_NilIsNoop(t *testing.T) {
	var b *Buckets
	assert.Nil(t, NewBuckets(nil, nil))

	var dst map[string]any
	hit, err := b.Get(context.Background(), []string{"x"}, "f", &dst)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, b.Set(context.Background(), []string{"x"}, "f", 1))
	assert.NoError(t, b.Invalidate(context.Background(), []string{"x"}))
	b.InvalidateQuietly(context.Background(), "x")
}

func TestBuckets_InvalidateError(t *testing.T) {
	mr, client := newRedis(t)
	b := NewBuckets(client, logger.Nop())
	mr.Close()

	assert.Error(t, b.Invalidate(context.Background(), []string{"websites", "1"}))
	b.InvalidateQuietly(context.Background(), "websites", "1")
}

func TestPlanLimits_CachesAndInvalidates(t *testing.T) {
	mr, client := newRedis(t)
	var loads atomic.Int32
	rows := []plans.Plan{plans.Row(plans.TierFree, plans.Limits{WebsiteLimit: 3, AnalyticsHistoryDays: 7})}
	src := NewPlanLimits(client, func(ctx context.Context) ([]plans.Plan, error) {
		loads.Add(1)
		return rows, nil
	}, logger.Nop())
	ctx := context.Background()

	table, err := src.Table(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Limits(plans.TierFree).WebsiteLimit)
	assert.Equal(t, 5, table.Limits(plans.TierBasic).WebsiteLimit)
	assert.True(t, mr.Exists(planLimitsKey))
	assert.Equal(t, planLimitsTTL, mr.TTL(planLimitsKey))

	_, err = src.Table(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())

	require.NoError(t, src.Invalidate(ctx))
	assert.Equal(t, 3, src.Limits(ctx, plans.TierFree).WebsiteLimit)
	assert.Equal(t, int32(2), loads.Load())
}

func TestPlanLimits_WithoutRedis(t *testing.T) {
	var loads atomic.Int32
	src := NewPlanLimits(nil, func(ctx context.Context) ([]plans.Plan, error) {
		loads.Add(1)
		return nil, nil
	}, logger.Nop())

	assert.Equal(t, plans.GetLimits(plans.TierProfessional), src.Limits(context.Background(), plans.TierProfessional))
	assert.NoError(t, src.Invalidate(context.Background()))
	assert.Equal(t, int32(1), loads.Load())
}

func TestPlanLimits_LoadErrorFallsBack(t *testing.T) {
	src := NewPlanLimits(nil, func(ctx context.Context) ([]plans.Plan, error) {
		return nil, errors.New("db down")
	}, logger.Nop())

	_, err := src.Table(context.Background())
	assert.Error(t, err)
	assert.Equal(t, plans.GetLimits(plans.TierBasic), src.Limits(context.Background(), plans.TierBasic))
}

func TestPlanLimits_BadCacheEntry(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set(planLimitsKey, "not json"))
	src := NewPlanLimits(client, func(ctx context.Context) ([]plans.Plan, error) {
		return nil, nil
	}, logger.Nop())

	table, err := src.Table(context.Background())
	require.NoError(t, err)
	assert.Equal(t, plans.Defaults(), table)
}
