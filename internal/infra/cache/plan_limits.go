package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"consent-app/internal/domain/plans"
)

const (
	planLimitsKey = "plans:limits"
	planLimitsTTL = 10 * time.Minute
)

// PlanLoader reads plan rows from the database.
type PlanLoader func(ctx context.Context) ([]plans.Plan, error)

// PlanLimits serves the limits table from Redis, falling back to the loader
// on a miss. Concurrent misses share one load. The client may be nil, in
// which case every call goes to the loader.
type PlanLimits struct {
	client *redis.Client
	load   PlanLoader
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewPlanLimits(client *redis.Client, load PlanLoader, logger *slog.Logger) *PlanLimits {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanLimits{
		client: client,
		load:   load,
		ttl:    planLimitsTTL,
		logger: logger.With("component", "plan_limits"),
	}
}

// Table returns the current limits table.
func (p *PlanLimits) Table(ctx context.Context) (plans.Table, error) {
	if p.client != nil {
		raw, err := p.client.Get(ctx, planLimitsKey).Bytes()
		switch {
		case err == nil:
			var t plans.Table
			if err := json.Unmarshal(raw, &t); err == nil && len(t) > 0 {
				return t, nil
			}
			p.logger.Warn("discarding unreadable plan limits cache entry")
		case !errors.Is(err, redis.Nil):
			p.logger.Warn("plan limits cache read failed", "error", err)
		}
	}

	v, err, _ := p.group.Do(planLimitsKey, func() (interface{}, error) {
		rows, err := p.load(ctx)
		if err != nil {
			return nil, err
		}
		t := plans.NewTable(rows)
		p.store(ctx, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(plans.Table), nil
}

// Limits is a shortcut for Table(ctx).Limits(tier). A failed load falls back
// to the seeded defaults so gating keeps working while the DB is down.
func (p *PlanLimits) Limits(ctx context.Context, tier plans.Tier) plans.Limits {
	t, err := p.Table(ctx)
	if err != nil {
		p.logger.Error("plan limits load failed, using defaults", "error", err)
		return plans.GetLimits(tier)
	}
	return t.Limits(tier)
}

func (p *PlanLimits) Invalidate(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	return p.client.Del(ctx, planLimitsKey).Err()
}

func (p *PlanLimits) store(ctx context.Context, t plans.Table) {
	if p.client == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, planLimitsKey, raw, p.ttl).Err(); err != nil {
		p.logger.Warn("plan limits cache write failed", "error", err)
	}
}
