package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"consent-app/internal/domain/consent"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/webhooks"
	"consent-app/internal/domain/websites"
)

const (
	lockKey = "worker:retention:lock"

	// DeliveryRetention is how long webhook delivery logs are kept.
	DeliveryRetention = 30 * 24 * time.Hour
)

type LimitsSource interface {
	Limits(ctx context.Context, tier plans.Tier) plans.Limits
}

// Retention trims analytics older than each owner's plan history and old
// webhook delivery logs.
type Retention struct {
	DB       *gorm.DB
	Limits   LimitsSource
	Redis    *redis.Client // optional; guards against two instances running a cycle together
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

type Result struct {
	Websites   int
	Analytics  int64
	Deliveries int64
}

func NewRetention(db *gorm.DB, limits LimitsSource, rdb *redis.Client, interval time.Duration, logger *slog.Logger) *Retention {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		DB:       db,
		Limits:   limits,
		Redis:    rdb,
		Interval: interval,
		Logger:   logger.With("component", "retention"),
		Now:      time.Now,
	}
}

// Start runs a cycle immediately and then on every tick until ctx is done.
func (r *Retention) Start(ctx context.Context) {
	r.Logger.Info("retention worker started", "interval", r.Interval)
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		r.cycle(ctx)
		select {
		case <-ctx.Done():
			r.Logger.Info("retention worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Retention) cycle(ctx context.Context) {
	ok, err := r.lock(ctx)
	if err != nil {
		r.Logger.Warn("retention lock failed, running anyway", "error", err)
	} else if !ok {
		r.Logger.Debug("retention cycle held by another instance")
		return
	}

	res, err := r.RunOnce(ctx)
	if err != nil {
		r.Logger.Error("retention cycle failed", "error", err)
		return
	}
	r.Logger.Info("retention cycle done",
		"websites", res.Websites, "analytics_rows", res.Analytics, "delivery_rows", res.Deliveries)
}

func (r *Retention) lock(ctx context.Context) (bool, error) {
	if r.Redis == nil {
		return true, nil
	}
	return r.Redis.SetNX(ctx, lockKey, r.Now().UTC().Format(time.RFC3339), r.Interval/2).Result()
}

// RunOnce performs a single retention pass.
func (r *Retention) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	now := r.Now()

	var sites []websites.Website
	if err := r.DB.WithContext(ctx).Select("id", "user_id").Find(&sites).Error; err != nil {
		return res, fmt.Errorf("load websites: %w", err)
	}

	days := map[uint]int{}
	for _, s := range sites {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		keep, ok := days[s.UserID]
		if !ok {
			tier, err := subscriptions.TierFor(ctx, r.DB, s.UserID)
			if err != nil {
				return res, fmt.Errorf("resolve tier for user %d: %w", s.UserID, err)
			}
			keep = r.Limits.Limits(ctx, tier).AnalyticsHistoryDays
			days[s.UserID] = keep
		}

		n, err := consent.DeleteBefore(ctx, r.DB, s.ID, consent.Cutoff(now, keep))
		if err != nil {
			return res, fmt.Errorf("trim analytics of %s: %w", s.ID, err)
		}
		res.Websites++
		res.Analytics += n
	}

	del := r.DB.WithContext(ctx).Where("created_at < ?", now.Add(-DeliveryRetention)).Delete(&webhooks.Delivery{})
	if del.Error != nil {
		return res, fmt.Errorf("trim webhook deliveries: %w", del.Error)
	}
	res.Deliveries = del.RowsAffected
	return res, nil
}
