package subscriptions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"consent-app/internal/domain/plans"
)

// Find returns the user's subscription, or nil when there is none.
func Find(ctx context.Context, db *gorm.DB, userID uint) (*Subscription, error) {
	var sub Subscription
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// TierFor resolves the tier currently in force for a user.
func TierFor(ctx context.Context, db *gorm.DB, userID uint) (plans.Tier, error) {
	sub, err := Find(ctx, db, userID)
	if err != nil {
		return plans.TierFree, err
	}
	return EffectiveTier(time.Now(), sub), nil
}

// Upsert writes the user's subscription row, creating it on first plan change.
func Upsert(ctx context.Context, db *gorm.DB, sub *Subscription) error {
	if sub.Status == "" {
		sub.Status = "active"
	}
	sub.Plan = plans.ParseTier(string(sub.Plan))
	sub.UpdatedAt = time.Now()

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan", "status", "stripe_subscription_id", "current_period_end", "updated_at",
		}),
	}).Create(sub).Error
}

// FindByStripeID looks a subscription up by its Stripe id.
func FindByStripeID(ctx context.Context, db *gorm.DB, stripeID string) (*Subscription, error) {
	var sub Subscription
	err := db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
