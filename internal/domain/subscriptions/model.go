package subscriptions

import (
	"time"

	"consent-app/internal/domain/plans"
)

// Subscription is the single plan record of a user. Plan changes upsert it.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"-"`
	UserID               uint       `gorm:"not null;uniqueIndex:idx_subscriptions_user_id" json:"user_id"`
	Plan                 plans.Tier `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`
	Status               string     `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	StripeSubscriptionID *string    `gorm:"column:stripe_subscription_id;uniqueIndex:idx_subscriptions_stripe_id" json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
