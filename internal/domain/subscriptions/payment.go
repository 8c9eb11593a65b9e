package subscriptions

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"consent-app/internal/domain/plans"
)

// Payment is one completed Stripe checkout.
type Payment struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"not null;index" json:"-"`
	Plan                 plans.Tier `gorm:"type:varchar(20);not null" json:"plan"`
	StripeSessionID      string     `gorm:"uniqueIndex;not null" json:"-"`
	StripeSubscriptionID string     `json:"-"`
	AmountCents          int64      `json:"amount_cents"`
	Currency             string     `gorm:"type:varchar(3)" json:"currency"`
	InvoiceID            *string    `json:"invoice_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// RecordPayment stores p once per checkout session. Stripe retries deliver
// the same session again and are ignored.
func RecordPayment(ctx context.Context, db *gorm.DB, p *Payment) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_session_id"}},
		DoNothing: true,
	}).Create(p).Error
}

func Payments(ctx context.Context, db *gorm.DB, userID uint) ([]Payment, error) {
	var out []Payment
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, err
}
