package stripewebhooks

import (
	"context"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v75"

	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/infra/stripe"
)

// subscriptionChanged mirrors updates and deletions into the subscription
// row. Events for subscriptions we never stored are acknowledged and dropped.
func (h *Handler) subscriptionChanged(ctx context.Context, sub *stripeapi.Subscription, deleted bool) error {
	remote, err := stripe.FromStripe(sub)
	if err != nil {
		return err
	}

	userID, _ := userIDFromSubscriptionOrRef(remote.Metadata, "")
	if userID == 0 {
		existing, err := subscriptions.FindByStripeID(ctx, h.DB, remote.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			h.Logger.Info("stripe subscription not linked to a user", "subscription_id", remote.ID)
			return nil
		}
		userID = existing.UserID
	}

	if deleted {
		remote.Status = "canceled"
	}
	_, err = h.apply(ctx, userID, remote)
	return err
}

// apply upserts the user's subscription from a Stripe subscription and
// returns the tier it resolved. The tier comes from the plans row of the
// price, falling back to metadata.tier.
func (h *Handler) apply(ctx context.Context, userID uint, remote *stripe.Subscription) (plans.Tier, error) {
	tier, err := h.tierForPrice(ctx, remote.PriceID, remote.Metadata["tier"])
	if err != nil {
		return "", err
	}

	end := remote.CurrentPeriodEnd
	id := remote.ID
	return tier, subscriptions.Upsert(ctx, h.DB, &subscriptions.Subscription{
		UserID:               userID,
		Plan:                 tier,
		Status:               remote.Status,
		StripeSubscriptionID: &id,
		CurrentPeriodEnd:     &end,
	})
}

func (h *Handler) tierForPrice(ctx context.Context, priceID, fallback string) (plans.Tier, error) {
	var p plans.Plan
	err := h.DB.WithContext(ctx).Where("stripe_price_id = ?", priceID).Limit(1).Find(&p).Error
	if err != nil {
		return "", err
	}
	if p.ID != 0 {
		return p.Tier(), nil
	}
	if t := plans.Tier(fallback); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("no plan for stripe price %s", priceID)
}
