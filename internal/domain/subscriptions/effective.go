package subscriptions

import (
	"time"

	"consent-app/internal/domain/plans"
	"consent-app/internal/infra/stripe"
)

// EffectiveTier is the tier whose limits apply right now.
// No subscription, or one Stripe no longer considers paid, means free.
func EffectiveTier(now time.Time, sub *Subscription) plans.Tier {
	if sub == nil {
		return plans.TierFree
	}

	tier := plans.ParseTier(string(sub.Plan))

	switch stripe.NormalizeStatus(sub.Status) {
	case "active", "trialing", "none":
		return tier
	case "past_due", "canceled":
		// keep limits until the paid-through date
		if sub.CurrentPeriodEnd != nil && now.Before(*sub.CurrentPeriodEnd) {
			return tier
		}
		return plans.TierFree
	default:
		return plans.TierFree
	}
}
