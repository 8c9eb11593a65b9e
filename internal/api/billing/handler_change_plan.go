package billing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/websites"
)

// ChangePlan handles POST /change-plan. Moving to free cancels the Stripe
// subscription; moving between paid tiers swaps the price with proration.
// The subscription row is upserted either way.
func (h *Handler) ChangePlan(c *gin.Context) {
	tier, ok := bindTier(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	current, err := subscriptions.Find(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription", "details": err.Error()})
		return
	}
	if subscriptions.EffectiveTier(time.Now(), current) == tier && (current == nil || current.Plan == tier) {
		c.JSON(http.StatusOK, gin.H{"message": "Already on this plan", "plan": tier})
		return
	}

	next := subscriptions.Subscription{UserID: userID, Plan: tier, Status: "active"}
	hasStripeSub := current != nil && current.StripeSubscriptionID != nil && *current.StripeSubscriptionID != ""

	switch {
	case tier == plans.TierFree:
		if hasStripeSub {
			if !h.requireStripe(c) {
				return
			}
			if err := h.Stripe.CancelSubscription(*current.StripeSubscriptionID); err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to cancel Stripe subscription", "details": err.Error()})
				return
			}
		}

	case !hasStripeSub:
		c.JSON(http.StatusConflict, gin.H{"error": "No active subscription to change. Use checkout first."})
		return

	default:
		if !h.requireStripe(c) {
			return
		}
		plan, err := h.pricedPlan(tier)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Plan has no Stripe price (run /admin/sync-plans)"})
			return
		}
		remote, err := h.Stripe.GetSubscription(*current.StripeSubscriptionID)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch Stripe subscription", "details": err.Error()})
			return
		}
		updated, err := h.Stripe.ChangeSubscriptionPrice(remote.ID, remote.ItemID, *plan.StripePriceID)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to update subscription", "details": err.Error()})
			return
		}
		periodEnd := updated.CurrentPeriodEnd
		next.Status = updated.Status
		next.StripeSubscriptionID = &updated.ID
		next.CurrentPeriodEnd = &periodEnd
	}

	if err := subscriptions.Upsert(ctx, h.DB, &next); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription in DB", "details": err.Error()})
		return
	}

	limits := h.Limits.Limits(ctx, tier)
	count, err := websites.CountByUser(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count websites", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Plan changed",
		"plan":    tier,
		"status":  next.Status,
		"limits":  limits,
		// existing websites stay; only new ones are refused
		"over_website_limit": count > limits.WebsiteLimit,
	})
}
