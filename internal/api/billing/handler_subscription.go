package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/websites"
)

// GetSubscription handles GET /subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	sub, err := subscriptions.Find(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription", "details": err.Error()})
		return
	}
	count, err := websites.CountByUser(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count websites", "details": err.Error()})
		return
	}

	tier := middleware.Tier(c)
	limits := middleware.Limits(c)

	resp := gin.H{
		"plan":   tier,
		"status": "none",
		"limits": limits,
		"usage": gin.H{
			"websites":        count,
			"website_limit":   limits.WebsiteLimit,
			"can_add_website": limits.AllowsAnotherWebsite(count),
		},
	}
	if sub != nil {
		resp["status"] = sub.Status
		resp["subscribed_plan"] = sub.Plan
		resp["current_period_end"] = sub.CurrentPeriodEnd
	}
	c.JSON(http.StatusOK, resp)
}

// ListPayments handles GET /subscription/payments.
func (h *Handler) ListPayments(c *gin.Context) {
	payments, err := subscriptions.Payments(c.Request.Context(), h.DB, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payments)
}
