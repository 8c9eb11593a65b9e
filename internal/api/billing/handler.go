package billing

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/plans"
	"consent-app/internal/infra/stripe"
)

type Handler struct {
	DB *gorm.DB
	// Stripe is nil when billing is not configured.
	Stripe stripe.Billing
	Limits middleware.LimitsSource
	AppURL string
	Logger *slog.Logger
}

func (h *Handler) requireStripe(c *gin.Context) bool {
	if h.Stripe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe is not configured"})
		return false
	}
	return true
}

// pricedPlan loads the plans row of a paid tier that has a Stripe price.
func (h *Handler) pricedPlan(tier plans.Tier) (*plans.Plan, error) {
	var p plans.Plan
	err := h.DB.Where("plan_type = ? AND stripe_price_id IS NOT NULL", string(tier)).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func bindTier(c *gin.Context) (plans.Tier, bool) {
	var body struct {
		Plan string `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan"})
		return "", false
	}
	tier := plans.Tier(body.Plan)
	if !tier.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan", "plans": plans.Tiers})
		return "", false
	}
	return tier, true
}
