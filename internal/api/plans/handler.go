package plans

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/database"
	"consent-app/internal/domain/plans"
	"consent-app/internal/infra/stripe"
)

// LimitsCache is dropped whenever plan rows change.
type LimitsCache interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	DB        *gorm.DB
	Stripe    stripe.Billing
	Cache     LimitsCache
	ProductID string
	Logger    *slog.Logger
}

type planDTO struct {
	Tier     plans.Tier   `json:"tier"`
	Name     string       `json:"name"`
	PriceEUR float64      `json:"price_eur"`
	Interval string       `json:"interval,omitempty"`
	Limits   plans.Limits `json:"limits"`
	// Purchasable is false until the plan has a Stripe price.
	Purchasable bool `json:"purchasable"`
}

// ListPlans handles GET /plans.
func (h *Handler) ListPlans(c *gin.Context) {
	rows, err := database.LoadPlans(c.Request.Context(), h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans", "details": err.Error()})
		return
	}

	out := make([]planDTO, 0, len(rows))
	for _, r := range rows {
		if !plans.Tier(r.PlanType).Valid() {
			continue
		}
		out = append(out, planDTO{
			Tier:        r.Tier(),
			Name:        r.Name,
			PriceEUR:    r.PriceEUR,
			Interval:    r.Interval,
			Limits:      r.Limits(),
			Purchasable: r.Tier() == plans.TierFree || r.StripePriceID != nil,
		})
	}
	c.JSON(http.StatusOK, out)
}

// SyncPlansFromStripe handles POST /admin/sync-plans. Prices carry their
// tier in metadata; prices without a known tier are skipped.
func (h *Handler) SyncPlansFromStripe(c *gin.Context) {
	if h.Stripe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe is not configured"})
		return
	}

	prices, err := h.Stripe.ListRecurringPrices(h.ProductID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch Stripe prices", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	updated, skipped := 0, 0
	for _, p := range prices {
		tier := plans.Tier(p.Tier)
		if !p.Visible || !tier.Valid() || tier == plans.TierFree {
			skipped++
			continue
		}

		priceID := p.ID
		res := h.DB.WithContext(ctx).Model(&plans.Plan{}).
			Where("plan_type = ?", string(tier)).
			Updates(map[string]interface{}{
				"name":            p.ProductName,
				"price_eur":       p.AmountEUR,
				"interval":        p.Interval,
				"stripe_price_id": &priceID,
			})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": res.Error.Error()})
			return
		}
		if res.RowsAffected == 0 {
			skipped++
			continue
		}
		updated++
	}

	h.invalidate(ctx)
	c.JSON(http.StatusOK, gin.H{
		"synced":  len(prices),
		"updated": updated,
		"skipped": skipped,
	})
}

// UpdatePlanLimits handles PUT /admin/plans/:tier.
func (h *Handler) UpdatePlanLimits(c *gin.Context) {
	tier := plans.Tier(c.Param("tier"))
	if !tier.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown plan"})
		return
	}

	var body plans.Limits
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limits", "details": err.Error()})
		return
	}
	if err := body.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row := plans.Row(tier, body)
	res := h.DB.WithContext(c.Request.Context()).Model(&plans.Plan{}).
		Where("plan_type = ?", string(tier)).
		Updates(map[string]interface{}{
			"website_limit":     row.WebsiteLimit,
			"analytics_history": row.AnalyticsHistory,
			"webhooks_enabled":  row.WebhooksEnabled,
			"white_label":       row.WhiteLabel,
			"customization":     row.Customization,
			"support_level":     row.SupportLevel,
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan row missing"})
		return
	}

	h.invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"tier": tier, "limits": body})
}

func (h *Handler) invalidate(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx); err != nil {
		h.Logger.Warn("plan limits cache invalidation failed", "error", err)
	}
}
