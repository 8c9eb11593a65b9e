package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
)

const (
	CtxTier   = "tier"
	CtxLimits = "limits"
)

// LimitsSource resolves a tier to its limits.
type LimitsSource interface {
	Limits(ctx context.Context, tier plans.Tier) plans.Limits
}

// LoadPlan resolves the caller's effective tier and limits and stores them
// on the context. Must run after AuthMiddleware.
func LoadPlan(db *gorm.DB, source LimitsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier, err := subscriptions.TierFor(c.Request.Context(), db, UserID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription", "details": err.Error()})
			return
		}
		c.Set(CtxTier, tier)
		c.Set(CtxLimits, source.Limits(c.Request.Context(), tier))
		c.Next()
	}
}

// RequireFeature answers 403 with upgrade_required when the plan lacks a feature.
func RequireFeature(name string, allowed func(plans.Limits) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed(Limits(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":            name + " are not included in your plan",
				"upgrade_required": true,
				"plan":             Tier(c),
			})
			return
		}
		c.Next()
	}
}

// Tier returns the tier set by LoadPlan, free when absent.
func Tier(c *gin.Context) plans.Tier {
	if v, ok := c.Get(CtxTier); ok {
		if t, ok := v.(plans.Tier); ok {
			return t
		}
	}
	return plans.TierFree
}

// Limits returns the limits set by LoadPlan, the free limits when absent.
func Limits(c *gin.Context) plans.Limits {
	if v, ok := c.Get(CtxLimits); ok {
		if l, ok := v.(plans.Limits); ok {
			return l
		}
	}
	return plans.GetLimits(plans.TierFree)
}
