package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/users"
	"consent-app/internal/domain/websites"
)

type Handler struct {
	DB *gorm.DB
}

type UsageDTO struct {
	Websites     int  `json:"websites"`
	WebsiteLimit int  `json:"website_limit"`
	CanAddSite   bool `json:"can_add_website"`
}

type MeResponse struct {
	User         users.User                  `json:"user"`
	Plan         plans.Tier                  `json:"plan"`
	Limits       plans.Limits                `json:"limits"`
	Usage        UsageDTO                    `json:"usage"`
	Subscription *subscriptions.Subscription `json:"subscription"`
}

// Me handles GET /me. Needs AuthMiddleware and LoadPlan.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var user users.User
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user", "details": err.Error()})
		return
	}

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

	limits := middleware.Limits(c)
	c.JSON(http.StatusOK, MeResponse{
		User:   user,
		Plan:   middleware.Tier(c),
		Limits: limits,
		Usage: UsageDTO{
			Websites:     count,
			WebsiteLimit: limits.WebsiteLimit,
			CanAddSite:   limits.AllowsAnotherWebsite(count),
		},
		Subscription: sub,
	})
}
