package websites

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/consent"
	"consent-app/internal/domain/scripts"
	"consent-app/internal/domain/webhooks"
	"consent-app/internal/domain/websites"
	"consent-app/internal/infra/cache"
)

const (
	EventCreated = "website.created"
	EventDeleted = "website.deleted"

	listField = "list"
)

// EventPublisher fans account events out to webhooks.
type EventPublisher interface {
	Publish(userID uint, websiteID, event string, data any)
}

type Handler struct {
	DB     *gorm.DB
	Cache  *cache.Buckets
	Events EventPublisher
	Logger *slog.Logger
}

type createRequest struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}

type updateRequest struct {
	Name   *string `json:"name"`
	Domain *string `json:"domain"`
	Status *string `json:"status"`
}

// Bucket is the cache bucket holding a user's website views.
func Bucket(userID uint) []string {
	return []string{"websites", strconv.FormatUint(uint64(userID), 10)}
}

// ListWebsites handles GET /websites.
func (h *Handler) ListWebsites(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var out []websites.Website
	if hit, err := h.Cache.Get(ctx, Bucket(userID), listField, &out); err != nil {
		h.Logger.Warn("website list cache read failed", "user_id", userID, "error", err)
	} else if hit {
		c.JSON(http.StatusOK, out)
		return
	}

	out, err := websites.ListByUser(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load websites", "details": err.Error()})
		return
	}
	if out == nil {
		out = []websites.Website{}
	}
	if err := h.Cache.Set(ctx, Bucket(userID), listField, out); err != nil {
		h.Logger.Warn("website list cache write failed", "user_id", userID, "error", err)
	}
	c.JSON(http.StatusOK, out)
}

// CreateWebsite handles POST /websites. The plan's website limit is checked
// against the current count before inserting.
func (h *Handler) CreateWebsite(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid website", "details": err.Error()})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	domain, err := websites.NormalizeDomain(body.Domain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain", "details": err.Error()})
		return
	}

	count, err := websites.CountByUser(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count websites", "details": err.Error()})
		return
	}
	limits := middleware.Limits(c)
	if !limits.AllowsAnotherWebsite(count) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "Website limit reached for your plan",
			"upgrade_required": true,
			"plan":             middleware.Tier(c),
			"website_limit":    limits.WebsiteLimit,
		})
		return
	}

	site := websites.Website{UserID: userID, Name: name, Domain: domain}
	if err := websites.Create(ctx, h.DB, &site); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create website", "details": err.Error()})
		return
	}

	h.Cache.InvalidateQuietly(ctx, Bucket(userID)...)
	h.publish(userID, site.ID, EventCreated, gin.H{"website_id": site.ID, "name": site.Name, "domain": site.Domain})
	c.JSON(http.StatusCreated, site)
}

// GetWebsite handles GET /websites/:id.
func (h *Handler) GetWebsite(c *gin.Context) {
	site, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, site)
}

// UpdateWebsite handles PATCH /websites/:id.
func (h *Handler) UpdateWebsite(c *gin.Context) {
	site, ok := h.load(c)
	if !ok {
		return
	}

	var body updateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update", "details": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name must not be empty"})
			return
		}
		updates["name"] = name
	}
	if body.Domain != nil {
		domain, err := websites.NormalizeDomain(*body.Domain)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain", "details": err.Error()})
			return
		}
		updates["domain"] = domain
	}
	if body.Status != nil {
		if !websites.ValidStatus(*body.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be active or inactive"})
			return
		}
		updates["status"] = *body.Status
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	ctx := c.Request.Context()
	if err := h.DB.WithContext(ctx).Model(site).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update website", "details": err.Error()})
		return
	}

	h.Cache.InvalidateQuietly(ctx, Bucket(site.UserID)...)
	c.JSON(http.StatusOK, site)
}

// UpdateBanner handles PUT /websites/:id/banner.
func (h *Handler) UpdateBanner(c *gin.Context) {
	site, ok := h.load(c)
	if !ok {
		return
	}

	var banner websites.BannerConfig
	if err := c.ShouldBindJSON(&banner); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid banner", "details": err.Error()})
		return
	}
	banner = banner.Sanitize()
	if err := banner.Validate(middleware.Limits(c)); err != nil {
		switch {
		case errors.Is(err, websites.ErrCustomizationLevel), errors.Is(err, websites.ErrWhiteLabel):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "upgrade_required": true, "plan": middleware.Tier(c)})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	raw, err := banner.JSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode banner", "details": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := h.DB.WithContext(ctx).Model(site).Update("banner", raw).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save banner", "details": err.Error()})
		return
	}

	h.Cache.InvalidateQuietly(ctx, Bucket(site.UserID)...)
	c.JSON(http.StatusOK, gin.H{"website_id": site.ID, "banner": banner})
}

// DeleteWebsite handles DELETE /websites/:id, removing the website together
// with its scripts, analytics and website-scoped webhooks.
func (h *Handler) DeleteWebsite(c *gin.Context) {
	site, ok := h.load(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hookIDs := tx.Model(&webhooks.Webhook{}).Select("id").Where("website_id = ?", site.ID)
		if err := tx.Where("webhook_id IN (?)", hookIDs).Delete(&webhooks.Delivery{}).Error; err != nil {
			return err
		}
		if err := tx.Where("website_id = ?", site.ID).Delete(&webhooks.Webhook{}).Error; err != nil {
			return err
		}
		if err := tx.Where("website_id = ?", site.ID).Delete(&scripts.Script{}).Error; err != nil {
			return err
		}
		if err := tx.Where("website_id = ?", site.ID).Delete(&consent.CategoryDaily{}).Error; err != nil {
			return err
		}
		if err := tx.Where("website_id = ?", site.ID).Delete(&consent.AnalyticsDaily{}).Error; err != nil {
			return err
		}
		return tx.Delete(site).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete website", "details": err.Error()})
		return
	}

	h.Cache.InvalidateQuietly(ctx, Bucket(site.UserID)...)
	h.publish(site.UserID, site.ID, EventDeleted, gin.H{"website_id": site.ID, "domain": site.Domain})
	c.JSON(http.StatusOK, gin.H{"message": "Website deleted"})
}

func (h *Handler) load(c *gin.Context) (*websites.Website, bool) {
	site, err := websites.Get(c.Request.Context(), h.DB, middleware.UserID(c), c.Param("id"))
	if errors.Is(err, websites.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load website", "details": err.Error()})
		return nil, false
	}
	return site, true
}

func (h *Handler) publish(userID uint, websiteID, event string, data any) {
	if h.Events != nil {
		h.Events.Publish(userID, websiteID, event, data)
	}
}
