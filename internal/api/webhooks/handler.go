package webhooks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/consent"
	"consent-app/internal/domain/webhooks"
	"consent-app/internal/domain/websites"
	"consent-app/internal/infra/cache"
)

const listField = "list"

// Deliverer sends one event to one hook and records the attempt.
type Deliverer interface {
	Deliver(ctx context.Context, hook webhooks.Webhook, event string, data any) (*webhooks.Delivery, error)
}

// Handler serves the webhook routes. Every route sits behind
// RequireFeature so plans without webhooks never reach it.
type Handler struct {
	DB         *gorm.DB
	Dispatcher Deliverer
	Cache      *cache.Buckets
	Logger     *slog.Logger
}

type createRequest struct {
	URL       string   `json:"url" binding:"required"`
	Events    []string `json:"events"`
	WebsiteID *string  `json:"website_id"`
	Enabled   *bool    `json:"enabled"`
}

type updateRequest struct {
	URL     *string  `json:"url"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

func Bucket(userID uint) []string {
	return []string{"webhooks", strconv.FormatUint(uint64(userID), 10)}
}

// ListWebhooks handles GET /webhooks.
func (h *Handler) ListWebhooks(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var out []webhooks.Webhook
	if hit, err := h.Cache.Get(ctx, Bucket(userID), listField, &out); err != nil {
		h.Logger.Warn("webhook list cache read failed", "user_id", userID, "error", err)
	} else if hit {
		c.JSON(http.StatusOK, out)
		return
	}

	out, err := webhooks.ListByUser(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhooks", "details": err.Error()})
		return
	}
	if out == nil {
		out = []webhooks.Webhook{}
	}
	if err := h.Cache.Set(ctx, Bucket(userID), listField, out); err != nil {
		h.Logger.Warn("webhook list cache write failed", "user_id", userID, "error", err)
	}
	c.JSON(http.StatusOK, out)
}

// CreateWebhook handles POST /webhooks. The signing secret is only ever
// returned here.
func (h *Handler) CreateWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook", "details": err.Error()})
		return
	}
	if err := webhooks.ValidateURL(body.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body.Events) == 0 {
		body.Events = []string{consent.EventRecorded}
	}
	events, err := webhooks.EncodeEvents(body.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.WebsiteID != nil {
		if _, err := websites.Get(ctx, h.DB, userID, *body.WebsiteID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown website"})
			return
		}
	}

	hook := webhooks.Webhook{
		UserID:    userID,
		WebsiteID: body.WebsiteID,
		URL:       body.URL,
		Events:    events,
		Enabled:   true,
	}
	if err := webhooks.Create(ctx, h.DB, &hook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create webhook", "details": err.Error()})
		return
	}
	// enabled defaults to true in the schema, so a disabled hook needs a second write.
	if body.Enabled != nil && !*body.Enabled {
		if err := h.DB.WithContext(ctx).Model(&hook).Update("enabled", false).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create webhook", "details": err.Error()})
			return
		}
		hook.Enabled = false
	}

	h.Cache.InvalidateQuietly(ctx, Bucket(userID)...)
	c.JSON(http.StatusCreated, gin.H{"webhook": hook, "secret": hook.Secret})
}

// UpdateWebhook handles PATCH /webhooks/:id.
func (h *Handler) UpdateWebhook(c *gin.Context) {
	hook, ok := h.load(c)
	if !ok {
		return
	}

	var body updateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update", "details": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if body.URL != nil {
		if err := webhooks.ValidateURL(*body.URL); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updates["url"] = *body.URL
	}
	if body.Events != nil {
		events, err := webhooks.EncodeEvents(body.Events)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updates["events"] = events
	}
	if body.Enabled != nil {
		updates["enabled"] = *body.Enabled
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	ctx := c.Request.Context()
	if err := h.DB.WithContext(ctx).Model(hook).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update webhook", "details": err.Error()})
		return
	}

	h.Cache.InvalidateQuietly(ctx, Bucket(hook.UserID)...)
	c.JSON(http.StatusOK, hook)
}

// DeleteWebhook handles DELETE /webhooks/:id together with its delivery log.
func (h *Handler) DeleteWebhook(c *gin.Context) {
	hook, ok := h.load(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("webhook_id = ?", hook.ID).Delete(&webhooks.Delivery{}).Error; err != nil {
			return err
		}
		return tx.Delete(hook).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete webhook", "details": err.Error()})
		return
	}

	h.Cache.InvalidateQuietly(ctx, Bucket(hook.UserID)...)
	c.JSON(http.StatusOK, gin.H{"message": "Webhook deleted"})
}

// TestWebhook handles POST /webhooks/:id/test. A single signed POST is made
// and logged whatever the outcome; the receiver's status is reported back.
func (h *Handler) TestWebhook(c *gin.Context) {
	hook, ok := h.load(c)
	if !ok {
		return
	}

	delivery, err := h.Dispatcher.Deliver(c.Request.Context(), *hook, webhooks.EventTest, gin.H{
		"webhook_id": hook.ID,
		"message":    "This is a test delivery",
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send test delivery", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// ListDeliveries handles GET /webhooks/:id/deliveries?limit=N.
func (h *Handler) ListDeliveries(c *gin.Context) {
	hook, ok := h.load(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := webhooks.Deliveries(c.Request.Context(), h.DB, hook.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load deliveries", "details": err.Error()})
		return
	}
	if out == nil {
		out = []webhooks.Delivery{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) load(c *gin.Context) (*webhooks.Webhook, bool) {
	hook, err := webhooks.Get(c.Request.Context(), h.DB, middleware.UserID(c), c.Param("id"))
	if errors.Is(err, webhooks.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhook", "details": err.Error()})
		return nil, false
	}
	return hook, true
}
