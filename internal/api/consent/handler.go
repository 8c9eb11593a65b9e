package consent

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/consent"
	"consent-app/internal/domain/websites"
)

const defaultDays = 30

type EventPublisher interface {
	Publish(userID uint, websiteID, event string, data any)
}

type Handler struct {
	DB     *gorm.DB
	Events EventPublisher
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// RecordConsent handles the public POST /v1/consent/:websiteID posted by
// the embed script.
func (h *Handler) RecordConsent(c *gin.Context) {
	var body consent.Event
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid consent event", "details": err.Error()})
		return
	}
	ev, err := body.Normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	site, err := websites.GetPublic(ctx, h.DB, c.Param("websiteID"))
	if errors.Is(err, websites.ErrNotFound) || (err == nil && !site.Active()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load website", "details": err.Error()})
		return
	}

	now := h.now()
	if err := consent.Record(ctx, h.DB, site.ID, ev, now); err != nil {
		h.Logger.Error("record consent", "website_id", site.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record consent"})
		return
	}

	if h.Events != nil {
		h.Events.Publish(site.UserID, site.ID, consent.EventRecorded, gin.H{
			"website_id": site.ID,
			"action":     ev.Action,
			"categories": ev.Categories,
			"visitor_id": ev.VisitorID,
			"day":        consent.Day(now),
		})
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// GetAnalytics handles GET /websites/:id/analytics?days=N. N defaults to 30
// and is clamped to the plan's analytics history.
func (h *Handler) GetAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	site, err := websites.Get(ctx, h.DB, middleware.UserID(c), c.Param("id"))
	if errors.Is(err, websites.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load website", "details": err.Error()})
		return
	}

	retention := middleware.Limits(c).AnalyticsHistoryDays
	days := min(defaultDays, retention)
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}
	clamped := days > retention
	if clamped {
		days = retention
	}

	summary, err := consent.Summarize(ctx, h.DB, site.ID, days, h.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"website_id":     site.ID,
		"retention_days": retention,
		"clamped":        clamped,
		"summary":        summary,
	})
}
