package scripts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/scripts"
	"consent-app/internal/domain/websites"
	"consent-app/internal/infra/storage"
)

const EventPublished = "script.published"

type EventPublisher interface {
	Publish(userID uint, websiteID, event string, data any)
}

type Handler struct {
	DB *gorm.DB
	// Storage is nil when no bucket is configured; scripts are then served
	// by ServeEmbed.
	Storage   storage.Publisher
	Events    EventPublisher
	PublicURL string
	Logger    *slog.Logger
}

type scriptDTO struct {
	scripts.Script
	Snippet string `json:"snippet"`
}

func toDTO(s scripts.Script) scriptDTO {
	return scriptDTO{Script: s, Snippet: scripts.Snippet(s.URL)}
}

// GenerateScript handles POST /websites/:id/scripts. It renders the current
// banner into a new script version and publishes it.
func (h *Handler) GenerateScript(c *gin.Context) {
	ctx := c.Request.Context()
	site, ok := h.loadWebsite(c)
	if !ok {
		return
	}

	banner, err := websites.ParseBanner(site.Banner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored banner is unreadable", "details": err.Error()})
		return
	}

	version, err := scripts.NextVersion(ctx, h.DB, site.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to determine script version", "details": err.Error()})
		return
	}

	content, err := scripts.Render(*site, banner, scripts.RenderOptions{
		Endpoint:   h.PublicURL,
		Version:    version,
		WhiteLabel: middleware.Limits(c).WhiteLabel,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render script", "details": err.Error()})
		return
	}

	script := scripts.Script{
		ID:        uuid.NewString(),
		WebsiteID: site.ID,
		UserID:    site.UserID,
		Version:   version,
		Content:   content,
		URL:       fmt.Sprintf("%s/v1/embed/%s?v=%d", h.PublicURL, site.ID, version),
	}
	if h.Storage != nil {
		url, err := h.Storage.PublishScript(ctx, script.ObjectKey(), []byte(content))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload script", "details": err.Error()})
			return
		}
		script.URL = url
	}

	if err := h.DB.WithContext(ctx).Create(&script).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save script", "details": err.Error()})
		return
	}

	if h.Events != nil {
		h.Events.Publish(site.UserID, site.ID, EventPublished, gin.H{
			"website_id": site.ID,
			"script_id":  script.ID,
			"version":    script.Version,
			"url":        script.URL,
		})
	}
	c.JSON(http.StatusCreated, toDTO(script))
}

// ListScripts handles GET /websites/:id/scripts, newest first.
func (h *Handler) ListScripts(c *gin.Context) {
	site, ok := h.loadWebsite(c)
	if !ok {
		return
	}
	list, err := scripts.ListByWebsite(c.Request.Context(), h.DB, site.UserID, site.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scripts", "details": err.Error()})
		return
	}
	out := make([]scriptDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toDTO(s))
	}
	c.JSON(http.StatusOK, out)
}

// GetSnippet handles GET /scripts/:id/snippet.
func (h *Handler) GetSnippet(c *gin.Context) {
	s, err := scripts.Get(c.Request.Context(), h.DB, middleware.UserID(c), c.Param("id"))
	if errors.Is(err, scripts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Script not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load script", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"script_id": s.ID, "version": s.Version, "url": s.URL, "snippet": scripts.Snippet(s.URL)})
}

// ServeEmbed handles the public GET /v1/embed/:websiteID and returns the
// newest script of an active website.
func (h *Handler) ServeEmbed(c *gin.Context) {
	ctx := c.Request.Context()
	site, err := websites.GetPublic(ctx, h.DB, c.Param("websiteID"))
	if errors.Is(err, websites.ErrNotFound) || (err == nil && !site.Active()) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	s, err := scripts.Latest(ctx, h.DB, site.ID)
	if errors.Is(err, scripts.ErrNotFound) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(s.Content))
}

func (h *Handler) loadWebsite(c *gin.Context) (*websites.Website, bool) {
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
