package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/consent"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/settings"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/users"
	"consent-app/internal/domain/webhooks"
	"consent-app/internal/domain/websites"
)

var settingKey = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,63}$`)

type Handler struct {
	DB     *gorm.DB
	Limits middleware.LimitsSource
	Logger *slog.Logger
}

type AdminUser struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	IsVerified   bool       `json:"is_verified"`
	AuthProvider string     `json:"auth_provider"`
	Plan         plans.Tier `json:"plan"`
	Status       string     `json:"subscription_status"`
	Websites     int        `json:"websites"`
	CreatedAt    time.Time  `json:"created_at"`
}

type AdminStats struct {
	TotalUsers    int                `json:"total_users"`
	TotalWebsites int64              `json:"total_websites"`
	TotalWebhooks int64              `json:"total_webhooks"`
	TotalEvents   int64              `json:"total_consent_events"`
	UsersPerPlan  map[plans.Tier]int `json:"users_per_plan"`
}

// ListAllUsers handles GET /admin/users.
func (h *Handler) ListAllUsers(c *gin.Context) {
	ctx := c.Request.Context()

	var list []users.User
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users", "details": err.Error()})
		return
	}
	subs, err := h.subscriptionsByUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions", "details": err.Error()})
		return
	}

	type siteCount struct {
		UserID uint
		Count  int
	}
	var counts []siteCount
	err = h.DB.WithContext(ctx).Model(&websites.Website{}).
		Select("user_id, COUNT(*) AS count").
		Group("user_id").
		Scan(&counts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count websites", "details": err.Error()})
		return
	}
	sites := make(map[uint]int, len(counts))
	for _, sc := range counts {
		sites[sc.UserID] = sc.Count
	}

	now := time.Now()
	out := make([]AdminUser, 0, len(list))
	for _, u := range list {
		row := AdminUser{
			ID:           u.ID,
			Name:         u.Name,
			Email:        u.Email,
			Role:         u.Role,
			IsVerified:   u.IsVerified,
			AuthProvider: u.AuthProvider,
			Plan:         plans.TierFree,
			Status:       "none",
			Websites:     sites[u.ID],
			CreatedAt:    u.CreatedAt,
		}
		if sub, ok := subs[u.ID]; ok {
			row.Plan = subscriptions.EffectiveTier(now, sub)
			row.Status = sub.Status
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

// GetUserDetails handles GET /admin/user/:id.
func (h *Handler) GetUserDetails(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	sub, err := subscriptions.Find(ctx, h.DB, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription", "details": err.Error()})
		return
	}
	sites, err := websites.ListByUser(ctx, h.DB, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load websites", "details": err.Error()})
		return
	}
	hooks, err := webhooks.ListByUser(ctx, h.DB, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhooks", "details": err.Error()})
		return
	}

	tier := subscriptions.EffectiveTier(time.Now(), sub)
	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"plan":         tier,
		"limits":       h.Limits.Limits(ctx, tier),
		"subscription": sub,
		"websites":     sites,
		"webhooks":     len(hooks),
	})
}

// UpdateUserRole handles PUT /admin/users/:id/role.
func (h *Handler) UpdateUserRole(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role", "details": err.Error()})
		return
	}
	if !users.ValidRole(body.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be user or admin"})
		return
	}
	if user.ID == middleware.UserID(c) && body.Role != users.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot remove your own admin role"})
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(user).Update("role", body.Role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role", "details": err.Error()})
		return
	}
	h.Logger.Info("user role changed", "user_id", user.ID, "role", body.Role, "by", middleware.UserID(c))
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "user_id": user.ID, "role": body.Role})
}

// UpdateUserPlan handles PUT /admin/users/:id/plan. The subscription row
// is upserted; Stripe is left untouched.
func (h *Handler) UpdateUserPlan(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var body struct {
		Plan   string `json:"plan" binding:"required"`
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan", "details": err.Error()})
		return
	}
	tier := plans.Tier(body.Plan)
	if !tier.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
		return
	}

	sub, err := subscriptions.Find(ctx, h.DB, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription", "details": err.Error()})
		return
	}
	if sub == nil {
		sub = &subscriptions.Subscription{UserID: user.ID}
	}
	sub.Plan = tier
	sub.Status = body.Status
	if sub.Status == "" {
		sub.Status = "active"
	}
	if err := subscriptions.Upsert(ctx, h.DB, sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": err.Error()})
		return
	}

	count, err := websites.CountByUser(ctx, h.DB, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count websites", "details": err.Error()})
		return
	}
	limits := h.Limits.Limits(ctx, tier)
	c.JSON(http.StatusOK, gin.H{
		"message":            "Plan updated",
		"user_id":            user.ID,
		"plan":               tier,
		"status":             sub.Status,
		"over_website_limit": count > limits.WebsiteLimit,
	})
}

// GetSettings handles GET /admin/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	all, err := settings.All(c.Request.Context(), h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, all)
}

// UpdateSettings handles PUT /admin/settings with a flat key/value object.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Settings must be a flat object of strings", "details": err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	for k := range body {
		if !settingKey.MatchString(k) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid setting key", "key": k})
			return
		}
	}

	ctx := c.Request.Context()
	if err := settings.Put(ctx, h.DB, body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings", "details": err.Error()})
		return
	}
	all, err := settings.All(ctx, h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, all)
}

// GetAdminStats handles GET /admin/stats.
func (h *Handler) GetAdminStats(c *gin.Context) {
	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)

	var ids []uint
	if err := db.Model(&users.User{}).Pluck("id", &ids).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users", "details": err.Error()})
		return
	}
	subs, err := h.subscriptionsByUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions", "details": err.Error()})
		return
	}

	stats := AdminStats{TotalUsers: len(ids), UsersPerPlan: map[plans.Tier]int{}}
	for _, t := range plans.Tiers {
		stats.UsersPerPlan[t] = 0
	}
	now := time.Now()
	for _, id := range ids {
		stats.UsersPerPlan[subscriptions.EffectiveTier(now, subs[id])]++
	}

	if err := db.Model(&websites.Website{}).Count(&stats.TotalWebsites).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count websites", "details": err.Error()})
		return
	}
	if err := db.Model(&webhooks.Webhook{}).Count(&stats.TotalWebhooks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count webhooks", "details": err.Error()})
		return
	}
	if stats.TotalEvents, err = consent.TotalEvents(ctx, h.DB); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count consent events", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) subscriptionsByUser(c *gin.Context) (map[uint]*subscriptions.Subscription, error) {
	var rows []subscriptions.Subscription
	if err := h.DB.WithContext(c.Request.Context()).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]*subscriptions.Subscription, len(rows))
	for i := range rows {
		out[rows[i].UserID] = &rows[i]
	}
	return out, nil
}

func (h *Handler) loadUser(c *gin.Context) (*users.User, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return nil, false
	}
	var user users.User
	err = h.DB.WithContext(c.Request.Context()).First(&user, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user", "details": err.Error()})
		return nil, false
	}
	return &user, true
}
