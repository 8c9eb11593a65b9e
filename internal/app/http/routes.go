package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	adminapi "consent-app/internal/api/admin"
	authapi "consent-app/internal/api/auth"
	"consent-app/internal/api/billing"
	consentapi "consent-app/internal/api/consent"
	plansapi "consent-app/internal/api/plans"
	scriptsapi "consent-app/internal/api/scripts"
	stripewebhooks "consent-app/internal/api/stripewebhook"
	usersapi "consent-app/internal/api/users"
	webhooksapi "consent-app/internal/api/webhooks"
	websitesapi "consent-app/internal/api/websites"
	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/users"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	DB        *gorm.DB
	JWTSecret string
	Limits    middleware.LimitsSource

	Auth     *authapi.Handler
	Users    *usersapi.Handler
	Billing  *billing.Handler
	Stripe   *stripewebhooks.Handler
	Plans    *plansapi.Handler
	Websites *websitesapi.Handler
	Scripts  *scriptsapi.Handler
	Consent  *consentapi.Handler
	Webhooks *webhooksapi.Handler
	Admin    *adminapi.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.POST("/webhook", h.Stripe.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Called by the embed script on customer sites. Banner text must reach
	// these untouched, so they stay outside the sanitizer.
	embed := r.Group("/v1")
	embed.POST("/consent/:websiteID", h.Consent.RecordConsent)
	embed.GET("/embed/:websiteID", h.Scripts.ServeEmbed)

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", h.Auth.Register)
	public.POST("/login", h.Auth.Login)
	public.GET("/plans", h.Plans.ListPlans)
	public.GET("/verify", h.Auth.VerifyEmail)
	public.POST("/resend-verification", h.Auth.ResendVerification)
	public.POST("/request-password-reset", h.Auth.RequestPasswordReset)
	public.POST("/reset-password", h.Auth.ResetPassword)

	public.GET("/auth/google", h.Auth.GoogleStart)
	public.GET("/auth/google/callback", h.Auth.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(h.JWTSecret), middleware.LoadPlan(h.DB, h.Limits))
	auth.GET("/me", h.Users.Me)
	auth.POST("/change-password", h.Auth.ChangePassword)

	auth.GET("/subscription", h.Billing.GetSubscription)
	auth.GET("/subscription/payments", h.Billing.ListPayments)
	auth.POST("/create-checkout-session", h.Billing.CreateCheckoutSession)
	auth.POST("/billing-portal", h.Billing.CreateBillingPortal)
	auth.POST("/change-plan", h.Billing.ChangePlan)

	auth.GET("/websites", h.Websites.ListWebsites)
	auth.POST("/websites", h.Websites.CreateWebsite)
	auth.GET("/websites/:id", h.Websites.GetWebsite)
	auth.PATCH("/websites/:id", h.Websites.UpdateWebsite)
	auth.DELETE("/websites/:id", h.Websites.DeleteWebsite)
	auth.PUT("/websites/:id/banner", h.Websites.UpdateBanner)
	auth.GET("/websites/:id/analytics", h.Consent.GetAnalytics)

	auth.POST("/websites/:id/scripts", h.Scripts.GenerateScript)
	auth.GET("/websites/:id/scripts", h.Scripts.ListScripts)
	auth.GET("/scripts/:id/snippet", h.Scripts.GetSnippet)

	// Plans with webhooks
	hooks := auth.Group("/webhooks")
	hooks.Use(middleware.RequireFeature("Webhooks", func(l plans.Limits) bool { return l.WebhooksEnabled }))
	hooks.GET("", h.Webhooks.ListWebhooks)
	hooks.POST("", h.Webhooks.CreateWebhook)
	hooks.PATCH("/:id", h.Webhooks.UpdateWebhook)
	hooks.DELETE("/:id", h.Webhooks.DeleteWebhook)
	hooks.POST("/:id/test", h.Webhooks.TestWebhook)
	hooks.GET("/:id/deliveries", h.Webhooks.ListDeliveries)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.JWTSecret), middleware.RequireRole(users.RoleAdmin))
	admin.GET("/users", h.Admin.ListAllUsers)
	admin.GET("/user/:id", h.Admin.GetUserDetails)
	admin.PUT("/users/:id/role", h.Admin.UpdateUserRole)
	admin.PUT("/users/:id/plan", h.Admin.UpdateUserPlan)
	admin.GET("/settings", h.Admin.GetSettings)
	admin.PUT("/settings", h.Admin.UpdateSettings)
	admin.GET("/stats", h.Admin.GetAdminStats)
	admin.POST("/sync-plans", h.Plans.SyncPlansFromStripe)
	admin.PUT("/plans/:tier", h.Plans.UpdatePlanLimits)
}
