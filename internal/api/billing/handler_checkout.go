package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/users"
	"consent-app/internal/infra/stripe"
)

// CreateCheckoutSession handles POST /create-checkout-session.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	if !h.requireStripe(c) {
		return
	}
	tier, ok := bindTier(c)
	if !ok {
		return
	}
	if tier == plans.TierFree {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The free plan needs no checkout"})
		return
	}

	plan, err := h.pricedPlan(tier)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan has no Stripe price (run /admin/sync-plans)"})
		return
	}

	var user users.User
	if err := h.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if !user.IsVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email first"})
		return
	}

	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		customerID, err := h.Stripe.CreateCustomer(user.Email, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Stripe customer", "details": err.Error()})
			return
		}
		if err := h.DB.Model(&users.User{}).Where("id = ?", user.ID).Update("stripe_customer_id", customerID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store Stripe customer", "details": err.Error()})
			return
		}
		user.StripeCustomerID = &customerID
	}

	url, err := h.Stripe.CreateCheckoutSession(stripe.CheckoutParams{
		CustomerID: *user.StripeCustomerID,
		PriceID:    *plan.StripePriceID,
		UserID:     user.ID,
		Tier:       string(tier),
		SuccessURL: h.AppURL + "/account?checkout=success",
		CancelURL:  h.AppURL + "/account?canceled=1",
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreateBillingPortal handles POST /billing-portal.
func (h *Handler) CreateBillingPortal(c *gin.Context) {
	if !h.requireStripe(c) {
		return
	}

	var user users.User
	if err := h.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "No Stripe customer yet (subscribe first)"})
		return
	}

	url, err := h.Stripe.CreateBillingPortal(*user.StripeCustomerID, h.AppURL+"/account")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create billing portal session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
