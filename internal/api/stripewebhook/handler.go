package stripewebhooks

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	stripeapi "github.com/stripe/stripe-go/v75"
	"gorm.io/gorm"

	"consent-app/internal/infra/stripe"
)

const maxBodyBytes = 65536

type Handler struct {
	DB     *gorm.DB
	Stripe stripe.Billing
	Logger *slog.Logger
}

// StripeWebhook handles POST /webhook. Unknown events are acknowledged so
// Stripe stops retrying them; handler errors answer 500 so it retries.
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.Stripe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe is not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := h.Stripe.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.Logger.Warn("stripe signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}
	if event.Data == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event has no data"})
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case "checkout.session.completed":
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse session"})
			return
		}
		err = h.checkoutCompleted(ctx, &session)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeapi.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse subscription"})
			return
		}
		err = h.subscriptionChanged(ctx, &sub, event.Type == "customer.subscription.deleted")

	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err != nil {
		h.Logger.Error("stripe webhook", "event", event.Type, "event_id", event.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
