package stripewebhooks

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	stripeapi "github.com/stripe/stripe-go/v75"

	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/users"
)

func (h *Handler) checkoutCompleted(ctx context.Context, session *stripeapi.CheckoutSession) error {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return errors.New("checkout session missing subscription")
	}

	remote, err := h.Stripe.GetSubscription(session.Subscription.ID)
	if err != nil {
		return err
	}

	userID, err := userIDFromSubscriptionOrRef(remote.Metadata, session.ClientReferenceID)
	if err != nil {
		return err
	}

	var user users.User
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	previous, err := subscriptions.Find(ctx, h.DB, user.ID)
	if err != nil {
		return err
	}

	tier, err := h.apply(ctx, user.ID, remote)
	if err != nil {
		return err
	}

	payment := &subscriptions.Payment{
		UserID:               user.ID,
		Plan:                 tier,
		StripeSessionID:      session.ID,
		StripeSubscriptionID: remote.ID,
		AmountCents:          session.AmountTotal,
		Currency:             string(session.Currency),
	}
	if session.Invoice != nil && session.Invoice.ID != "" {
		payment.InvoiceID = &session.Invoice.ID
	}
	if err := subscriptions.RecordPayment(ctx, h.DB, payment); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	if session.Customer != nil && session.Customer.ID != "" {
		if err := h.DB.WithContext(ctx).Model(&users.User{}).Where("id = ?", user.ID).
			Update("stripe_customer_id", session.Customer.ID).Error; err != nil {
			return fmt.Errorf("store stripe customer: %w", err)
		}
	}

	// a second checkout replaces the old subscription
	if previous != nil && previous.StripeSubscriptionID != nil && *previous.StripeSubscriptionID != remote.ID {
		if err := h.Stripe.CancelSubscription(*previous.StripeSubscriptionID); err != nil {
			h.Logger.Warn("cancel replaced subscription", "user_id", user.ID, "error", err)
		}
	}
	return nil
}

func userIDFromSubscriptionOrRef(md map[string]string, clientRef string) (uint, error) {
	s := md["user_id"]
	if s == "" {
		s = clientRef
	}
	if s == "" {
		return 0, errors.New("missing user_id (metadata.user_id or client_reference_id)")
	}
	uid, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user_id %q: %w", s, err)
	}
	return uint(uid), nil
}
