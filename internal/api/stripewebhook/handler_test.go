package stripewebhooks

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/users"
	"consent-app/internal/infra/logger"
	"consent-app/internal/infra/stripe"
	"consent-app/internal/infra/stripe/stripetest"
	"consent-app/internal/testutil"
)

func newHandler(t *testing.T) (*Handler, *stripetest.Fake) {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, db.Model(&plans.Plan{}).Where("plan_type = ?", "professional").Update("stripe_price_id", "price_pro").Error)
	fake := stripetest.New()
	return &Handler{DB: db, Stripe: fake, Logger: logger.Nop()}, fake
}

func post(h *Handler, payload, signature string) (int, string) {
	c, w := testutil.NewTestContext(http.MethodPost, "/webhook", payload)
	c.Request.Header.Set("Stripe-Signature", signature)
	h.StripeWebhook(c)
	return w.Code, w.Body.String()
}

func subscriptionJSON(id, status, price string, userID uint, end int64) string {
	return fmt.Sprintf(`{"id":%q,"status":%q,"current_period_end":%d,"metadata":{"user_id":"%d"},`+
		`"items":{"object":"list","data":[{"id":"si_1","price":{"id":%q}}]}}`, id, status, end, userID, price)
}

func TestStripeWebhook_Signature(t *testing.T) {
	h, _ := newHandler(t)
	code, _ := post(h, `{"type":"ping","data":{"object":{}}}`, "forged")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := post(h, `{"type":"invoice.paid","data":{"object":{}}}`, "valid")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ignored")

	h.Stripe = nil
	code, _ = post(h, `{}`, "valid")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStripeWebhook_CheckoutCompleted(t *testing.T) {
	h, fake := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierFree)
	end := time.Now().Add(720 * time.Hour).Truncate(time.Second)
	fake.Subscriptions["sub_1"] = &stripe.Subscription{
		ID: "sub_1", Status: "active", ItemID: "si_1", PriceID: "price_pro", CurrentPeriodEnd: end,
		Metadata: map[string]string{"user_id": fmt.Sprint(u.ID)},
	}

	payload := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","subscription":"sub_1",` +
		`"customer":"cus_42","amount_total":2900,"currency":"eur","invoice":"in_1"}}}`
	code, body := post(h, payload, "valid")
	require.Equal(t, http.StatusOK, code, body)

	// a retried event must not record the payment twice
	code, body = post(h, payload, "valid")
	require.Equal(t, http.StatusOK, code, body)

	payments, err := subscriptions.Payments(context.Background(), h.DB, u.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, plans.TierProfessional, payments[0].Plan)
	assert.Equal(t, int64(2900), payments[0].AmountCents)
	assert.Equal(t, "eur", payments[0].Currency)
	require.NotNil(t, payments[0].InvoiceID)
	assert.Equal(t, "in_1", *payments[0].InvoiceID)

	tier, err := subscriptions.TierFor(context.Background(), h.DB, u.ID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierProfessional, tier)

	var stored users.User
	require.NoError(t, h.DB.First(&stored, u.ID).Error)
	require.NotNil(t, stored.StripeCustomerID)
	assert.Equal(t, "cus_42", *stored.StripeCustomerID)
}

func TestStripeWebhook_CheckoutUnknownUser(t *testing.T) {
	h, fake := newHandler(t)
	fake.Subscriptions["sub_1"] = &stripe.Subscription{ID: "sub_1", Status: "active", PriceID: "price_pro"}

	payload := `{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","subscription":"sub_1"}}}`
	code, _ := post(h, payload, "valid")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestStripeWebhook_SubscriptionLifecycle(t *testing.T) {
	h, _ := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierFree)
	past := time.Now().Add(-time.Hour).Unix()

	payload := fmt.Sprintf(`{"type":"customer.subscription.updated","data":{"object":%s}}`,
		subscriptionJSON("sub_9", "active", "price_pro", u.ID, time.Now().Add(time.Hour).Unix()))
	code, body := post(h, payload, "valid")
	require.Equal(t, http.StatusOK, code, body)

	tier, err := subscriptions.TierFor(context.Background(), h.DB, u.ID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierProfessional, tier)

	payload = fmt.Sprintf(`{"type":"customer.subscription.deleted","data":{"object":%s}}`,
		subscriptionJSON("sub_9", "active", "price_pro", u.ID, past))
	code, body = post(h, payload, "valid")
	require.Equal(t, http.StatusOK, code, body)

	sub, err := subscriptions.Find(context.Background(), h.DB, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, plans.TierFree, subscriptions.EffectiveTier(time.Now(), sub))
}

func TestStripeWebhook_UnlinkedSubscriptionAcknowledged(t *testing.T) {
	h, _ := newHandler(t)
	payload := `{"type":"customer.subscription.updated","data":{"object":{"id":"sub_x","status":"active",` +
		`"items":{"object":"list","data":[{"id":"si","price":{"id":"price_pro"}}]}}}}`
	code, body := post(h, payload, "valid")
	assert.Equal(t, http.StatusOK, code, body)
}
