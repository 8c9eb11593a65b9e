package billing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"consent-app/database"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/users"
	"consent-app/internal/infra/cache"
	"consent-app/internal/infra/logger"
	"consent-app/internal/infra/stripe"
	"consent-app/internal/infra/stripe/stripetest"
	"consent-app/internal/testutil"
)

func newHandler(t *testing.T) (*Handler, *stripetest.Fake) {
	t.Helper()
	db := testutil.NewDB(t)
	for tier, price := range map[plans.Tier]string{plans.TierBasic: "price_basic", plans.TierProfessional: "price_pro"} {
		require.NoError(t, db.Model(&plans.Plan{}).Where("plan_type = ?", string(tier)).Update("stripe_price_id", price).Error)
	}
	fake := stripetest.New()
	return &Handler{
		DB:     db,
		Stripe: fake,
		Limits: cache.NewPlanLimits(nil, func(ctx context.Context) ([]plans.Plan, error) { return database.LoadPlans(ctx, db) }, logger.Nop()),
		AppURL: "https://app.example.com",
		Logger: logger.Nop(),
	}, fake
}

func subscribe(t *testing.T, db *gorm.DB, fake *stripetest.Fake, u users.User, tier plans.Tier) {
	t.Helper()
	id := "sub_" + u.Email
	end := time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, subscriptions.Upsert(context.Background(), db, &subscriptions.Subscription{
		UserID: u.ID, Plan: tier, Status: "active", StripeSubscriptionID: &id, CurrentPeriodEnd: &end,
	}))
	fake.Subscriptions[id] = &stripe.Subscription{ID: id, Status: "active", ItemID: "si_1", PriceID: "price_basic", CurrentPeriodEnd: end}
}

func TestGetSubscription(t *testing.T) {
	h, _ := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierBasic)

	c, w := testutil.NewTestContext(http.MethodGet, "/subscription", nil)
	testutil.SetAuthContext(c, u, plans.TierBasic)
	h.GetSubscription(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Plan   string       `json:"plan"`
		Status string       `json:"status"`
		Limits plans.Limits `json:"limits"`
		Usage  struct {
			Websites      int  `json:"websites"`
			CanAddWebsite bool `json:"can_add_website"`
		} `json:"usage"`
	}
	testutil.ParseResponse(t, w, &resp)
	assert.Equal(t, "basic", resp.Plan)
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, 5, resp.Limits.WebsiteLimit)
	assert.True(t, resp.Usage.CanAddWebsite)
}

func TestCreateCheckoutSession(t *testing.T) {
	h, fake := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierFree)

	c, w := testutil.NewTestContext(http.MethodPost, "/create-checkout-session", map[string]string{"plan": "professional"})
	testutil.SetAuthContext(c, u, plans.TierFree)
	h.CreateCheckoutSession(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, fake.Checkouts, 1)
	assert.Equal(t, "price_pro", fake.Checkouts[0].PriceID)
	assert.Equal(t, "professional", fake.Checkouts[0].Tier)

	var stored users.User
	require.NoError(t, h.DB.First(&stored, u.ID).Error)
	require.NotNil(t, stored.StripeCustomerID)
	assert.Equal(t, fake.Customers[0], *stored.StripeCustomerID)
}

func TestCreateCheckoutSession_Rejects(t *testing.T) {
	h, _ := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierFree)

	for name, body := range map[string]interface{}{
		"free":    map[string]string{"plan": "free"},
		"unknown": map[string]string{"plan": "enterprise"},
		"missing": map[string]string{},
	} {
		t.Run(name, func(t *testing.T) {
			c, w := testutil.NewTestContext(http.MethodPost, "/create-checkout-session", body)
			testutil.SetAuthContext(c, u, plans.TierFree)
			h.CreateCheckoutSession(c)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	h.Stripe = nil
	c, w := testutil.NewTestContext(http.MethodPost, "/create-checkout-session", map[string]string{"plan": "basic"})
	testutil.SetAuthContext(c, u, plans.TierFree)
	h.CreateCheckoutSession(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChangePlan_Upgrade(t *testing.T) {
	h, fake := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierFree)
	subscribe(t, h.DB, fake, u, plans.TierBasic)

	c, w := testutil.NewTestContext(http.MethodPost, "/change-plan", map[string]string{"plan": "professional"})
	testutil.SetAuthContext(c, u, plans.TierBasic)
	h.ChangePlan(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"price_pro"}, fake.Changed)

	tier, err := subscriptions.TierFor(context.Background(), h.DB, u.ID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierProfessional, tier)

	var n int64
	require.NoError(t, h.DB.Model(&subscriptions.Subscription{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestChangePlan_DowngradeToFreeCancels(t *testing.T) {
	h, fake := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierFree)
	subscribe(t, h.DB, fake, u, plans.TierBasic)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.DB.Exec("INSERT INTO websites (id, user_id, name, domain, status) VALUES (?, ?, 'x', 'x.com', 'active')",
			"w-"+string(rune('a'+i)), u.ID).Error)
	}

	c, w := testutil.NewTestContext(http.MethodPost, "/change-plan", map[string]string{"plan": "free"})
	testutil.SetAuthContext(c, u, plans.TierBasic)
	h.ChangePlan(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"sub_a@example.com"}, fake.Canceled)

	var resp struct {
		OverWebsiteLimit bool `json:"over_website_limit"`
	}
	testutil.ParseResponse(t, w, &resp)
	assert.True(t, resp.OverWebsiteLimit)

	sub, err := subscriptions.Find(context.Background(), h.DB, u.ID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierFree, sub.Plan)
	assert.Nil(t, sub.StripeSubscriptionID)
}

func TestChangePlan_Errors(t *testing.T) {
	h, fake := newHandler(t)
	free := testutil.CreateUser(t, h.DB, "free@example.com", plans.TierFree)

	c, w := testutil.NewTestContext(http.MethodPost, "/change-plan", map[string]string{"plan": "basic"})
	testutil.SetAuthContext(c, free, plans.TierFree)
	h.ChangePlan(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = testutil.NewTestContext(http.MethodPost, "/change-plan", map[string]string{"plan": "free"})
	testutil.SetAuthContext(c, free, plans.TierFree)
	h.ChangePlan(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Already on this plan")

	paid := testutil.CreateUser(t, h.DB, "paid@example.com", plans.TierFree)
	subscribe(t, h.DB, fake, paid, plans.TierBasic)
	fake.Err = errors.New("stripe down")
	c, w = testutil.NewTestContext(http.MethodPost, "/change-plan", map[string]string{"plan": "professional"})
	testutil.SetAuthContext(c, paid, plans.TierBasic)
	h.ChangePlan(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	tier, err := subscriptions.TierFor(context.Background(), h.DB, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierBasic, tier)
}

func TestCreateBillingPortal(t *testing.T) {
	h, _ := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierFree)

	c, w := testutil.NewTestContext(http.MethodPost, "/billing-portal", nil)
	testutil.SetAuthContext(c, u, plans.TierFree)
	h.CreateBillingPortal(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, h.DB.Model(&users.User{}).Where("id = ?", u.ID).Update("stripe_customer_id", "cus_9").Error)
	c, w = testutil.NewTestContext(http.MethodPost, "/billing-portal", nil)
	testutil.SetAuthContext(c, u, plans.TierFree)
	h.CreateBillingPortal(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cus_9")
}

func TestListPayments(t *testing.T) {
	h, _ := newHandler(t)
	u := testutil.CreateUser(t, h.DB, "a@example.com", plans.TierBasic)
	other := testutil.CreateUser(t, h.DB, "b@example.com", plans.TierBasic)
	ctx := context.Background()
	require.NoError(t, subscriptions.RecordPayment(ctx, h.DB, &subscriptions.Payment{
		UserID: u.ID, Plan: plans.TierBasic, StripeSessionID: "cs_1", AmountCents: 900, Currency: "eur",
	}))
	require.NoError(t, subscriptions.RecordPayment(ctx, h.DB, &subscriptions.Payment{
		UserID: other.ID, Plan: plans.TierProfessional, StripeSessionID: "cs_2", AmountCents: 2900, Currency: "eur",
	}))

	c, w := testutil.NewTestContext(http.MethodGet, "/subscription/payments", nil)
	testutil.SetAuthContext(c, u, plans.TierBasic)
	h.ListPayments(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got []subscriptions.Payment
	testutil.ParseResponse(t, w, &got)
	require.Len(t, got, 1)
	assert.Equal(t, int64(900), got[0].AmountCents)
	assert.Equal(t, plans.TierBasic, got[0].Plan)
}
