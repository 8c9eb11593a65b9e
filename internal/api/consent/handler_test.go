package consent

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consent-app/internal/domain/consent"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/users"
	"consent-app/internal/domain/websites"
	"consent-app/internal/infra/logger"
	"consent-app/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recorded struct {
	userID uint
	event  string
}

type recorder []recorded

func (r *recorder) Publish(userID uint, _, event string, _ any) {
	*r = append(*r, recorded{userID, event})
}

func setup(t *testing.T) (*Handler, *recorder, users.User, websites.Website) {
	t.Helper()
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, "c@example.com", plans.TierFree)
	site := websites.Website{UserID: u.ID, Name: "Shop", Domain: "shop.example.com"}
	require.NoError(t, websites.Create(context.Background(), db, &site))
	events := &recorder{}
	h := &Handler{DB: db, Events: events, Logger: logger.Nop(), Now: func() time.Time { return fixedNow }}
	return h, events, u, site
}

func post(h *Handler, websiteID string, body any) int {
	c, w := testutil.NewTestContext(http.MethodPost, "/v1/consent/"+websiteID, body)
	testutil.SetURLParam(c, "websiteID", websiteID)
	h.RecordConsent(c)
	return w.Code
}

func TestRecordConsent(t *testing.T) {
	h, events, u, site := setup(t)

	assert.Equal(t, http.StatusAccepted, post(h, site.ID, consent.Event{Action: consent.ActionAcceptAll, Categories: []string{"Analytics", "marketing"}}))
	assert.Equal(t, http.StatusAccepted, post(h, site.ID, consent.Event{Action: consent.ActionRejectAll}))
	assert.Equal(t, http.StatusAccepted, post(h, site.ID, consent.Event{Action: consent.ActionCustom, Categories: []string{"analytics"}}))

	var row consent.AnalyticsDaily
	require.NoError(t, h.DB.Where("website_id = ? AND day = ?", site.ID, "2026-03-10").First(&row).Error)
	assert.Equal(t, int64(1), row.Accepted)
	assert.Equal(t, int64(1), row.Rejected)
	assert.Equal(t, int64(1), row.Custom)
	assert.Equal(t, int64(3), row.Total)

	var analytics consent.CategoryDaily
	require.NoError(t, h.DB.Where("website_id = ? AND category = ?", site.ID, "analytics").First(&analytics).Error)
	assert.Equal(t, int64(2), analytics.Granted)

	require.Len(t, *events, 3)
	assert.Equal(t, recorded{u.ID, consent.EventRecorded}, (*events)[0])
}

func TestRecordConsent_Rejects(t *testing.T) {
	h, events, _, site := setup(t)

	assert.Equal(t, http.StatusBadRequest, post(h, site.ID, `{"action":"maybe"}`))
	assert.Equal(t, http.StatusBadRequest, post(h, site.ID, `not json`))
	assert.Equal(t, http.StatusNotFound, post(h, "missing", consent.Event{Action: consent.ActionAcceptAll}))

	require.NoError(t, h.DB.Model(&site).Update("status", websites.StatusInactive).Error)
	assert.Equal(t, http.StatusNotFound, post(h, site.ID, consent.Event{Action: consent.ActionAcceptAll}))

	assert.Empty(t, *events)
}

func TestGetAnalytics_ClampsToRetention(t *testing.T) {
	h, _, u, site := setup(t)
	ctx := context.Background()
	for _, offset := range []int{0, 10, 45, 200} {
		day := fixedNow.AddDate(0, 0, -offset)
		require.NoError(t, consent.Record(ctx, h.DB, site.ID, consent.Event{Action: consent.ActionAcceptAll}, day))
	}

	type response struct {
		RetentionDays int             `json:"retention_days"`
		Clamped       bool            `json:"clamped"`
		Summary       consent.Summary `json:"summary"`
	}
	get := func(tier plans.Tier, query string) (int, response) {
		c, w := testutil.NewTestContext(http.MethodGet, "/websites/"+site.ID+"/analytics"+query, nil)
		testutil.SetAuthContext(c, u, tier)
		testutil.SetURLParam(c, "id", site.ID)
		h.GetAnalytics(c)
		var out response
		if w.Code == http.StatusOK {
			testutil.ParseResponse(t, w, &out)
		}
		return w.Code, out
	}

	code, out := get(plans.TierFree, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 30, out.Summary.Days)
	assert.Equal(t, int64(2), out.Summary.Total)
	assert.False(t, out.Clamped)

	code, out = get(plans.TierFree, "?days=365")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, out.Clamped)
	assert.Equal(t, 30, out.Summary.Days)
	assert.Equal(t, 30, out.RetentionDays)

	code, out = get(plans.TierBasic, "?days=90")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), out.Summary.Total)

	code, out = get(plans.TierProfessional, "?days=365")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(4), out.Summary.Total)
	assert.Equal(t, 1.0, out.Summary.AcceptRate)

	code, _ = get(plans.TierFree, "?days=0")
	assert.Equal(t, http.StatusBadRequest, code)
}
