package webhooks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Webhook{}, &Delivery{}))
	return db
}

func TestEncodeEvents(t *testing.T) {
	raw, err := EncodeEvents([]string{"consent.recorded"})
	require.NoError(t, err)
	assert.JSONEq(t, `["consent.recorded"]`, string(raw))

	raw, err = EncodeEvents(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	_, err = EncodeEvents([]string{"user.deleted"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://hooks.example.com/in"))
	assert.ErrorIs(t, ValidateURL("ftp://example.com"), ErrInvalidURL)
	assert.ErrorIs(t, ValidateURL("not a url"), ErrInvalidURL)
}

func TestSubscribed(t *testing.T) {
	site := "w-1"
	events, err := EncodeEvents([]string{"consent.recorded"})
	require.NoError(t, err)

	global := Webhook{Enabled: true, Events: events}
	scoped := Webhook{Enabled: true, Events: events, WebsiteID: &site}
	disabled := Webhook{Enabled: false, Events: events}

	assert.True(t, global.Subscribed("consent.recorded", "w-9"))
	assert.False(t, global.Subscribed("website.created", "w-9"))
	assert.True(t, scoped.Subscribed("consent.recorded", "w-1"))
	assert.False(t, scoped.Subscribed("consent.recorded", "w-2"))
	assert.False(t, disabled.Subscribed("consent.recorded", "w-1"))
	assert.Empty(t, Webhook{Events: []byte("{broken")}.EventList())
}

func TestRepository(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	events, err := EncodeEvents([]string{"consent.recorded"})
	require.NoError(t, err)

	w := &Webhook{UserID: 1, URL: "https://example.com/hook", Events: events, Enabled: true}
	require.NoError(t, Create(ctx, db, w))
	assert.Len(t, w.ID, 36)
	assert.True(t, strings.HasPrefix(w.Secret, "whsec_"))

	other := &Webhook{UserID: 1, URL: "https://example.com/off", Events: events, Enabled: true}
	require.NoError(t, Create(ctx, db, other))
	require.NoError(t, db.Model(other).Update("enabled", false).Error)

	subs, err := Subscribers(ctx, db, 1, "w-1", "consent.recorded")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, w.ID, subs[0].ID)

	_, err = Get(ctx, db, 2, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, LogDelivery(ctx, db, &Delivery{WebhookID: w.ID, Event: EventTest, StatusCode: 200, Success: true}))
	require.NoError(t, LogDelivery(ctx, db, &Delivery{WebhookID: w.ID, Event: EventTest, Error: "timeout"}))
	list, err := Deliveries(ctx, db, w.ID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
