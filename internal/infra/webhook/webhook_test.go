package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"consent-app/internal/domain/webhooks"
	"consent-app/internal/infra/logger"
)

func TestSignVerify(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := Sign("secret", body)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	assert.True(t, Verify("secret", body, sig))
	assert.False(t, Verify("other", body, sig))
	assert.False(t, Verify("secret", []byte(`{"a":2}`), sig))
}

func TestSender_Send(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewSender(time.Second)
	hook := webhooks.Webhook{ID: "h-1", URL: srv.URL, Secret: "shh"}
	d, err := s.Send(context.Background(), hook, webhooks.EventTest, map[string]string{"hello": "world"})
	require.NoError(t, err)

	assert.True(t, d.Success)
	assert.Equal(t, http.StatusNoContent, d.StatusCode)
	assert.Equal(t, "h-1", d.WebhookID)
	assert.Empty(t, d.Error)

	require.NotNil(t, got)
	assert.Equal(t, webhooks.EventTest, got.Header.Get(HeaderEvent))
	assert.Equal(t, d.ID, got.Header.Get(HeaderDelivery))
	assert.True(t, Verify("shh", gotBody, got.Header.Get(HeaderSignature)))

	var p Payload
	require.NoError(t, json.Unmarshal(gotBody, &p))
	assert.Equal(t, d.ID, p.ID)
	assert.Equal(t, webhooks.EventTest, p.Event)
	assert.Equal(t, map[string]any{"hello": "world"}, p.Data)
}

func TestSender_Failures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSender(time.Second)
	d, err := s.Send(context.Background(), webhooks.Webhook{URL: srv.URL}, webhooks.EventTest, nil)
	require.NoError(t, err)
	assert.False(t, d.Success)
	assert.Equal(t, http.StatusInternalServerError, d.StatusCode)
	assert.Contains(t, d.Error, "500")
	assert.Equal(t, int32(1), calls.Load())

	d, err = s.Send(context.Background(), webhooks.Webhook{URL: "http://127.0.0.1:1/unreachable"}, webhooks.EventTest, nil)
	require.NoError(t, err)
	assert.False(t, d.Success)
	assert.Zero(t, d.StatusCode)
	assert.NotEmpty(t, d.Error)

	_, err = s.Send(context.Background(), webhooks.Webhook{URL: srv.URL}, webhooks.EventTest, func() {})
	assert.Error(t, err)
}

func TestDispatcher(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&webhooks.Webhook{}, &webhooks.Delivery{}))

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	events, err := webhooks.EncodeEvents([]string{"consent.recorded"})
	require.NoError(t, err)
	ctx := context.Background()
	hook := &webhooks.Webhook{UserID: 1, URL: srv.URL, Events: events, Enabled: true}
	require.NoError(t, webhooks.Create(ctx, db, hook))
	require.NoError(t, webhooks.Create(ctx, db, &webhooks.Webhook{UserID: 2, URL: srv.URL, Events: events, Enabled: true}))

	d := NewDispatcher(db, NewSender(time.Second), logger.Nop())
	d.Publish(1, "w-1", "consent.recorded", map[string]string{"action": "accept_all"})
	d.Publish(1, "w-1", "website.created", nil)
	d.Wait()

	assert.Equal(t, int32(1), calls.Load())
	list, err := webhooks.Deliveries(ctx, db, hook.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Success)
	assert.Equal(t, "consent.recorded", list[0].Event)
}
