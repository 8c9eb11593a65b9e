package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consent-app/internal/domain/plans"
	"consent-app/internal/infra/logger"
	"consent-app/internal/optimistic"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeAPI serves the handful of endpoints a session uses.
type fakeAPI struct {
	mu       sync.Mutex
	tier     plans.Tier
	websites []Website
	webhooks []Webhook
	failWith atomic.Int32
	release  chan struct{}
	lists    atomic.Int32
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"user":   map[string]any{"id": 7, "email": "me@example.com"},
			"plan":   f.tier,
			"limits": plans.GetLimits(f.tier),
		})
	})
	mux.HandleFunc("GET /websites", func(w http.ResponseWriter, r *http.Request) {
		f.lists.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.websites)
	})
	mux.HandleFunc("GET /webhooks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.webhooks)
	})
	mux.HandleFunc("PATCH /websites/{id}", func(w http.ResponseWriter, r *http.Request) {
		if f.release != nil {
			<-f.release
		}
		if code := int(f.failWith.Load()); code != 0 {
			writeJSON(w, code, map[string]any{"error": "Status must be active or inactive"})
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.websites {
			if f.websites[i].ID == r.PathValue("id") {
				if v, ok := body["status"]; ok {
					f.websites[i].Status = v
				}
				if v, ok := body["name"]; ok {
					f.websites[i].Name = v
				}
				writeJSON(w, http.StatusOK, f.websites[i])
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Website not found"})
	})
	mux.HandleFunc("PATCH /webhooks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if code := int(f.failWith.Load()); code != 0 {
			writeJSON(w, code, map[string]any{})
			return
		}
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		defer f.mu.Unlock()
		f.webhooks[0].Enabled = body["enabled"]
		writeJSON(w, http.StatusOK, f.webhooks[0])
	})
	return mux
}

func newSession(t *testing.T, api *fakeAPI) (*Session, *optimistic.Recorder) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	rec := &optimistic.Recorder{}
	s, err := NewSession(context.Background(), NewClient(srv.URL, "tok"), rec, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Refresh(context.Background()))
	return s, rec
}

func TestSession_SetWebsiteStatus(t *testing.T) {
	api := &fakeAPI{tier: plans.TierBasic, websites: []Website{
		{ID: "a", Name: "Shop", Status: "active"},
		{ID: "b", Name: "Blog", Status: "active"},
	}}
	s, rec := newSession(t, api)
	assert.Equal(t, uint(7), s.Account().UserID)
	require.Equal(t, int32(1), api.lists.Load())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(1), api.lists.Load(), "second refresh is served from the cache")

	require.NoError(t, s.SetWebsiteStatus(context.Background(), "a", "inactive"))
	assert.Equal(t, "inactive", s.Websites()[0].Status)
	assert.Equal(t, "active", s.Websites()[1].Status)
	assert.Equal(t, int32(2), api.lists.Load(), "success invalidates and reloads the list")
	assert.Empty(t, rec.All())
}

func TestSession_AppliesBeforeRemoteFinishes(t *testing.T) {
	api := &fakeAPI{tier: plans.TierFree, websites: []Website{{ID: "a", Name: "Shop", Status: "active"}}}
	s, _ := newSession(t, api)
	api.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- s.RenameWebsite(context.Background(), "a", "Store") }()

	require.Eventually(t, s.Pending, timeout, tick)
	assert.Equal(t, "Store", s.Websites()[0].Name)
	close(api.release)
	require.NoError(t, <-done)
	assert.False(t, s.Pending())
	assert.Equal(t, "Store", s.Websites()[0].Name)
}

func TestSession_RevertsAndNotifiesOnFailure(t *testing.T) {
	api := &fakeAPI{tier: plans.TierFree, websites: []Website{{ID: "a", Name: "Shop", Status: "active"}}}
	s, rec := newSession(t, api)
	api.failWith.Store(http.StatusBadRequest)

	err := s.SetWebsiteStatus(context.Background(), "a", "paused")
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimistic.ErrRemoteFailure))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	assert.Equal(t, "active", s.Websites()[0].Status)
	notes := rec.Errors()
	require.Len(t, notes, 1)
	assert.Equal(t, "Could not change website status", notes[0].Title)
	assert.Equal(t, "Status must be active or inactive", notes[0].Message)
}

func TestSession_Website(t *testing.T) {
	api := &fakeAPI{tier: plans.TierBasic, websites: []Website{{ID: "a", Name: "Shop", Status: "active"}}}
	s, _ := newSession(t, api)

	site, ok := s.Website("a")
	require.True(t, ok)
	assert.Equal(t, "Shop", site.Name)

	_, ok = s.Website("z")
	assert.False(t, ok)
}

func TestClient_WriteKeepsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Website limit reached for your plan","upgrade_required":true}`))
	}))
	t.Cleanup(srv.Close)

	res, err := NewClient(srv.URL, "tok").PatchWebsite(context.Background(), "a", map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.Status)
	require.NotNil(t, res.Failed)
	assert.Equal(t, "Website limit reached for your plan", res.Failed.Message)
	assert.True(t, res.Failed.UpgradeRequired)
	assert.True(t, IsUpgradeRequired(res.Err()))
}

func TestClient_WriteFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	res, err := NewClient(srv.URL, "tok").PatchWebhook(context.Background(), "h", map[string]any{"enabled": true})
	require.NoError(t, err)
	require.NotNil(t, res.Failed)
	assert.Equal(t, "Bad Gateway", res.Failed.Message)
	assert.False(t, IsUpgradeRequired(res.Err()))
}

func TestSession_UnknownWebsite(t *testing.T) {
	api := &fakeAPI{tier: plans.TierFree, websites: []Website{{ID: "a", Status: "active"}}}
	s, rec := newSession(t, api)

	err := s.SetWebsiteStatus(context.Background(), "zzz", "inactive")
	assert.ErrorIs(t, err, optimistic.ErrNotFound)
	assert.Empty(t, rec.All())
}

func TestSession_Webhooks(t *testing.T) {
	api := &fakeAPI{tier: plans.TierBasic, webhooks: []Webhook{{ID: "h", URL: "https://hooks.example.com", Enabled: true}}}
	s, rec := newSession(t, api)
	require.True(t, s.CanUseWebhooks())
	require.Len(t, s.Webhooks(), 1)

	require.NoError(t, s.SetWebhookEnabled(context.Background(), "h", false))
	assert.False(t, s.Webhooks()[0].Enabled)

	api.failWith.Store(http.StatusInternalServerError)
	err := s.SetWebhookEnabled(context.Background(), "h", true)
	require.Error(t, err)
	assert.False(t, s.Webhooks()[0].Enabled)
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), rec.Errors()[0].Message)
}

func TestSession_PlanChecks(t *testing.T) {
	free, _ := newSession(t, &fakeAPI{tier: plans.TierFree})
	assert.True(t, free.CanAddWebsite())
	assert.False(t, free.CanUseWebhooks())
	assert.Empty(t, free.Webhooks(), "free plans never load webhooks")

	full, _ := newSession(t, &fakeAPI{tier: plans.TierFree, websites: []Website{{ID: "a"}}})
	assert.False(t, full.CanAddWebsite())

	basic, _ := newSession(t, &fakeAPI{tier: plans.TierBasic, websites: []Website{{ID: "a"}, {ID: "b"}}})
	assert.True(t, basic.CanAddWebsite())
}

func TestQueryCache_InvalidatesPrefix(t *testing.T) {
	q := NewQueryCache()
	q.Set(optimistic.CacheKey{"websites", "1"}, 1)
	q.Set(optimistic.CacheKey{"websites", "1", "page", "2"}, 2)
	q.Set(optimistic.CacheKey{"websites", "10"}, 3)

	require.NoError(t, q.Invalidate(context.Background(), optimistic.CacheKey{"websites", "1"}))
	_, ok := q.Get(optimistic.CacheKey{"websites", "1"})
	assert.False(t, ok)
	_, ok = q.Get(optimistic.CacheKey{"websites", "1", "page", "2"})
	assert.False(t, ok)
	_, ok = q.Get(optimistic.CacheKey{"websites", "10"})
	assert.True(t, ok)
}
