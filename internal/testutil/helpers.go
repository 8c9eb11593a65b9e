// Package testutil holds helpers shared by handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"consent-app/database"
	"consent-app/internal/app/http/middleware"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewDB returns a migrated in-memory database with plans seeded.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedPlans(t.Context(), db))
	return db
}

// CreateUser inserts a verified user on the given tier.
func CreateUser(t *testing.T, db *gorm.DB, email string, tier plans.Tier) users.User {
	t.Helper()
	u := users.User{Name: "Test", Email: email, Role: users.RoleUser, IsVerified: true, AuthProvider: users.ProviderLocal}
	require.NoError(t, db.Create(&u).Error)
	if tier != plans.TierFree {
		require.NoError(t, subscriptions.Upsert(t.Context(), db, &subscriptions.Subscription{UserID: u.ID, Plan: tier, Status: "active"}))
	}
	return u
}

// NewTestContext creates a gin context with an optional JSON body.
func NewTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = newRequest(method, path, body)
	return c, w
}

// SetAuthContext simulates AuthMiddleware and LoadPlan for user u.
func SetAuthContext(c *gin.Context, u users.User, tier plans.Tier) {
	c.Set(middleware.CtxUserID, u.ID)
	c.Set(middleware.CtxEmail, u.Email)
	c.Set(middleware.CtxRole, u.Role)
	c.Set(middleware.CtxTier, tier)
	c.Set(middleware.CtxLimits, plans.GetLimits(tier))
}

func SetURLParam(c *gin.Context, key, value string) {
	c.Params = append(c.Params, gin.Param{Key: key, Value: value})
}

// Serve runs a request through a full engine.
func Serve(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	req := newRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes the JSON response body into target.
func ParseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), target), w.Body.String())
}

func newRequest(method, path string, body interface{}) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	case []byte:
		raw = b
	default:
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}
