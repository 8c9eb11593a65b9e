package websites

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"consent-app/internal/domain/plans"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Website{}))
	return db
}

func TestBannerValidate_CustomizationLevels(t *testing.T) {
	themed := DefaultBanner()
	themed.Theme = Theme{Primary: "#112233"}

	css := themed
	css.CustomCSS = ".banner{border:0}"

	branded := DefaultBanner()
	branded.HideBranding = true

	tests := []struct {
		name   string
		banner BannerConfig
		tier   plans.Tier
		err    error
	}{
		{"default on free", DefaultBanner(), plans.TierFree, nil},
		{"theme on free", themed, plans.TierFree, ErrCustomizationLevel},
		{"theme on basic", themed, plans.TierBasic, nil},
		{"css on basic", css, plans.TierBasic, ErrCustomizationLevel},
		{"css on professional", css, plans.TierProfessional, nil},
		{"hide branding on basic", branded, plans.TierBasic, ErrWhiteLabel},
		{"hide branding on professional", branded, plans.TierProfessional, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.banner.Validate(plans.GetLimits(tt.tier))
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBannerValidate_Shape(t *testing.T) {
	limits := plans.GetLimits(plans.TierProfessional)

	b := DefaultBanner()
	b.Position = "sideways"
	assert.ErrorIs(t, b.Validate(limits), ErrInvalidBanner)

	b = DefaultBanner()
	b.Theme.Text = "red"
	assert.ErrorIs(t, b.Validate(limits), ErrInvalidBanner)

	b = DefaultBanner()
	b.Categories = []string{"Marketing Cookies"}
	assert.ErrorIs(t, b.Validate(limits), ErrInvalidBanner)

	b = DefaultBanner()
	b.Title = ""
	assert.ErrorIs(t, b.Validate(limits), ErrInvalidBanner)
}

func TestBannerSanitize(t *testing.T) {
	b := DefaultBanner()
	b.Title = `<b>Cookies</b><script>alert(1)</script>`
	b.CustomCSS = `.x{}</style><script>`

	clean := b.Sanitize()
	assert.Equal(t, "Cookies", clean.Title)
	assert.NotContains(t, clean.CustomCSS, "</")
}

func TestParseBanner(t *testing.T) {
	b, err := ParseBanner(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBanner(), b)

	raw, err := DefaultBanner().JSON()
	require.NoError(t, err)
	b, err = ParseBanner(raw)
	require.NoError(t, err)
	assert.Equal(t, "bottom", b.Position)

	_, err = ParseBanner([]byte("{"))
	assert.Error(t, err)
}

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]string{
		"example.com":                  "example.com",
		" Shop.Example.com ":           "shop.example.com",
		"https://www.example.org/path": "www.example.org",
	}
	for in, want := range tests {
		got, err := NormalizeDomain(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "localhost", "http://"} {
		_, err := NormalizeDomain(bad)
		assert.ErrorIs(t, err, ErrInvalidDomain, bad)
	}
}

func TestRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	w := &Website{UserID: 1, Name: "Shop", Domain: "shop.example.com"}
	require.NoError(t, Create(ctx, db, w))
	assert.Len(t, w.ID, 36)
	assert.Equal(t, StatusActive, w.Status)
	assert.NotEmpty(t, w.Banner)

	require.NoError(t, Create(ctx, db, &Website{UserID: 2, Name: "Blog", Domain: "blog.example.com"}))

	n, err := CountByUser(ctx, db, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := Get(ctx, db, 1, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Name)

	_, err = Get(ctx, db, 2, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	pub, err := GetPublic(ctx, db, w.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), pub.UserID)

	list, err := ListByUser(ctx, db, 2)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
