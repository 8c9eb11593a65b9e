package websites

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("website not found")
	ErrInvalidDomain = errors.New("invalid domain")
)

func userQuery(db *gorm.DB, userID uint) *gorm.DB {
	return db.Model(&Website{}).Where("user_id = ?", userID)
}

func CountByUser(ctx context.Context, db *gorm.DB, userID uint) (int, error) {
	var n int64
	if err := userQuery(db.WithContext(ctx), userID).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func ListByUser(ctx context.Context, db *gorm.DB, userID uint) ([]Website, error) {
	var out []Website
	err := userQuery(db.WithContext(ctx), userID).Order("created_at ASC").Find(&out).Error
	return out, err
}

// Get loads a website owned by userID.
func Get(ctx context.Context, db *gorm.DB, userID uint, id string) (*Website, error) {
	var w Website
	err := userQuery(db.WithContext(ctx), userID).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetPublic loads a website by id regardless of owner, for the embed script.
func GetPublic(ctx context.Context, db *gorm.DB, id string) (*Website, error) {
	var w Website
	err := db.WithContext(ctx).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func Create(ctx context.Context, db *gorm.DB, w *Website) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = StatusActive
	}
	if len(w.Banner) == 0 {
		raw, err := DefaultBanner().JSON()
		if err != nil {
			return err
		}
		w.Banner = raw
	}
	return db.WithContext(ctx).Create(w).Error
}

// NormalizeDomain accepts "example.com" or a full URL and returns the host.
func NormalizeDomain(in string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(in))
	if s == "" {
		return "", ErrInvalidDomain
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return "", ErrInvalidDomain
	}
	return u.Hostname(), nil
}
