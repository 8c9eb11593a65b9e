package scripts

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("script not found")

// NextVersion returns the version number for a new script of the website.
func NextVersion(ctx context.Context, db *gorm.DB, websiteID string) (int, error) {
	var current int
	err := db.WithContext(ctx).Model(&Script{}).
		Where("website_id = ?", websiteID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func ListByWebsite(ctx context.Context, db *gorm.DB, userID uint, websiteID string) ([]Script, error) {
	var out []Script
	err := db.WithContext(ctx).
		Where("user_id = ? AND website_id = ?", userID, websiteID).
		Order("version DESC").
		Find(&out).Error
	return out, err
}

func Get(ctx context.Context, db *gorm.DB, userID uint, id string) (*Script, error) {
	var s Script
	err := db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Latest returns the newest script of a website, for serving without a CDN.
func Latest(ctx context.Context, db *gorm.DB, websiteID string) (*Script, error) {
	var s Script
	err := db.WithContext(ctx).Where("website_id = ?", websiteID).Order("version DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
