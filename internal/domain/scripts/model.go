package scripts

import "time"

type Script struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WebsiteID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_scripts_website_version" json:"website_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Version   int       `gorm:"not null;uniqueIndex:idx_scripts_website_version" json:"version"`
	Content   string    `gorm:"type:text;not null" json:"-"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ObjectKey is where the script lives in the CDN bucket.
func (s Script) ObjectKey() string {
	return ObjectKey(s.WebsiteID, s.Version)
}
