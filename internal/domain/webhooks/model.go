package webhooks

import (
	"encoding/json"
	"slices"
	"time"

	"gorm.io/datatypes"
)

const EventTest = "webhook.test"

type Webhook struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	WebsiteID *string        `gorm:"type:varchar(36);index" json:"website_id,omitempty"`
	URL       string         `gorm:"not null" json:"url"`
	Secret    string         `gorm:"not null" json:"-"`
	Events    datatypes.JSON `json:"events"`
	Enabled   bool           `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// EventList decodes the subscribed events; a broken column subscribes to nothing.
func (w Webhook) EventList() []string {
	var out []string
	if len(w.Events) == 0 {
		return out
	}
	_ = json.Unmarshal(w.Events, &out)
	return out
}

// Subscribed reports whether the hook wants event for the given website.
func (w Webhook) Subscribed(event, websiteID string) bool {
	if !w.Enabled {
		return false
	}
	if w.WebsiteID != nil && *w.WebsiteID != websiteID {
		return false
	}
	return slices.Contains(w.EventList(), event)
}

type Delivery struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WebhookID  string    `gorm:"type:varchar(36);not null;index" json:"webhook_id"`
	Event      string    `gorm:"not null" json:"event"`
	StatusCode int       `json:"status_code"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
