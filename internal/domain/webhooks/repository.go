package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("webhook not found")
	ErrInvalidURL   = errors.New("webhook url must be http(s)")
	ErrInvalidEvent = errors.New("unknown webhook event")
)

// KnownEvents lists what a hook can subscribe to.
var KnownEvents = []string{"consent.recorded", "website.created", "website.deleted", "script.published"}

func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	return nil
}

// EncodeEvents validates names and returns the JSON column value.
func EncodeEvents(events []string) (datatypes.JSON, error) {
	for _, e := range events {
		if !slices.Contains(KnownEvents, e) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, e)
		}
	}
	if events == nil {
		events = []string{}
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func NewSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}

func Create(ctx context.Context, db *gorm.DB, w *Webhook) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Secret == "" {
		secret, err := NewSecret()
		if err != nil {
			return err
		}
		w.Secret = secret
	}
	return db.WithContext(ctx).Create(w).Error
}

func ListByUser(ctx context.Context, db *gorm.DB, userID uint) ([]Webhook, error) {
	var out []Webhook
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func Get(ctx context.Context, db *gorm.DB, userID uint, id string) (*Webhook, error) {
	var w Webhook
	err := db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Subscribers returns the enabled hooks of userID that want event for websiteID.
func Subscribers(ctx context.Context, db *gorm.DB, userID uint, websiteID, event string) ([]Webhook, error) {
	var all []Webhook
	if err := db.WithContext(ctx).Where("user_id = ? AND enabled = ?", userID, true).Find(&all).Error; err != nil {
		return nil, err
	}
	out := all[:0]
	for _, w := range all {
		if w.Subscribed(event, websiteID) {
			out = append(out, w)
		}
	}
	return out, nil
}

func LogDelivery(ctx context.Context, db *gorm.DB, d *Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(d).Error
}

func Deliveries(ctx context.Context, db *gorm.DB, webhookID string, limit int) ([]Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []Delivery
	err := db.WithContext(ctx).Where("webhook_id = ?", webhookID).
		Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
