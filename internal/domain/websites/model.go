package websites

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Website struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	Domain    string         `gorm:"not null;index" json:"domain"`
	Status    string         `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	Banner    datatypes.JSON `json:"banner"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (w Website) Active() bool {
	return w.Status == StatusActive
}

func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive
}
