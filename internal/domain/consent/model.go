package consent

type AnalyticsDaily struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	WebsiteID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_analytics_daily_site_day" json:"website_id"`
	Day       string `gorm:"type:varchar(10);not null;uniqueIndex:idx_analytics_daily_site_day" json:"day"`
	Accepted  int64  `gorm:"not null;default:0" json:"accepted"`
	Rejected  int64  `gorm:"not null;default:0" json:"rejected"`
	Custom    int64  `gorm:"not null;default:0" json:"custom"`
	Total     int64  `gorm:"not null;default:0" json:"total"`
}

func (AnalyticsDaily) TableName() string { return "analytics_daily" }

type CategoryDaily struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	WebsiteID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_category_daily_site_day_cat" json:"website_id"`
	Day       string `gorm:"type:varchar(10);not null;uniqueIndex:idx_category_daily_site_day_cat" json:"day"`
	Category  string `gorm:"type:varchar(32);not null;uniqueIndex:idx_category_daily_site_day_cat" json:"category"`
	Granted   int64  `gorm:"not null;default:0" json:"granted"`
}

func (CategoryDaily) TableName() string { return "category_daily" }
