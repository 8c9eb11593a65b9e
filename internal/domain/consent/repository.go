package consent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record bumps the day counters for one event.
func Record(ctx context.Context, db *gorm.DB, websiteID string, ev Event, now time.Time) error {
	day := Day(now)
	row := AnalyticsDaily{WebsiteID: websiteID, Day: day, Total: 1}
	column := "custom"
	switch ev.Action {
	case ActionAcceptAll:
		row.Accepted, column = 1, "accepted"
	case ActionRejectAll:
		row.Rejected, column = 1, "rejected"
	default:
		row.Custom = 1
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "website_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				column:  gorm.Expr("analytics_daily." + column + " + 1"),
				"total": gorm.Expr("analytics_daily.total + 1"),
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		for _, c := range ev.Categories {
			cat := CategoryDaily{WebsiteID: websiteID, Day: day, Category: c, Granted: 1}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "website_id"}, {Name: "day"}, {Name: "category"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"granted": gorm.Expr("category_daily.granted + 1")}),
			}).Create(&cat).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

type CategoryTotal struct {
	Category string `json:"category"`
	Granted  int64  `json:"granted"`
}

type Summary struct {
	Days       int              `json:"days"`
	From       string           `json:"from"`
	Accepted   int64            `json:"accepted"`
	Rejected   int64            `json:"rejected"`
	Custom     int64            `json:"custom"`
	Total      int64            `json:"total"`
	AcceptRate float64          `json:"accept_rate"`
	Daily      []AnalyticsDaily `json:"daily"`
	Categories []CategoryTotal  `json:"categories"`
}

// Summarize loads the last days of counters for a website.
func Summarize(ctx context.Context, db *gorm.DB, websiteID string, days int, now time.Time) (*Summary, error) {
	from := Cutoff(now, days)
	s := &Summary{Days: days, From: from}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.WithContext(gctx).
			Where("website_id = ? AND day >= ?", websiteID, from).
			Order("day ASC").
			Find(&s.Daily).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&CategoryDaily{}).
			Select("category, SUM(granted) AS granted").
			Where("website_id = ? AND day >= ?", websiteID, from).
			Group("category").
			Order("granted DESC, category ASC").
			Scan(&s.Categories).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, d := range s.Daily {
		s.Accepted += d.Accepted
		s.Rejected += d.Rejected
		s.Custom += d.Custom
		s.Total += d.Total
	}
	if s.Total > 0 {
		s.AcceptRate = float64(s.Accepted) / float64(s.Total)
	}
	if s.Daily == nil {
		s.Daily = []AnalyticsDaily{}
	}
	if s.Categories == nil {
		s.Categories = []CategoryTotal{}
	}
	return s, nil
}

// DeleteBefore removes counters of a website older than the cutoff day.
func DeleteBefore(ctx context.Context, db *gorm.DB, websiteID, cutoff string) (int64, error) {
	var removed int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("website_id = ? AND day < ?", websiteID, cutoff).Delete(&AnalyticsDaily{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		res = tx.Where("website_id = ? AND day < ?", websiteID, cutoff).Delete(&CategoryDaily{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	return removed, err
}

// TotalEvents counts every stored consent, for admin stats.
func TotalEvents(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&AnalyticsDaily{}).Select("COALESCE(SUM(total), 0)").Scan(&n).Error
	return n, err
}
