package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"consent-app/config"
	"consent-app/internal/domain/consent"
	"consent-app/internal/domain/plans"
	"consent-app/internal/domain/scripts"
	"consent-app/internal/domain/settings"
	"consent-app/internal/domain/subscriptions"
	"consent-app/internal/domain/users"
	"consent-app/internal/domain/webhooks"
	"consent-app/internal/domain/websites"
)

// Open connects to Postgres.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: gormlogger.New(slogWriter{logger.With("component", "gorm")}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// slogWriter routes gorm's printf-style output into slog.
type slogWriter struct {
	l *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.l.Warn(fmt.Sprintf(format, args...))
}

// Models lists every table the service owns.
func Models() []interface{} {
	return []interface{}{
		&users.User{},
		&users.VerificationToken{},
		&plans.Plan{},
		&subscriptions.Subscription{},
		&subscriptions.Payment{},
		&websites.Website{},
		&scripts.Script{},
		&consent.AnalyticsDaily{},
		&consent.CategoryDaily{},
		&webhooks.Webhook{},
		&webhooks.Delivery{},
		&settings.Setting{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// SeedPlans inserts the default limits for tiers that have no row yet.
// Existing rows are left alone so admin edits survive restarts.
func SeedPlans(ctx context.Context, db *gorm.DB) error {
	defaults := plans.Defaults()
	for _, tier := range plans.Tiers {
		row := plans.Row(tier, defaults[tier])
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_type"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("seed plan %s: %w", tier, err)
		}
	}
	return nil
}

// LoadPlans reads every plan row, cheapest first.
func LoadPlans(ctx context.Context, db *gorm.DB) ([]plans.Plan, error) {
	var rows []plans.Plan
	err := db.WithContext(ctx).Order("price_eur ASC, id ASC").Find(&rows).Error
	return rows, err
}
