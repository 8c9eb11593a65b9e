package plans

import (
	"errors"
	"fmt"
)

type Customization string

const (
	CustomizationBasic    Customization = "basic"
	CustomizationStandard Customization = "standard"
	CustomizationFull     Customization = "full"
)

type Support string

const (
	SupportCommunity Support = "community"
	SupportEmail     Support = "email"
	SupportPriority  Support = "priority"
)

type Limits struct {
	WebsiteLimit         int           `json:"website_limit"`
	AnalyticsHistoryDays int           `json:"analytics_history_days"`
	WebhooksEnabled      bool          `json:"webhooks_enabled"`
	WhiteLabel           bool          `json:"white_label"`
	Customization        Customization `json:"customization"`
	Support              Support       `json:"support_level"`
}

// defaultLimits is the seeded reference data. Admin tooling may rewrite the
// plans table; see Table for the DB-backed view.
var defaultLimits = map[Tier]Limits{
	TierFree: {
		WebsiteLimit:         1,
		AnalyticsHistoryDays: 30,
		WebhooksEnabled:      false,
		WhiteLabel:           false,
		Customization:        CustomizationBasic,
		Support:              SupportCommunity,
	},
	TierBasic: {
		WebsiteLimit:         5,
		AnalyticsHistoryDays: 90,
		WebhooksEnabled:      true,
		WhiteLabel:           false,
		Customization:        CustomizationStandard,
		Support:              SupportEmail,
	},
	TierProfessional: {
		WebsiteLimit:         20,
		AnalyticsHistoryDays: 365,
		WebhooksEnabled:      true,
		WhiteLabel:           true,
		Customization:        CustomizationFull,
		Support:              SupportPriority,
	},
}

// Defaults returns the seeded limits table.
func Defaults() Table {
	t := make(Table, len(defaultLimits))
	for k, v := range defaultLimits {
		t[k] = v
	}
	return t
}

// GetLimits looks up the seeded limits for a tier. Unknown tiers get free's limits.
func GetLimits(plan Tier) Limits {
	if l, ok := defaultLimits[plan]; ok {
		return l
	}
	return defaultLimits[TierFree]
}

func CanCreateWebsite(currentCount int, plan Tier) bool {
	return GetLimits(plan).AllowsAnotherWebsite(currentCount)
}

func CanUseWebhooks(plan Tier) bool {
	return GetLimits(plan).WebhooksEnabled
}

func CanUseWhiteLabel(plan Tier) bool {
	return GetLimits(plan).WhiteLabel
}

func GetAnalyticsRetentionDays(plan Tier) int {
	return GetLimits(plan).AnalyticsHistoryDays
}

// AllowsAnotherWebsite reports whether an account holding count websites may add one more.
func (l Limits) AllowsAnotherWebsite(count int) bool {
	return count < l.WebsiteLimit
}

var ErrInvalidLimits = errors.New("invalid plan limits")

// Validate checks limits submitted by admins before they are stored.
func (l Limits) Validate() error {
	switch {
	case l.WebsiteLimit < 0:
		return fmt.Errorf("%w: website_limit must not be negative", ErrInvalidLimits)
	case l.AnalyticsHistoryDays < 1:
		return fmt.Errorf("%w: analytics_history_days must be at least 1", ErrInvalidLimits)
	}
	switch l.Customization {
	case CustomizationBasic, CustomizationStandard, CustomizationFull:
	default:
		return fmt.Errorf("%w: unknown customization %q", ErrInvalidLimits, l.Customization)
	}
	switch l.Support {
	case SupportCommunity, SupportEmail, SupportPriority:
	default:
		return fmt.Errorf("%w: unknown support_level %q", ErrInvalidLimits, l.Support)
	}
	return nil
}
