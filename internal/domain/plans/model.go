package plans

import "time"

// Plan is one row of the plans table. The limit columns mirror the shape the
// dashboard reads; billing columns are filled by the Stripe sync.
type Plan struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	PlanType         string `gorm:"column:plan_type;not null;uniqueIndex:idx_plans_plan_type" json:"plan_type"`
	Name             string `json:"name"`
	WebsiteLimit     int    `gorm:"column:website_limit;not null" json:"website_limit"`
	AnalyticsHistory int    `gorm:"column:analytics_history;not null" json:"analytics_history"`
	WebhooksEnabled  bool   `gorm:"column:webhooks_enabled" json:"webhooks_enabled"`
	WhiteLabel       bool   `gorm:"column:white_label" json:"white_label"`
	Customization    string `gorm:"column:customization" json:"customization"`
	SupportLevel     string `gorm:"column:support_level" json:"support_level"`

	PriceEUR      float64 `json:"price_eur"`
	Interval      string  `json:"interval"`
	StripePriceID *string `gorm:"column:stripe_price_id;uniqueIndex:idx_plans_stripe_price_id" json:"stripe_price_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Plan) Tier() Tier {
	return ParseTier(p.PlanType)
}

func (p Plan) Limits() Limits {
	return Limits{
		WebsiteLimit:         p.WebsiteLimit,
		AnalyticsHistoryDays: p.AnalyticsHistory,
		WebhooksEnabled:      p.WebhooksEnabled,
		WhiteLabel:           p.WhiteLabel,
		Customization:        parseCustomization(p.Customization),
		Support:              parseSupport(p.SupportLevel),
	}
}

// Row builds a plans row for a tier, used by the seeder and admin edits.
func Row(tier Tier, l Limits) Plan {
	return Plan{
		PlanType:         string(tier),
		Name:             string(tier),
		WebsiteLimit:     l.WebsiteLimit,
		AnalyticsHistory: l.AnalyticsHistoryDays,
		WebhooksEnabled:  l.WebhooksEnabled,
		WhiteLabel:       l.WhiteLabel,
		Customization:    string(l.Customization),
		SupportLevel:     string(l.Support),
	}
}

func parseCustomization(s string) Customization {
	switch Customization(s) {
	case CustomizationStandard, CustomizationFull:
		return Customization(s)
	default:
		return CustomizationBasic
	}
}

func parseSupport(s string) Support {
	switch Support(s) {
	case SupportEmail, SupportPriority:
		return Support(s)
	default:
		return SupportCommunity
	}
}
