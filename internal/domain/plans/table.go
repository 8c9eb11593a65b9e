package plans

// Table maps tiers to limits. Build one from DB rows with NewTable so admin
// edits to the plans table are honoured; the zero Table behaves like Defaults.
type Table map[Tier]Limits

// NewTable overlays plan rows on the seeded defaults. Rows with an unknown
// plan_type are ignored.
func NewTable(rows []Plan) Table {
	t := Defaults()
	for _, r := range rows {
		tier := Tier(r.PlanType)
		if !tier.Valid() {
			continue
		}
		t[tier] = r.Limits()
	}
	return t
}

func (t Table) Limits(plan Tier) Limits {
	if l, ok := t[plan]; ok {
		return l
	}
	if l, ok := t[TierFree]; ok {
		return l
	}
	return GetLimits(TierFree)
}

func (t Table) CanCreateWebsite(currentCount int, plan Tier) bool {
	return t.Limits(plan).AllowsAnotherWebsite(currentCount)
}

func (t Table) CanUseWebhooks(plan Tier) bool {
	return t.Limits(plan).WebhooksEnabled
}

func (t Table) CanUseWhiteLabel(plan Tier) bool {
	return t.Limits(plan).WhiteLabel
}

func (t Table) AnalyticsRetentionDays(plan Tier) int {
	return t.Limits(plan).AnalyticsHistoryDays
}

// MaxRetentionDays is the longest history any tier keeps.
func (t Table) MaxRetentionDays() int {
	maxDays := 0
	for _, l := range t {
		if l.AnalyticsHistoryDays > maxDays {
			maxDays = l.AnalyticsHistoryDays
		}
	}
	return maxDays
}
