package plans

import "strings"

// Tier is a subscription level. Immutable reference data.
type Tier string

// Tier constants (single source of truth)
const (
	TierFree         Tier = "free"
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
)

// Tiers lists every tier from most to least restrictive.
var Tiers = []Tier{TierFree, TierBasic, TierProfessional}

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierProfessional:
		return true
	}
	return false
}

// ParseTier normalises a plan string coming from the database, a token or Stripe
// metadata. Anything unknown maps to TierFree: plan data is remote and may be stale.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TierFree
}

// Rank orders tiers so upgrades and downgrades can be told apart.
func (t Tier) Rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierProfessional:
		return 2
	default:
		return 0
	}
}
