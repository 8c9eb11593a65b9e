package stripe

import "strings"

// NormalizeStatus folds Stripe subscription statuses into the few the
// plan logic cares about: none, active, trialing, past_due, canceled.
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return "none"
	case "active":
		return "active"
	case "trialing":
		return "trialing"
	case "past_due", "unpaid":
		return "past_due"
	case "canceled", "incomplete_expired":
		return "canceled"
	default:
		return s
	}
}

// IsPaid reports whether a normalized status grants the plan's limits.
func IsPaid(status string) bool {
	switch NormalizeStatus(status) {
	case "active", "trialing":
		return true
	}
	return false
}
