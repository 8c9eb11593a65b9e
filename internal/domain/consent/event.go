package consent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Action string

const (
	ActionAcceptAll Action = "accept_all"
	ActionRejectAll Action = "reject_all"
	ActionCustom    Action = "custom"
)

// EventRecorded is the webhook event emitted for every stored consent.
const EventRecorded = "consent.recorded"

var (
	ErrInvalidEvent = errors.New("invalid consent event")

	categoryName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)
)

// Event is what the embed script posts.
type Event struct {
	Action     Action   `json:"action"`
	Categories []string `json:"categories"`
	VisitorID  string   `json:"visitor_id"`
}

// Normalize validates the event and dedupes its categories.
func (e Event) Normalize() (Event, error) {
	switch e.Action {
	case ActionAcceptAll, ActionRejectAll, ActionCustom:
	default:
		return Event{}, fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}
	if len(e.VisitorID) > 64 {
		return Event{}, fmt.Errorf("%w: visitor_id too long", ErrInvalidEvent)
	}

	seen := make(map[string]bool, len(e.Categories))
	cats := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if !categoryName.MatchString(c) {
			return Event{}, fmt.Errorf("%w: category %q", ErrInvalidEvent, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		cats = append(cats, c)
	}
	if len(cats) > 32 {
		return Event{}, fmt.Errorf("%w: too many categories", ErrInvalidEvent)
	}
	e.Categories = cats
	return e, nil
}

// Day is the UTC calendar day used as counter bucket.
func Day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Cutoff returns the first day kept when retaining the given number of days.
func Cutoff(now time.Time, days int) string {
	if days < 1 {
		days = 1
	}
	return Day(now.AddDate(0, 0, -(days - 1)))
}
