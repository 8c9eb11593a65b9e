package websites

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"

	"consent-app/internal/domain/plans"
)

type Theme struct {
	Primary    string `json:"primary,omitempty"`
	Background string `json:"background,omitempty"`
	Text       string `json:"text,omitempty"`
}

func (t Theme) IsZero() bool {
	return t == Theme{}
}

// BannerConfig is the cookie banner shown by the embed script.
type BannerConfig struct {
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	AcceptLabel  string   `json:"accept_label"`
	RejectLabel  string   `json:"reject_label"`
	Position     string   `json:"position"`
	Theme        Theme    `json:"theme"`
	Categories   []string `json:"categories"`
	CustomCSS    string   `json:"custom_css,omitempty"`
	HideBranding bool     `json:"hide_branding,omitempty"`
}

var (
	ErrCustomizationLevel = errors.New("banner customization not included in plan")
	ErrWhiteLabel         = errors.New("white label not included in plan")
	ErrInvalidBanner      = errors.New("invalid banner")

	positions = map[string]bool{"bottom": true, "top": true, "bottom-left": true, "bottom-right": true, "center": true}
	hexColor  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	category  = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)
)

func DefaultBanner() BannerConfig {
	return BannerConfig{
		Title:       "We value your privacy",
		Message:     "We use cookies to improve your experience and analyse traffic.",
		AcceptLabel: "Accept all",
		RejectLabel: "Reject all",
		Position:    "bottom",
		Categories:  []string{"necessary", "analytics", "marketing"},
	}
}

// Sanitize strips markup from every text field.
func (b BannerConfig) Sanitize() BannerConfig {
	policy := bluemonday.StrictPolicy()
	b.Title = strings.TrimSpace(policy.Sanitize(b.Title))
	b.Message = strings.TrimSpace(policy.Sanitize(b.Message))
	b.AcceptLabel = strings.TrimSpace(policy.Sanitize(b.AcceptLabel))
	b.RejectLabel = strings.TrimSpace(policy.Sanitize(b.RejectLabel))
	b.CustomCSS = strings.ReplaceAll(b.CustomCSS, "</", "")
	return b
}

// Validate checks the banner shape and that it stays within the plan's
// customization level.
func (b BannerConfig) Validate(l plans.Limits) error {
	if b.Title == "" || b.Message == "" || b.AcceptLabel == "" {
		return fmt.Errorf("%w: title, message and accept_label are required", ErrInvalidBanner)
	}
	if !positions[b.Position] {
		return fmt.Errorf("%w: unknown position %q", ErrInvalidBanner, b.Position)
	}
	for _, c := range []string{b.Theme.Primary, b.Theme.Background, b.Theme.Text} {
		if c != "" && !hexColor.MatchString(c) {
			return fmt.Errorf("%w: colour %q must be #rrggbb", ErrInvalidBanner, c)
		}
	}
	for _, c := range b.Categories {
		if !category.MatchString(c) {
			return fmt.Errorf("%w: category %q", ErrInvalidBanner, c)
		}
	}

	switch l.Customization {
	case plans.CustomizationFull:
	case plans.CustomizationStandard:
		if b.CustomCSS != "" {
			return fmt.Errorf("%w: custom css needs full customization", ErrCustomizationLevel)
		}
	default:
		if !b.Theme.IsZero() || b.CustomCSS != "" {
			return fmt.Errorf("%w: theme colours need standard customization", ErrCustomizationLevel)
		}
	}

	if b.HideBranding && !l.WhiteLabel {
		return ErrWhiteLabel
	}
	return nil
}

func (b BannerConfig) JSON() (datatypes.JSON, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// ParseBanner decodes the stored banner; an empty column yields the default.
func ParseBanner(raw datatypes.JSON) (BannerConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultBanner(), nil
	}
	var b BannerConfig
	if err := json.Unmarshal(raw, &b); err != nil {
		return BannerConfig{}, fmt.Errorf("decode banner: %w", err)
	}
	return b, nil
}
