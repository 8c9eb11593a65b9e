package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"consent-app/internal/domain/plans"
	"consent-app/internal/optimistic"
)

// Session is one signed-in dashboard: the account, its websites and
// webhooks, and the optimistic coordinators that edit them.
type Session struct {
	client  *Client
	account Account
	policy  plans.Table
	cache   *QueryCache
	logger  *slog.Logger

	websites *optimistic.Collection[Website]
	webhooks *optimistic.Collection[Webhook]

	siteUpdates *optimistic.Coordinator[Website]
	hookUpdates *optimistic.Coordinator[Webhook]
}

// NewSession loads the account behind the client's token.
func NewSession(ctx context.Context, client *Client, notifier optimistic.Notifier, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = optimistic.LogNotifier{Logger: logger}
	}
	account, err := client.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	// Server-reported limits win over the seeded table for the session's own tier.
	policy := plans.Defaults()
	if account.Limits.Validate() == nil {
		policy[account.Plan] = account.Limits
	}

	s := &Session{
		client:   client,
		account:  *account,
		policy:   policy,
		cache:    NewQueryCache(),
		logger:   logger.With("component", "dashboard"),
		websites: optimistic.NewCollection[Website](),
		webhooks: optimistic.NewCollection[Webhook](),
	}
	opts := []optimistic.Option{
		optimistic.WithInvalidator(s.cache),
		optimistic.WithNotifier(notifier),
		optimistic.WithLogger(s.logger),
	}
	s.siteUpdates = optimistic.New[Website](s.websites, opts...)
	s.hookUpdates = optimistic.New[Webhook](s.webhooks, opts...)
	return s, nil
}

func (s *Session) Account() Account { return s.account }

func (s *Session) websitesKey() optimistic.CacheKey {
	return optimistic.CacheKey{"websites", strconv.FormatUint(uint64(s.account.UserID), 10)}
}

func (s *Session) webhooksKey() optimistic.CacheKey {
	return optimistic.CacheKey{"webhooks", strconv.FormatUint(uint64(s.account.UserID), 10)}
}

// Refresh loads websites and, when the plan has them, webhooks. Cached
// lists are reused until an update invalidates them.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.loadWebsites(ctx); err != nil {
		return err
	}
	if s.CanUseWebhooks() {
		return s.loadWebhooks(ctx)
	}
	return nil
}

func (s *Session) loadWebsites(ctx context.Context) error {
	list, err := cached(ctx, s.cache, s.websitesKey(), s.client.Websites)
	if err != nil {
		return fmt.Errorf("load websites: %w", err)
	}
	s.websites.Save(list)
	return nil
}

func (s *Session) loadWebhooks(ctx context.Context) error {
	list, err := cached(ctx, s.cache, s.webhooksKey(), s.client.Webhooks)
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}
	s.webhooks.Save(list)
	return nil
}

func (s *Session) Websites() []Website { return s.websites.Load() }

func (s *Session) Webhooks() []Webhook { return s.webhooks.Load() }

// Website returns the loaded website with the given id.
func (s *Session) Website(id string) (Website, bool) { return s.websites.Get(id) }

// Pending reports whether any optimistic update is in flight.
func (s *Session) Pending() bool {
	return s.siteUpdates.Pending() || s.hookUpdates.Pending()
}

func (s *Session) CanAddWebsite() bool {
	return s.policy.CanCreateWebsite(s.websites.Len(), s.account.Plan)
}

func (s *Session) CanUseWebhooks() bool {
	return s.policy.CanUseWebhooks(s.account.Plan)
}

// SetWebsiteStatus switches a website between active and inactive.
func (s *Session) SetWebsiteStatus(ctx context.Context, id, status string) error {
	return s.siteUpdates.Update(ctx, id,
		func(w Website) Website {
			w.Status = status
			return w
		},
		optimistic.FromOutcome(func(ctx context.Context) (WriteResult, error) {
			return s.client.PatchWebsite(ctx, id, map[string]any{"status": status})
		}),
		optimistic.Options{
			Invalidate:     []optimistic.CacheKey{s.websitesKey()},
			OnSuccess:      s.loadWebsites,
			FailureTitle:   "Could not change website status",
			DefaultMessage: "The website status could not be saved.",
		})
}

func (s *Session) RenameWebsite(ctx context.Context, id, name string) error {
	return s.siteUpdates.Update(ctx, id,
		func(w Website) Website {
			w.Name = name
			return w
		},
		optimistic.FromOutcome(func(ctx context.Context) (WriteResult, error) {
			return s.client.PatchWebsite(ctx, id, map[string]any{"name": name})
		}),
		optimistic.Options{
			Invalidate:     []optimistic.CacheKey{s.websitesKey()},
			OnSuccess:      s.loadWebsites,
			FailureTitle:   "Could not rename website",
			DefaultMessage: "The new name could not be saved.",
		})
}

func (s *Session) SetWebhookEnabled(ctx context.Context, id string, enabled bool) error {
	return s.hookUpdates.Update(ctx, id,
		func(w Webhook) Webhook {
			w.Enabled = enabled
			return w
		},
		optimistic.FromOutcome(func(ctx context.Context) (WriteResult, error) {
			return s.client.PatchWebhook(ctx, id, map[string]any{"enabled": enabled})
		}),
		optimistic.Options{
			Invalidate:     []optimistic.CacheKey{s.webhooksKey()},
			OnSuccess:      s.loadWebhooks,
			FailureTitle:   "Could not update webhook",
			DefaultMessage: "The webhook could not be saved.",
		})
}
