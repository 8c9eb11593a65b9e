package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"consent-app/config"
	"consent-app/internal/dashboard"
	"consent-app/internal/infra/logger"
	"consent-app/internal/optimistic"
)

type options struct {
	apiURL   string
	token    string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "consentctl",
		Short:        "Manage consent banners from the terminal",
		Long:         `consentctl signs in with an API token and edits websites and webhooks the same way the dashboard does.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("CONSENT_API_URL", "http://localhost:8080"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("CONSENT_TOKEN"), "API token (JWT)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newWebsitesCommand(opts),
		newWebhooksCommand(opts),
		newPlansCommand(),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *options) logger(w io.Writer) *slog.Logger {
	return logger.New(config.LoggerConfig{Level: o.logLevel, Format: "text"}, w)
}

// session signs in and loads the account's websites and webhooks. Failed
// optimistic updates are printed to stderr.
func (o *options) session(ctx context.Context, cmd *cobra.Command) (*dashboard.Session, error) {
	if o.token == "" {
		return nil, fmt.Errorf("no token: pass --token or set CONSENT_TOKEN")
	}
	stderr := cmd.ErrOrStderr()
	notify := optimistic.NotifierFunc(func(n optimistic.Notification) {
		if n.Level == optimistic.LevelError {
			fmt.Fprintf(stderr, "error: %s: %s\n", n.Title, n.Message)
			return
		}
		fmt.Fprintln(stderr, n.Message)
	})

	s, err := dashboard.NewSession(ctx, dashboard.NewClient(o.apiURL, o.token), notify, o.logger(stderr))
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
