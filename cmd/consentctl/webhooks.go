package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newWebhooksCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Enable or disable webhooks",
	}
	toggle := func(use, short string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.session(cmd.Context(), cmd)
				if err != nil {
					return err
				}
				if !s.CanUseWebhooks() {
					return errors.New("webhooks are not included in your plan")
				}
				return report(cmd, s.SetWebhookEnabled(cmd.Context(), args[0], enabled), "webhook %s %sd", args[0], use)
			},
		}
	}
	cmd.AddCommand(
		toggle("enable", "Resume deliveries to a webhook", true),
		toggle("disable", "Pause deliveries to a webhook", false),
	)
	return cmd
}
