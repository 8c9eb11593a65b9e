package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"consent-app/internal/domain/plans"
)

type planView struct {
	Name                 string `yaml:"name"`
	WebsiteLimit         int    `yaml:"website_limit"`
	AnalyticsHistoryDays int    `yaml:"analytics_history_days"`
	Webhooks             bool   `yaml:"webhooks"`
	WhiteLabel           bool   `yaml:"white_label"`
	Customization        string `yaml:"customization"`
	Support              string `yaml:"support"`
}

func newPlansCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect plan limits",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "limits [tier]",
		Short: "Print the seeded limits of one tier or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers := plans.Tiers
			if len(args) == 1 {
				t := plans.Tier(args[0])
				if !t.Valid() {
					return fmt.Errorf("unknown tier %q", args[0])
				}
				tiers = []plans.Tier{t}
			}

			title := cases.Title(language.English)
			out := make(map[string]planView, len(tiers))
			for _, t := range tiers {
				l := plans.GetLimits(t)
				out[string(t)] = planView{
					Name:                 title.String(string(t)),
					WebsiteLimit:         l.WebsiteLimit,
					AnalyticsHistoryDays: l.AnalyticsHistoryDays,
					Webhooks:             l.WebhooksEnabled,
					WhiteLabel:           l.WhiteLabel,
					Customization:        string(l.Customization),
					Support:              string(l.Support),
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}
