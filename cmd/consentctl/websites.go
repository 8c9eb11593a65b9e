package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"consent-app/internal/domain/websites"
	"consent-app/internal/optimistic"
)

func newWebsitesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "websites",
		Short: "List and update websites",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your websites",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := opts.session(cmd.Context(), cmd)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tSTATUS")
				for _, site := range s.Websites() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", site.ID, site.Name, site.Domain, site.Status)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if !s.CanAddWebsite() {
					fmt.Fprintf(cmd.OutOrStdout(), "\nWebsite limit of the %s plan reached.\n", s.Account().Plan)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-status <id> <active|inactive>",
			Short: "Activate or deactivate a website",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !websites.ValidStatus(args[1]) {
					return fmt.Errorf("status must be %s or %s", websites.StatusActive, websites.StatusInactive)
				}
				s, err := opts.session(cmd.Context(), cmd)
				if err != nil {
					return err
				}
				if site, ok := s.Website(args[0]); ok && site.Status == args[1] {
					fmt.Fprintf(cmd.OutOrStdout(), "website %s is already %s\n", args[0], args[1])
					return nil
				}
				return report(cmd, s.SetWebsiteStatus(cmd.Context(), args[0], args[1]), "website %s is now %s", args[0], args[1])
			},
		},
	)
	return cmd
}

// report prints the success line, or turns a failed update into a short
// error. The notifier has already printed the details of a remote failure.
func report(cmd *cobra.Command, err error, format string, args ...any) error {
	switch {
	case err == nil:
		fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
		return nil
	case errors.Is(err, optimistic.ErrNotFound):
		return fmt.Errorf("no such id")
	case errors.Is(err, optimistic.ErrRemoteFailure):
		return errors.New("update rejected")
	default:
		return err
	}
}
