package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/posguard/internal/app"
)

func newInvitationsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invitations",
		Short: "Invitation maintenance",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "sweep",
			Short: "Mark overdue pending invitations as expired",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := c.build(cmd.Context(), app.Options{})
				if err != nil {
					return err
				}
				defer a.Close()
				n, err := a.Invitations.SweepExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d invitation(s)\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Delete expired and cancelled invitations past retention",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := c.build(cmd.Context(), app.Options{})
				if err != nil {
					return err
				}
				defer a.Close()
				n, err := a.Invitations.CleanupStale(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d invitation(s)\n", n)
				return nil
			},
		},
	)
	return cmd
}

func newSessionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.build(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Sessions.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d session(s)\n", n)
			return nil
		},
	})
	return cmd
}
