package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/posguard/internal/app"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate needs storage.driver=postgres (got %q)", c.cfg.Storage.Driver)
			}
			a, err := c.build(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s, skipped %s (%s)\n",
				humanize.Comma(int64(len(res.Applied))), humanize.Comma(int64(len(res.Skipped))), res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
