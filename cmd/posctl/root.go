package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/posguard/internal/app"
	"github.com/dropDatabas3/posguard/internal/config"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// cli guarda flags globales y la config ya cargada.
type cli struct {
	cfgFile string
	envFile string
	verbose bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "posctl",
		Short: "POS admin access-control operations",
		Long: `posctl runs maintenance tasks against the posguard store.

Example usage:
  posctl migrate                         # apply pending Postgres migrations
  posctl invitations sweep               # expire overdue invitations
  posctl sessions purge                  # delete expired sessions
  posctl roles --format yaml             # print effective permissions
  posctl bootstrap-admin --email a@b.c   # create the first super_admin`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file (default: defaults + env)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "env file loaded before config; missing file is ignored")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMigrateCmd(c),
		newInvitationsCmd(c),
		newSessionsCmd(c),
		newRolesCmd(c),
		newBootstrapAdminCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	_ = godotenv.Load(c.envFile)
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: level, Service: "posctl", Version: version})
	c.cfg = cfg
	cmd.SetContext(logger.ToContext(cmd.Context(), logger.L()))
	return nil
}

// build arma el contenedor sin capa HTTP.
func (c *cli) build(ctx context.Context, opts app.Options) (*app.App, error) {
	opts.WithoutHTTP = true
	return app.Build(ctx, c.cfg, opts)
}
