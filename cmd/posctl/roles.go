package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/posguard/internal/rbac"
)

func newRolesCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Print the effective permissions of every role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := rbac.Default()
			if p := strings.TrimSpace(c.cfg.RBAC.MatrixPath); p != "" {
				m, err := rbac.LoadMatrix(p)
				if err != nil {
					return err
				}
				if res, err = rbac.NewResolver(m); err != nil {
					return err
				}
			}
			return printRoles(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text | yaml")
	return cmd
}

func printRoles(w io.Writer, res *rbac.Resolver, format string) error {
	switch format {
	case "yaml":
		out := make(map[string][]string, len(rbac.Roles()))
		for _, r := range rbac.Roles() {
			out[r.String()] = res.Resolve(r).Strings()
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROLE\tPERMISSIONS\tCOUNT")
		for _, r := range rbac.Roles() {
			set := res.Resolve(r)
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r, strings.Join(set.Strings(), ","), set.Len())
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
