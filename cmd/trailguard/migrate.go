package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/trailguard/app"
	"github.com/upb/trailguard/config"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the incident schema (postgres backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if c.cfg.Store.Backend != config.BackendPostgres {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing to migrate for the %s backend\n", c.cfg.Store.Backend)
				return nil
			}

			deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer deps.Close(ctx)

			if err := deps.DB.InitSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
