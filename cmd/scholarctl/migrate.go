package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/scholarhub-api/pkg/config"
	"github.com/noah-isme/scholarhub-api/pkg/database"
	"github.com/noah-isme/scholarhub-api/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrations, err := database.Migrations()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if list {
				for _, m := range migrations {
					fmt.Fprintln(out, m.Version)
				}
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close() //nolint:errcheck

			applied, err := database.Migrate(cmd.Context(), db, migrations, logr)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			fmt.Fprintf(out, "applied %d migrations\n", len(applied))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print bundled migration versions and exit")
	return cmd
}
