package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/repository"
	"github.com/noah-isme/scholarhub-api/pkg/config"
	"github.com/noah-isme/scholarhub-api/pkg/database"
	"github.com/noah-isme/scholarhub-api/pkg/logger"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Maintain refresh tokens",
	}
	cmd.AddCommand(newTokensPurgeCmd())
	return cmd
}

func newTokensPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete refresh tokens that expired or were revoked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
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

			cutoff := time.Now().UTC().Add(-olderThan)
			removed, err := repository.NewUserRepository(db).PurgeRefreshTokens(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			logr.Info("refresh tokens purged", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d refresh tokens\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only purge tokens that lapsed at least this long ago")
	return cmd
}
