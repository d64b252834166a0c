package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/repository"
	"github.com/noah-isme/scholarhub-api/internal/service"
	"github.com/noah-isme/scholarhub-api/pkg/config"
	"github.com/noah-isme/scholarhub-api/pkg/database"
	"github.com/noah-isme/scholarhub-api/pkg/logger"
)

type seedOptions struct {
	file   string
	dryRun bool
}

func newSeedCmd() *cobra.Command {
	opts := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert scholarship fixtures into the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "fixtures file (defaults to SEED_FIXTURES_PATH)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "parse fixtures without writing")
	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := opts.file
	if path == "" {
		path = cfg.Seed.FixturesPath
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close() //nolint:errcheck

	records, err := service.LoadFixtures(f)
	if err != nil {
		return err
	}
	if opts.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "parsed %d scholarships from %s\n", len(records), path)
		return nil
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

	seeder := service.NewSeedService(repository.NewScholarshipRepository(db), nil, logr)
	count, err := seeder.Seed(cmd.Context(), records)
	if err != nil {
		logr.Error("seed failed", zap.String("file", path), zap.Error(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d scholarships\n", count)
	return nil
}
