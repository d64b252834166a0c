package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	"github.com/noah-isme/scholarhub-api/internal/service"
)

type queryOptions struct {
	file   string
	q      models.CatalogQuery
	min    float64
	max    float64
	now    string
	locale string
}

func newQueryCmd() *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filter and sort a fixtures file offline and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("min-amount") {
				opts.q.MinAmount = &opts.min
			}
			if cmd.Flags().Changed("max-amount") {
				opts.q.MaxAmount = &opts.max
			}
			return runQuery(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "fixtures/scholarships.yaml", "fixtures file")
	flags.StringVar(&opts.q.Search, "search", "", "case-insensitive search over name, description, eligibility and community")
	flags.StringVar(&opts.q.EducationLevel, "education", "", "education level, \"All Levels\" matches everything")
	flags.Float64Var(&opts.min, "min-amount", 0, "minimum amount")
	flags.Float64Var(&opts.max, "max-amount", 0, "maximum amount")
	flags.StringVar(&opts.q.DeadlineFrom, "deadline-from", "", "earliest deadline (YYYY-MM-DD)")
	flags.StringVar(&opts.q.DeadlineTo, "deadline-to", "", "latest deadline (YYYY-MM-DD)")
	flags.StringSliceVar(&opts.q.Communities, "community", nil, "community tags, any match")
	flags.StringVar(&opts.q.Gender, "gender", "", "gender requirement")
	flags.StringVar(&opts.q.SortBy, "sort", "", "name, amount, deadline or createdAt")
	flags.StringVar(&opts.q.Order, "order", "", "asc or desc")
	flags.StringVar(&opts.q.Status, "status", string(models.ScholarshipStatusActive), "active, inactive or all")
	flags.StringVar(&opts.now, "now", "", "evaluate urgency as of this date (YYYY-MM-DD)")
	flags.StringVar(&opts.locale, "locale", "en", "collation locale for name sorting")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *queryOptions) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close() //nolint:errcheck

	records, err := service.LoadFixtures(f)
	if err != nil {
		return err
	}
	spec, err := query.FromCatalogQuery(opts.q)
	if err != nil {
		return err
	}

	engineOpts := []query.Option{}
	if tag, err := language.Parse(opts.locale); err == nil {
		engineOpts = append(engineOpts, query.WithLocale(tag))
	}
	if opts.now != "" {
		now, ok := query.ParseDeadline(opts.now)
		if !ok {
			return fmt.Errorf("%w: --now must be a date (YYYY-MM-DD)", query.ErrInvalidInput)
		}
		engineOpts = append(engineOpts, query.WithClock(func() time.Time { return now }))
	}

	result, err := query.NewEngine(engineOpts...).FilterAndSort(byStatus(records, opts.q.Status), spec)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// byStatus mirrors the repository pre-filter for offline runs.
func byStatus(records []models.Scholarship, status string) []models.Scholarship {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" || status == "all" {
		return records
	}
	out := make([]models.Scholarship, 0, len(records))
	for _, r := range records {
		if string(r.Status) == status {
			out = append(out, r)
		}
	}
	return out
}
