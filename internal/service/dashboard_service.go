package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

const adminDashboardCacheKey = "dash:admin"

type dashboardScholarshipRepository interface {
	List(ctx context.Context, filter models.ScholarshipFilter) ([]models.Scholarship, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type catalogRunner interface {
	Run(ctx context.Context, q models.CatalogQuery) (query.Result, error)
	Engine(ctx context.Context) (*query.Engine, error)
}

type accountCounter interface {
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type studentProfileReader interface {
	Get(ctx context.Context, userID string) (*models.StudentProfile, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	UrgentLimit int
	MatchLimit  int
}

// DashboardService orchestrates composition of dashboard payloads.
type DashboardService struct {
	scholarships dashboardScholarshipRepository
	catalog      catalogRunner
	profiles     studentProfileReader
	accounts     accountCounter
	metrics      *MetricsService
	cache        *CacheService
	logger       *zap.Logger
	cfg          DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Scholarships dashboardScholarshipRepository
	Catalog      catalogRunner
	Profiles     studentProfileReader
	Accounts     accountCounter
	Metrics      *MetricsService
	Cache        *CacheService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.UrgentLimit <= 0 {
		cfg.UrgentLimit = 5
	}
	if cfg.MatchLimit <= 0 {
		cfg.MatchLimit = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		scholarships: params.Scholarships,
		catalog:      params.Catalog,
		profiles:     params.Profiles,
		accounts:     params.Accounts,
		metrics:      params.Metrics,
		cache:        params.Cache,
		logger:       logger,
		cfg:          cfg,
	}
}

// Admin returns the admin dashboard summary and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	return Remember(ctx, s.cache, adminDashboardCacheKey, s.cfg.CacheTTL, s.composeAdminSummary)
}

// Student returns the personalised dashboard for userID. Non-empty fields of
// overrides replace the values derived from the student profile.
func (s *DashboardService) Student(ctx context.Context, userID string, overrides models.CatalogQuery) (*dto.StudentDashboardResponse, bool, error) {
	if userID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "userId is required")
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	applied := studentQuery(profile, overrides)

	cacheKey := HashKey(fmt.Sprintf("dash:student:%s", userID), applied)
	var cached dto.StudentDashboardResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	result, err := s.catalog.Run(ctx, applied)
	if err != nil {
		return nil, false, err
	}
	engine, err := s.catalog.Engine(ctx)
	if err != nil {
		return nil, false, err
	}

	matches := result.Items
	if len(matches) > s.cfg.MatchLimit {
		matches = matches[:s.cfg.MatchLimit]
	}
	summary := &dto.StudentDashboardResponse{
		Profile:     profile,
		Applied:     applied,
		Stats:       result.Stats,
		Matches:     matches,
		Urgent:      s.urgentDeadlines(result.Items, engine),
		GeneratedAt: engine.Now().UTC(),
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

func (s *DashboardService) composeAdminSummary(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	records, err := s.scholarships.List(ctx, models.ScholarshipFilter{Status: "all"})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scholarships")
	}
	published, err := s.scholarships.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count scholarships")
	}
	engine, err := s.catalog.Engine(ctx)
	if err != nil {
		return nil, err
	}

	byDeadline, err := engine.FilterAndSort(records, query.Spec{SortBy: query.SortByDeadline})
	if err != nil {
		return nil, invalidInput(err)
	}
	byAmount, err := engine.FilterAndSort(records, query.Spec{SortBy: query.SortByAmount, Order: query.Descending})
	if err != nil {
		return nil, invalidInput(err)
	}

	now := engine.Now()
	byStatus := make(map[string]int, 4)
	for _, record := range records {
		byStatus[string(query.DisplayStatus(record, now))]++
	}
	for status, count := range published {
		byStatus["published_"+status] = count
	}

	top := make([]dto.AmountItem, 0, s.cfg.UrgentLimit)
	for _, record := range byAmount.Items {
		if len(top) == s.cfg.UrgentLimit {
			break
		}
		top = append(top, dto.AmountItem{ID: record.ID, Name: record.Name, Amount: query.ParseAmount(record.Amount)})
	}

	return &dto.AdminDashboardResponse{
		Totals:      byDeadline.Stats,
		ByStatus:    byStatus,
		ByEducation: educationBreakdown(records),
		Urgent:      s.urgentDeadlines(byDeadline.Items, engine),
		TopAmounts:  top,
		Accounts:    s.accountTotals(ctx),
		System:      s.metrics.Snapshot(),
		GeneratedAt: now.UTC(),
	}, nil
}

// accountTotals is best effort; a failed count leaves the section out.
func (s *DashboardService) accountTotals(ctx context.Context) map[string]int {
	if s.accounts == nil {
		return nil
	}
	counts, err := s.accounts.CountByRole(ctx)
	if err != nil {
		s.logger.Warn("failed to count accounts", zap.Error(err))
		return nil
	}
	totals := make(map[string]int, len(counts))
	for role, n := range counts {
		totals[strings.ToLower(string(role))] = n
	}
	return totals
}

// urgentDeadlines keeps active listings inside the engine's urgent window,
// soonest first.
func (s *DashboardService) urgentDeadlines(items []models.Scholarship, engine *query.Engine) []dto.DeadlineItem {
	now := engine.Now()
	urgent := make([]dto.DeadlineItem, 0, s.cfg.UrgentLimit)
	for _, item := range items {
		if item.Status != models.ScholarshipStatusActive || !query.IsUrgent(item, now, engine.UrgentWindow()) {
			continue
		}
		urgent = append(urgent, dto.DeadlineItem{
			ID:                item.ID,
			Name:              item.Name,
			Deadline:          item.ApplicationEndDate,
			DaysUntilDeadline: query.DaysUntilDeadline(item, now),
		})
	}
	sort.SliceStable(urgent, func(i, j int) bool {
		return urgent[i].DaysUntilDeadline < urgent[j].DaysUntilDeadline
	})
	if len(urgent) > s.cfg.UrgentLimit {
		urgent = urgent[:s.cfg.UrgentLimit]
	}
	return urgent
}

func (s *DashboardService) loadProfile(ctx context.Context, userID string) (*models.StudentProfile, error) {
	if s.profiles == nil {
		return nil, nil
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func studentQuery(profile *models.StudentProfile, overrides models.CatalogQuery) models.CatalogQuery {
	applied := overrides
	applied.Status = string(models.ScholarshipStatusActive)
	if applied.SortBy == "" {
		applied.SortBy = string(query.SortByDeadline)
	}
	if profile == nil {
		return applied
	}
	if strings.TrimSpace(applied.EducationLevel) == "" {
		applied.EducationLevel = profile.EducationLevel
	}
	if strings.TrimSpace(applied.Gender) == "" {
		applied.Gender = profile.Gender
	}
	if len(applied.Communities) == 0 && profile.Community != nil && *profile.Community != "" {
		applied.Communities = []string{*profile.Community}
	}
	return applied
}

func educationBreakdown(records []models.Scholarship) []dto.EducationBucket {
	counts := make(map[string]int)
	for _, record := range records {
		counts[record.EducationLevel]++
	}
	buckets := make([]dto.EducationBucket, 0, len(counts))
	for _, level := range models.EducationLevels {
		if count, ok := counts[level]; ok {
			buckets = append(buckets, dto.EducationBucket{EducationLevel: level, Count: count})
			delete(counts, level)
		}
	}
	rest := make([]string, 0, len(counts))
	for level := range counts {
		rest = append(rest, level)
	}
	sort.Strings(rest)
	for _, level := range rest {
		buckets = append(buckets, dto.EducationBucket{EducationLevel: level, Count: counts[level]})
	}
	return buckets
}
