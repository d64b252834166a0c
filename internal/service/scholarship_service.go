package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

const (
	catalogCachePrefix    = "catalog"
	catalogCachePattern   = "catalog:*"
	dashboardCachePattern = "dash:*"
)

type scholarshipRepository interface {
	List(ctx context.Context, filter models.ScholarshipFilter) ([]models.Scholarship, error)
	FindByID(ctx context.Context, id string) (*models.Scholarship, error)
	Create(ctx context.Context, item *models.Scholarship) error
	Update(ctx context.Context, item *models.Scholarship) error
	Delete(ctx context.Context, id string) error
	BulkUpsert(ctx context.Context, items []models.Scholarship) error
}

type catalogSettingsProvider interface {
	Catalog(ctx context.Context) (CatalogSettings, error)
}

// ScholarshipServiceConfig tunes catalog behaviour.
type ScholarshipServiceConfig struct {
	CacheTTL time.Duration
	Locale   language.Tag
	PageSize int
}

// CatalogPage is one page of a catalog query together with stats over the
// whole filtered set.
type CatalogPage struct {
	Items      []models.Scholarship `json:"items"`
	Stats      query.Stats          `json:"stats"`
	Pagination *models.Pagination   `json:"pagination"`
}

// ScholarshipService runs catalog queries and manages listings.
type ScholarshipService struct {
	repo      scholarshipRepository
	settings  catalogSettingsProvider
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       ScholarshipServiceConfig
}

// ScholarshipServiceParams groups constructor dependencies.
type ScholarshipServiceParams struct {
	Repo      scholarshipRepository
	Settings  catalogSettingsProvider
	Audit     auditLogger
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Now       func() time.Time
	Config    ScholarshipServiceConfig
}

// NewScholarshipService constructs a ScholarshipService.
func NewScholarshipService(params ScholarshipServiceParams) *ScholarshipService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Config.PageSize <= 0 {
		params.Config.PageSize = 20
	}
	if params.Config.Locale == language.Und {
		params.Config.Locale = language.English
	}
	return &ScholarshipService{
		repo:      params.Repo,
		settings:  params.Settings,
		audit:     params.Audit,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: params.Validator,
		logger:    params.Logger,
		now:       params.Now,
		cfg:       params.Config,
	}
}

// Query runs a catalog request through the repository pre-filter and the
// query engine and returns the requested page. The boolean reports a cache hit.
func (s *ScholarshipService) Query(ctx context.Context, req dto.CatalogRequest) (*CatalogPage, bool, error) {
	page, limit := s.paging(req.Page, req.Limit)
	req.Page, req.Limit = page, limit
	if strings.TrimSpace(req.Status) == "" {
		req.Status = string(models.ScholarshipStatusActive)
	}

	key := HashKey(catalogCachePrefix, req)
	return Remember(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) (*CatalogPage, error) {
		result, err := s.Run(ctx, req.CatalogQuery)
		if err != nil {
			return nil, err
		}
		return &CatalogPage{
			Items: paginate(result.Items, page, limit),
			Stats: result.Stats,
			Pagination: &models.Pagination{
				Page:       page,
				PageSize:   limit,
				TotalCount: len(result.Items),
			},
		}, nil
	})
}

// Stats returns aggregate statistics over the filtered catalog.
func (s *ScholarshipService) Stats(ctx context.Context, q models.CatalogQuery) (query.Stats, error) {
	if strings.TrimSpace(q.Status) == "" {
		q.Status = string(models.ScholarshipStatusActive)
	}
	result, err := s.Run(ctx, q)
	if err != nil {
		return query.Stats{}, err
	}
	return result.Stats, nil
}

// Run evaluates q over every stored listing without paging or caching. An
// empty status includes every listing.
func (s *ScholarshipService) Run(ctx context.Context, q models.CatalogQuery) (query.Result, error) {
	spec, err := query.FromCatalogQuery(q)
	if err != nil {
		return query.Result{}, invalidInput(err)
	}

	records, err := s.repo.List(ctx, models.ScholarshipFilter{
		EducationLevel: spec.EducationLevel,
		Status:         q.Status,
		Search:         spec.Search,
	})
	if err != nil {
		return query.Result{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scholarships")
	}

	engine, err := s.Engine(ctx)
	if err != nil {
		return query.Result{}, err
	}

	start := time.Now()
	result, err := engine.FilterAndSort(records, spec)
	if err != nil {
		return query.Result{}, invalidInput(err)
	}
	s.metrics.ObserveCatalogQuery(time.Since(start), len(result.Items))
	return result, nil
}

// Engine builds a query engine configured from the current site settings.
func (s *ScholarshipService) Engine(ctx context.Context) (*query.Engine, error) {
	opts := []query.Option{query.WithClock(s.now), query.WithLocale(s.cfg.Locale)}
	if s.settings != nil {
		settings, err := s.settings.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, settings.EngineOptions()...)
	}
	return query.NewEngine(opts...), nil
}

// Get returns a listing decorated with its display fields.
func (s *ScholarshipService) Get(ctx context.Context, id string) (*dto.ScholarshipDetail, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, *item), nil
}

// Create validates and stores a new listing.
func (s *ScholarshipService) Create(ctx context.Context, req dto.ScholarshipRequest, actor *models.JWTClaims) (*models.Scholarship, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	item := &models.Scholarship{ID: uuid.NewString(), CreatedBy: userIDPtr(actor)}
	applyScholarshipRequest(item, req)

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scholarship")
	}

	s.recordAudit(ctx, actor, models.AuditActionScholarshipCreate, item.ID, nil, item)
	s.invalidate(ctx)
	return item, nil
}

// Update replaces the editable fields of a listing.
func (s *ScholarshipService) Update(ctx context.Context, id string, req dto.ScholarshipRequest, actor *models.JWTClaims) (*models.Scholarship, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *item
	applyScholarshipRequest(item, req)

	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update scholarship")
	}

	s.recordAudit(ctx, actor, models.AuditActionScholarshipUpdate, item.ID, &before, item)
	s.invalidate(ctx)
	return item, nil
}

// Delete removes a listing.
func (s *ScholarshipService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	item, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete scholarship")
	}
	s.recordAudit(ctx, actor, models.AuditActionScholarshipDelete, id, item, nil)
	s.invalidate(ctx)
	return nil
}

// Import normalises a loosely typed JSON array and upserts every record.
// Records without an id receive a new one.
func (s *ScholarshipService) Import(ctx context.Context, raw []byte, actor *models.JWTClaims) (*dto.ImportResult, error) {
	records, err := query.Normalize(raw)
	if err != nil {
		return nil, invalidInput(err)
	}
	if len(records) == 0 {
		return &dto.ImportResult{IDs: []string{}}, nil
	}

	ids := make([]string, 0, len(records))
	for i := range records {
		if strings.TrimSpace(records[i].Name) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "every imported scholarship needs a name")
		}
		if _, err := uuid.Parse(records[i].ID); err != nil {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedBy == nil {
			records[i].CreatedBy = userIDPtr(actor)
		}
		ids = append(ids, records[i].ID)
	}

	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import scholarships")
	}

	s.recordAudit(ctx, actor, models.AuditActionScholarshipImport, "", nil, map[string]interface{}{"count": len(ids)})
	s.invalidate(ctx)
	return &dto.ImportResult{Imported: len(ids), IDs: ids}, nil
}

func (s *ScholarshipService) find(ctx context.Context, id string) (*models.Scholarship, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scholarship")
	}
	return item, nil
}

func (s *ScholarshipService) detail(ctx context.Context, item models.Scholarship) *dto.ScholarshipDetail {
	now := s.now()
	window := query.UrgentWindowDays
	if s.settings != nil {
		if settings, err := s.settings.Catalog(ctx); err == nil {
			window = settings.UrgentWindow
		}
	}
	return &dto.ScholarshipDetail{
		Scholarship:       item,
		EligibilityItems:  query.EligibilityItems(item.Eligibility),
		DisplayStatus:     query.DisplayStatus(item, now),
		DaysUntilDeadline: query.DaysUntilDeadline(item, now),
		Urgent:            query.IsUrgent(item, now, window),
	}
}

func (s *ScholarshipService) validate(req dto.ScholarshipRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scholarship payload")
	}
	if !models.IsEducationLevel(req.EducationLevel) {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported education level")
	}
	if query.ParseAmount(req.Amount) <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "amount must be a positive number")
	}
	if _, ok := query.ParseDeadline(req.ApplicationEndDate); !ok {
		return appErrors.Clone(appErrors.ErrValidation, "applicationEndDate must be a date (YYYY-MM-DD)")
	}
	return nil
}

func (s *ScholarshipService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:    userIDPtr(actor),
		Action:    action,
		Resource:  "scholarship",
		IPAddress: "system",
		UserAgent: "scholarship-service",
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if oldValue != nil {
		log.OldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		log.NewValues, _ = json.Marshal(newValue)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record scholarship audit", zap.String("action", action), zap.Error(err))
	}
}

func (s *ScholarshipService) invalidate(ctx context.Context) {
	for _, pattern := range []string{catalogCachePattern, dashboardCachePattern} {
		_ = s.cache.Invalidate(ctx, pattern)
	}
}

func (s *ScholarshipService) paging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.cfg.PageSize
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func applyScholarshipRequest(item *models.Scholarship, req dto.ScholarshipRequest) {
	item.Name = strings.TrimSpace(req.Name)
	item.Description = query.PlainText(req.Description)
	item.Amount = strings.TrimSpace(req.Amount)
	item.EducationLevel = req.EducationLevel
	item.ApplicationEndDate = strings.TrimSpace(req.ApplicationEndDate)
	item.Eligibility = query.PlainText(req.Eligibility)
	item.Community = trimmedPtr(req.Community)
	item.GenderRequirement = req.GenderRequirement
	if item.GenderRequirement == "" {
		item.GenderRequirement = models.GenderAll
	}
	item.Status = models.ScholarshipStatus(req.Status)
	if item.Status == "" {
		item.Status = models.ScholarshipStatusActive
	}
	item.OrganizationLogo = trimmedPtr(req.OrganizationLogo)
	item.ApplicationLink = trimmedPtr(req.ApplicationLink)
}

// paginate returns the 1-based page of items. Pages past the end are empty;
// the page count is checked before multiplying so huge page numbers cannot
// overflow into a negative offset.
func paginate(items []models.Scholarship, page, limit int) []models.Scholarship {
	if page < 1 || limit <= 0 {
		return []models.Scholarship{}
	}
	pages := (len(items) + limit - 1) / limit
	if page-1 >= pages {
		return []models.Scholarship{}
	}
	start := (page - 1) * limit
	end := min(start+limit, len(items))
	return items[start:end]
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return strPtr(strings.TrimSpace(*value))
}

func invalidInput(err error) error {
	if errors.Is(err, query.ErrInvalidInput) {
		return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, err.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate catalog query")
}
