package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type settingsRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, cfg *models.Setting) error
	BulkUpsert(ctx context.Context, cfgs []models.Setting) error
	Delete(ctx context.Context, key string) (bool, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type allowedSetting struct {
	Key         string
	Type        models.SettingType
	Description string
	Min, Max    int
	check       func(string) error
}

var allowedSettingKeys = []string{
	models.SettingSiteDisplayName,
	models.SettingDefaultSortBy,
	models.SettingDefaultSortOrder,
	models.SettingUrgentWindowDays,
	models.SettingMaxAmountFilter,
	models.SettingEnableExportsUI,
}

var allowedSettings = map[string]allowedSetting{
	models.SettingSiteDisplayName: {
		Key:         models.SettingSiteDisplayName,
		Type:        models.SettingTypeString,
		Description: "Display name shown in the site header",
	},
	models.SettingDefaultSortBy: {
		Key:         models.SettingDefaultSortBy,
		Type:        models.SettingTypeString,
		Description: "Catalog sort key used when a request names none",
		check: func(v string) error {
			_, err := query.ParseSortKey(v)
			return err
		},
	},
	models.SettingDefaultSortOrder: {
		Key:         models.SettingDefaultSortOrder,
		Type:        models.SettingTypeString,
		Description: "Catalog sort direction used when a request names none; empty keeps the key default",
		check: func(v string) error {
			_, err := query.ParseSortOrder(v)
			return err
		},
	},
	models.SettingUrgentWindowDays: {
		Key:         models.SettingUrgentWindowDays,
		Type:        models.SettingTypeInteger,
		Description: "Days ahead of a deadline that count as urgent on dashboards",
		Min:         1,
		Max:         365,
	},
	models.SettingMaxAmountFilter: {
		Key:         models.SettingMaxAmountFilter,
		Type:        models.SettingTypeInteger,
		Description: "Upper bound of the catalog amount slider",
		Min:         1,
		Max:         100000000,
	},
	models.SettingEnableExportsUI: {
		Key:         models.SettingEnableExportsUI,
		Type:        models.SettingTypeBoolean,
		Description: "Toggle to show/hide the exports menu in the admin console",
	},
}

var builtinSettingDefaults = map[string]string{
	models.SettingSiteDisplayName:  "ScholarHub",
	models.SettingDefaultSortBy:    string(query.SortByCreatedAt),
	models.SettingUrgentWindowDays: strconv.Itoa(query.UrgentWindowDays),
	models.SettingMaxAmountFilter:  strconv.Itoa(query.DefaultMaxAmount),
	models.SettingEnableExportsUI:  "false",
}

// SettingsServiceConfig tunes runtime behaviour.
type SettingsServiceConfig struct {
	Defaults map[string]string
}

// CatalogSettings is the subset of settings that shapes engine runs.
type CatalogSettings struct {
	SortBy       query.SortKey
	Order        query.SortOrder
	UrgentWindow int
	MaxAmount    float64
}

// EngineOptions converts the settings into query engine options.
func (c CatalogSettings) EngineOptions() []query.Option {
	return []query.Option{
		query.WithDefaultSort(c.SortBy, c.Order),
		query.WithUrgentWindow(c.UrgentWindow),
		query.WithMaxAmount(c.MaxAmount),
	}
}

// SettingsService orchestrates CRUD workflow for site settings.
type SettingsService struct {
	repo      settingsRepository
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg SettingsServiceConfig) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(builtinSettingDefaults))
	for key, value := range builtinSettingDefaults {
		defaults[key] = value
	}
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	return &SettingsService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
	}
}

// List returns every known setting, falling back to defaults for unset keys.
func (s *SettingsService) List(ctx context.Context) ([]dto.SettingItem, error) {
	values, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SettingItem, 0, len(allowedSettingKeys))
	for _, key := range allowedSettingKeys {
		meta := allowedSettings[key]
		items = append(items, dto.SettingItem{
			Key:         key,
			Value:       values[key],
			Type:        string(meta.Type),
			Description: meta.Description,
		})
	}
	return items, nil
}

// Get retrieves a single setting.
func (s *SettingsService) Get(ctx context.Context, key string) (*dto.SettingItem, error) {
	meta, err := requireAllowedSetting(key)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if def, ok := s.defaults[key]; ok {
				return &dto.SettingItem{Key: key, Value: def, Type: string(meta.Type), Description: meta.Description}, nil
			}
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get setting")
	}
	return &dto.SettingItem{Key: cfg.Key, Value: cfg.Value, Type: string(cfg.Type), Description: meta.Description}, nil
}

// Update upserts a setting entry.
func (s *SettingsService) Update(ctx context.Context, key, value string, actor *models.JWTClaims) (*dto.SettingItem, error) {
	meta, err := requireAllowedSetting(key)
	if err != nil {
		return nil, err
	}
	value, err = validateSettingValue(meta, value)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch setting")
	}

	cfg := &models.Setting{
		Key:         key,
		Value:       value,
		Type:        meta.Type,
		Description: strPtr(meta.Description),
		UpdatedBy:   userIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update setting")
	}

	s.emitAudit(ctx, actor, key, prevValue(prev), value)
	s.invalidate(ctx)

	return &dto.SettingItem{Key: key, Value: value, Type: string(meta.Type), Description: meta.Description}, nil
}

// Reset drops the stored value for key so the built-in default applies
// again. Resetting a key that was never stored is a no-op.
func (s *SettingsService) Reset(ctx context.Context, key string, actor *models.JWTClaims) (*dto.SettingItem, error) {
	meta, err := requireAllowedSetting(key)
	if err != nil {
		return nil, err
	}
	prev, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch setting")
	}
	existed, err := s.repo.Delete(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset setting")
	}

	def := s.defaults[key]
	if existed {
		s.emitAudit(ctx, actor, key, prevValue(prev), def)
		s.invalidate(ctx)
	}
	return &dto.SettingItem{Key: key, Value: def, Type: string(meta.Type), Description: meta.Description}, nil
}

// BulkUpdate validates every item first and then applies them in one write.
func (s *SettingsService) BulkUpdate(ctx context.Context, req dto.BulkUpdateSettingsRequest, actor *models.JWTClaims) ([]dto.SettingItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	keys := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		keys = append(keys, item.Key)
	}
	existing, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing settings")
	}
	existingMap := make(map[string]models.Setting, len(existing))
	for _, cfg := range existing {
		existingMap[cfg.Key] = cfg
	}

	toUpsert := make([]models.Setting, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := requireAllowedSetting(item.Key)
		if err != nil {
			return nil, err
		}
		normalized, err := validateSettingValue(meta, item.Value)
		if err != nil {
			return nil, err
		}
		toUpsert = append(toUpsert, models.Setting{
			Key:         item.Key,
			Value:       normalized,
			Type:        meta.Type,
			Description: strPtr(meta.Description),
			UpdatedBy:   userIDPtr(actor),
		})
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk update settings")
	}

	result := make([]dto.SettingItem, 0, len(toUpsert))
	for _, cfg := range toUpsert {
		result = append(result, dto.SettingItem{
			Key:         cfg.Key,
			Value:       cfg.Value,
			Type:        string(cfg.Type),
			Description: allowedSettings[cfg.Key].Description,
		})
		prev := existingMap[cfg.Key]
		s.emitAudit(ctx, actor, cfg.Key, prevValue(&prev), cfg.Value)
	}
	s.invalidate(ctx)
	return result, nil
}

// Catalog resolves the settings that feed the query engine. Stored values
// that no longer parse fall back to the defaults.
func (s *SettingsService) Catalog(ctx context.Context) (CatalogSettings, error) {
	values, err := s.load(ctx)
	if err != nil {
		return CatalogSettings{}, err
	}
	out := CatalogSettings{
		SortBy:       query.SortByCreatedAt,
		UrgentWindow: query.UrgentWindowDays,
		MaxAmount:    query.DefaultMaxAmount,
	}
	if key, err := query.ParseSortKey(values[models.SettingDefaultSortBy]); err == nil && key != "" {
		out.SortBy = key
	}
	if order, err := query.ParseSortOrder(values[models.SettingDefaultSortOrder]); err == nil {
		out.Order = order
	}
	if days, err := strconv.Atoi(values[models.SettingUrgentWindowDays]); err == nil && days > 0 {
		out.UrgentWindow = days
	}
	if max, err := strconv.ParseFloat(values[models.SettingMaxAmountFilter], 64); err == nil && max > 0 {
		out.MaxAmount = max
	}
	return out, nil
}

// ExportsEnabled reports the enable_exports_ui toggle.
func (s *SettingsService) ExportsEnabled(ctx context.Context) (bool, error) {
	values, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return values[models.SettingEnableExportsUI] == "true", nil
}

func (s *SettingsService) load(ctx context.Context) (map[string]string, error) {
	rows, err := s.repo.ListByKeys(ctx, allowedSettingKeys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	values := make(map[string]string, len(allowedSettingKeys))
	for key, value := range s.defaults {
		values[key] = value
	}
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

func (s *SettingsService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{catalogCachePattern, dashboardCachePattern} {
		_ = s.cache.Invalidate(ctx, pattern)
	}
}

func (s *SettingsService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	oldBytes, _ := json.Marshal(map[string]string{"key": key, "value": oldValue})
	newBytes, _ := json.Marshal(map[string]string{"key": key, "value": newValue})
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionSettingsUpdate,
		Resource:   "setting",
		ResourceID: &key,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "settings-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record settings audit", zap.Error(err))
	}
}

func requireAllowedSetting(key string) (allowedSetting, error) {
	meta, ok := allowedSettings[key]
	if !ok {
		return allowedSetting{}, appErrors.Clone(appErrors.ErrValidation, "unsupported setting key")
	}
	return meta, nil
}

func validateSettingValue(meta allowedSetting, value string) (string, error) {
	value, err := meta.Type.Normalize(value)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s %v", meta.Key, err))
	}
	switch {
	case meta.Type == models.SettingTypeInteger:
		n, _ := strconv.Atoi(value)
		if n < meta.Min || n > meta.Max {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be between %d and %d", meta.Key, meta.Min, meta.Max))
		}
	case meta.check != nil:
		if err := meta.check(value); err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: %v", meta.Key, err))
		}
	}
	return value, nil
}

func prevValue(cfg *models.Setting) string {
	if cfg == nil {
		return ""
	}
	return cfg.Value
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}
