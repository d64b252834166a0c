package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type settingsRepoStub struct {
	items map[string]models.Setting
	err   error
}

func (s *settingsRepoStub) ListByKeys(_ context.Context, keys []string) ([]models.Setting, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := []models.Setting{}
	for _, key := range keys {
		if cfg, ok := s.items[key]; ok {
			result = append(result, cfg)
		}
	}
	return result, nil
}

func (s *settingsRepoStub) Get(_ context.Context, key string) (*models.Setting, error) {
	if s.err != nil {
		return nil, s.err
	}
	if cfg, ok := s.items[key]; ok {
		return &cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (s *settingsRepoStub) Upsert(_ context.Context, cfg *models.Setting) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]models.Setting)
	}
	s.items[cfg.Key] = *cfg
	return nil
}

func (s *settingsRepoStub) BulkUpsert(_ context.Context, cfgs []models.Setting) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]models.Setting)
	}
	for _, cfg := range cfgs {
		s.items[cfg.Key] = cfg
	}
	return nil
}

func (s *settingsRepoStub) Delete(_ context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.items[key]
	delete(s.items, key)
	return ok, nil
}

func TestSettingsServiceListFallsBackToDefaults(t *testing.T) {
	repo := &settingsRepoStub{items: map[string]models.Setting{
		models.SettingSiteDisplayName: {Key: models.SettingSiteDisplayName, Value: "Campus Funds", Type: models.SettingTypeString},
	}}
	svc := NewSettingsService(repo, nil, nil, nil, zap.NewNop(), SettingsServiceConfig{
		Defaults: map[string]string{models.SettingMaxAmountFilter: "50000"},
	})

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(allowedSettingKeys))

	values := map[string]string{}
	for _, item := range items {
		values[item.Key] = item.Value
	}
	assert.Equal(t, "Campus Funds", values[models.SettingSiteDisplayName])
	assert.Equal(t, "50000", values[models.SettingMaxAmountFilter])
	assert.Equal(t, "7", values[models.SettingUrgentWindowDays])
	assert.Equal(t, "false", values[models.SettingEnableExportsUI])
	assert.Equal(t, "", values[models.SettingDefaultSortOrder])
}

func TestSettingsServiceGet(t *testing.T) {
	svc := NewSettingsService(&settingsRepoStub{}, nil, nil, nil, nil, SettingsServiceConfig{})

	item, err := svc.Get(context.Background(), models.SettingDefaultSortBy)
	require.NoError(t, err)
	assert.Equal(t, "createdAt", item.Value)

	_, err = svc.Get(context.Background(), models.SettingDefaultSortOrder)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "unknown")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSettingsServiceUpdateValidatesValues(t *testing.T) {
	repo := &settingsRepoStub{}
	audit := &auditRecorder{}
	cacheRepo := &stubCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewSettingsService(repo, audit, cache, nil, zap.NewNop(), SettingsServiceConfig{})
	actor := &models.JWTClaims{UserID: "admin-1"}
	ctx := context.Background()

	item, err := svc.Update(ctx, models.SettingDefaultSortBy, " amount ", actor)
	require.NoError(t, err)
	assert.Equal(t, "amount", item.Value)
	assert.Equal(t, []string{catalogCachePattern, dashboardCachePattern}, cacheRepo.invalidated)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSettingsUpdate, audit.logs[0].Action)

	item, err = svc.Update(ctx, models.SettingEnableExportsUI, "TRUE", actor)
	require.NoError(t, err)
	assert.Equal(t, "true", item.Value)

	invalid := map[string]string{
		models.SettingDefaultSortBy:    "popularity",
		models.SettingDefaultSortOrder: "sideways",
		models.SettingUrgentWindowDays: "0",
		models.SettingMaxAmountFilter:  "lots",
		models.SettingEnableExportsUI:  "maybe",
		"school_display_name":          "x",
	}
	for key, value := range invalid {
		_, err := svc.Update(ctx, key, value, actor)
		require.Error(t, err, key)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, key)
	}
}

func TestSettingsServiceResetRestoresDefault(t *testing.T) {
	repo := &settingsRepoStub{items: map[string]models.Setting{
		models.SettingSiteDisplayName: {Key: models.SettingSiteDisplayName, Value: "Campus Funds", Type: models.SettingTypeString},
	}}
	audit := &auditRecorder{}
	cacheRepo := &stubCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewSettingsService(repo, audit, cache, nil, zap.NewNop(), SettingsServiceConfig{})
	actor := &models.JWTClaims{UserID: "admin-1"}

	item, err := svc.Reset(context.Background(), models.SettingSiteDisplayName, actor)
	require.NoError(t, err)
	assert.Equal(t, "ScholarHub", item.Value)
	assert.NotContains(t, repo.items, models.SettingSiteDisplayName)
	require.Len(t, audit.logs, 1)
	assert.JSONEq(t, `{"key":"site_display_name","value":"Campus Funds"}`, string(audit.logs[0].OldValues))
	assert.Len(t, cacheRepo.invalidated, 2)

	_, err = svc.Reset(context.Background(), models.SettingSiteDisplayName, actor)
	require.NoError(t, err)
	assert.Len(t, audit.logs, 1)

	_, err = svc.Reset(context.Background(), "school_display_name", actor)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSettingsServiceBulkUpdate(t *testing.T) {
	repo := &settingsRepoStub{}
	svc := NewSettingsService(repo, nil, nil, nil, nil, SettingsServiceConfig{})
	actor := &models.JWTClaims{UserID: "admin-1"}

	items, err := svc.BulkUpdate(context.Background(), dto.BulkUpdateSettingsRequest{Items: []dto.UpdateSettingRequest{
		{Key: models.SettingUrgentWindowDays, Value: "14"},
		{Key: models.SettingDefaultSortOrder, Value: "asc"},
	}}, actor)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "14", repo.items[models.SettingUrgentWindowDays].Value)

	_, err = svc.BulkUpdate(context.Background(), dto.BulkUpdateSettingsRequest{Items: []dto.UpdateSettingRequest{
		{Key: models.SettingUrgentWindowDays, Value: "3"},
		{Key: models.SettingMaxAmountFilter, Value: "-1"},
	}}, actor)
	require.Error(t, err)
	assert.Equal(t, "14", repo.items[models.SettingUrgentWindowDays].Value, "nothing is written when one item fails")

	_, err = svc.BulkUpdate(context.Background(), dto.BulkUpdateSettingsRequest{}, actor)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.BulkUpdate(context.Background(), dto.BulkUpdateSettingsRequest{Items: []dto.UpdateSettingRequest{{Key: models.SettingUrgentWindowDays, Value: "3"}}}, nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestSettingsServiceCatalog(t *testing.T) {
	repo := &settingsRepoStub{items: map[string]models.Setting{
		models.SettingDefaultSortBy:    {Key: models.SettingDefaultSortBy, Value: "deadline"},
		models.SettingDefaultSortOrder: {Key: models.SettingDefaultSortOrder, Value: "desc"},
		models.SettingUrgentWindowDays: {Key: models.SettingUrgentWindowDays, Value: "not-a-number"},
		models.SettingMaxAmountFilter:  {Key: models.SettingMaxAmountFilter, Value: "25000"},
	}}
	svc := NewSettingsService(repo, nil, nil, nil, nil, SettingsServiceConfig{})

	settings, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, query.SortByDeadline, settings.SortBy)
	assert.Equal(t, query.Descending, settings.Order)
	assert.Equal(t, query.UrgentWindowDays, settings.UrgentWindow)
	assert.InDelta(t, 25000, settings.MaxAmount, 0.001)

	engine := query.NewEngine(settings.EngineOptions()...)
	assert.InDelta(t, 25000, engine.MaxAmount(), 0.001)

	enabled, err := svc.ExportsEnabled(context.Background())
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestSettingsServiceRepositoryError(t *testing.T) {
	svc := NewSettingsService(&settingsRepoStub{err: errors.New("down")}, nil, nil, nil, nil, SettingsServiceConfig{})

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	_, err = svc.Catalog(context.Background())
	require.Error(t, err)
}
