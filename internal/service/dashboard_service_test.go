package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type dashboardRepoStub struct {
	scholarshipRepoStub
	counts   map[string]int
	countErr error
}

func (d *dashboardRepoStub) CountByStatus(context.Context) (map[string]int, error) {
	return d.counts, d.countErr
}

func newDashboardForTest(repo *dashboardRepoStub, profiles studentProfileReader, cache *CacheService) *DashboardService {
	catalog := newScholarshipServiceForTest(&repo.scholarshipRepoStub, nil, nil)
	return NewDashboardService(DashboardServiceParams{
		Scholarships: repo,
		Catalog:      catalog,
		Profiles:     profiles,
		Metrics:      NewMetricsService(),
		Cache:        cache,
		Logger:       zap.NewNop(),
		Config:       DashboardServiceConfig{UrgentLimit: 2, MatchLimit: 5},
	})
}

func dashboardFixtures() []models.Scholarship {
	items := scholarshipFixtures()
	items = append(items,
		models.Scholarship{ID: "d", Name: "Tomorrow Fund", Amount: "800", EducationLevel: models.EducationPhD, ApplicationEndDate: deadlineIn(1), GenderRequirement: models.GenderAll, Status: models.ScholarshipStatusActive},
		models.Scholarship{ID: "e", Name: "Paused Fund", Amount: "1200", EducationLevel: "Vocational", ApplicationEndDate: deadlineIn(2), GenderRequirement: models.GenderAll, Status: models.ScholarshipStatusInactive, ApplicationLink: strPtr("https://example.org")},
	)
	return items
}

func TestDashboardServiceAdmin(t *testing.T) {
	repo := &dashboardRepoStub{
		scholarshipRepoStub: scholarshipRepoStub{items: dashboardFixtures()},
		counts:              map[string]int{"active": 3, "inactive": 2},
	}
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := newDashboardForTest(repo, nil, cache)

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, 5, summary.Totals.Count)
	assert.Equal(t, 3, summary.Totals.ActiveCount)
	assert.Equal(t, 3, summary.ByStatus[string(models.DisplayStatusActive)])
	assert.Equal(t, 1, summary.ByStatus[string(models.DisplayStatusExpired)]+summary.ByStatus[string(models.DisplayStatusDraft)])
	assert.Equal(t, 1, summary.ByStatus[string(models.DisplayStatusPaused)])
	assert.Equal(t, 3, summary.ByStatus["published_active"])

	require.Len(t, summary.Urgent, 2)
	assert.Equal(t, "d", summary.Urgent[0].ID)
	assert.Equal(t, 1, summary.Urgent[0].DaysUntilDeadline)
	assert.Equal(t, "a", summary.Urgent[1].ID)

	require.Len(t, summary.TopAmounts, 2)
	assert.Equal(t, "c", summary.TopAmounts[0].ID)
	assert.Equal(t, "a", summary.TopAmounts[1].ID)

	levels := []string{}
	for _, bucket := range summary.ByEducation {
		levels = append(levels, bucket.EducationLevel)
	}
	assert.Equal(t, []string{models.EducationBachelors, models.EducationMasters, models.EducationPhD, "Vocational"}, levels)

	_, hit, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.listCalls)
}

func TestDashboardServiceAdminCountError(t *testing.T) {
	repo := &dashboardRepoStub{countErr: errors.New("db down")}
	svc := newDashboardForTest(repo, nil, nil)

	_, _, err := svc.Admin(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

type accountCounterStub struct {
	counts map[models.UserRole]int
	err    error
}

func (a accountCounterStub) CountByRole(context.Context) (map[models.UserRole]int, error) {
	return a.counts, a.err
}

func TestDashboardServiceAdminAccounts(t *testing.T) {
	repo := &dashboardRepoStub{scholarshipRepoStub: scholarshipRepoStub{items: dashboardFixtures()}}
	svc := newDashboardForTest(repo, nil, nil)

	summary, _, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary.Accounts)

	svc.accounts = accountCounterStub{counts: map[models.UserRole]int{models.RoleStudent: 40, models.RoleAdmin: 3}}
	summary, _, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"student": 40, "admin": 3}, summary.Accounts)

	svc.accounts = accountCounterStub{err: errors.New("db down")}
	summary, _, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary.Accounts)
}

func TestDashboardServiceStudentUsesProfile(t *testing.T) {
	repo := &dashboardRepoStub{scholarshipRepoStub: scholarshipRepoStub{items: dashboardFixtures()}}
	profiles := &profileRepoStub{profiles: map[string]models.StudentProfile{
		"student-1": {UserID: "student-1", EducationLevel: models.EducationBachelors, Gender: models.GenderMale},
	}}
	svc := newDashboardForTest(repo, profiles, nil)

	summary, hit, err := svc.Student(context.Background(), "student-1", models.CatalogQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.EducationBachelors, summary.Applied.EducationLevel)
	assert.Equal(t, string(query.SortByDeadline), summary.Applied.SortBy)
	require.Len(t, summary.Matches, 1)
	assert.Equal(t, "a", summary.Matches[0].ID)
	assert.Equal(t, 1, summary.Stats.UrgentCount)
	require.Len(t, summary.Urgent, 1)
	assert.Equal(t, serviceNow, summary.GeneratedAt)
}

func TestDashboardServiceStudentOverridesProfile(t *testing.T) {
	repo := &dashboardRepoStub{scholarshipRepoStub: scholarshipRepoStub{items: dashboardFixtures()}}
	profiles := &profileRepoStub{profiles: map[string]models.StudentProfile{
		"student-1": {UserID: "student-1", EducationLevel: models.EducationBachelors},
	}}
	svc := newDashboardForTest(repo, profiles, nil)

	summary, _, err := svc.Student(context.Background(), "student-1", models.CatalogQuery{EducationLevel: "all"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "b"}, idsOf(summary.Matches))
}

func TestDashboardServiceStudentWithoutProfile(t *testing.T) {
	repo := &dashboardRepoStub{scholarshipRepoStub: scholarshipRepoStub{items: dashboardFixtures()}}
	svc := newDashboardForTest(repo, &profileRepoStub{}, nil)

	summary, _, err := svc.Student(context.Background(), "student-2", models.CatalogQuery{})
	require.NoError(t, err)
	assert.Nil(t, summary.Profile)
	assert.Equal(t, 3, summary.Stats.Count)

	_, _, err = svc.Student(context.Background(), "", models.CatalogQuery{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func idsOf(items []models.Scholarship) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
