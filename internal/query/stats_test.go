package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStatsAt(nil, fixedNow)
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 0.0, stats.AverageAmount)
	assert.Equal(t, Stats{}, ComputeStats([]models.Scholarship{}))
}

func TestComputeStatsUrgentWindow(t *testing.T) {
	records := []models.Scholarship{
		record("today", func(s *models.Scholarship) { s.ApplicationEndDate = inDays(0) }),
		record("past", func(s *models.Scholarship) { s.ApplicationEndDate = inDays(-2) }),
		record("tomorrow", func(s *models.Scholarship) { s.ApplicationEndDate = inDays(1) }),
		record("week", func(s *models.Scholarship) { s.ApplicationEndDate = inDays(7) }),
		record("eight", func(s *models.Scholarship) { s.ApplicationEndDate = inDays(8) }),
		record("broken", func(s *models.Scholarship) { s.ApplicationEndDate = "n/a"; s.Status = models.ScholarshipStatusInactive }),
	}

	stats := ComputeStatsAt(records, fixedNow)
	assert.Equal(t, 6, stats.Count)
	assert.Equal(t, 2, stats.UrgentCount)
	assert.Equal(t, 5, stats.ActiveCount)
	assert.Equal(t, 6000.0, stats.TotalAmount)
	assert.Equal(t, 1000.0, stats.AverageAmount)

	wide := newTestEngine(WithUrgentWindow(14)).ComputeStats(records)
	assert.Equal(t, 3, wide.UrgentCount)
}

func TestDisplayStatus(t *testing.T) {
	link := "https://example.org"
	cases := map[models.DisplayStatus]models.Scholarship{
		models.DisplayStatusActive:  record("a"),
		models.DisplayStatusExpired: record("e", func(s *models.Scholarship) { s.ApplicationEndDate = inDays(-1) }),
		models.DisplayStatusDraft:   record("d", func(s *models.Scholarship) { s.Status = models.ScholarshipStatusInactive }),
		models.DisplayStatusPaused: record("p", func(s *models.Scholarship) {
			s.Status = models.ScholarshipStatusInactive
			s.ApplicationLink = &link
		}),
	}
	for want, s := range cases {
		assert.Equal(t, want, DisplayStatus(s, fixedNow), s.ID)
	}
	assert.Equal(t, models.DisplayStatusActive, DisplayStatus(record("t", func(s *models.Scholarship) { s.ApplicationEndDate = inDays(0) }), fixedNow))
}
