package query

import (
	"time"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

// Stats aggregates a record set.
type Stats struct {
	Count         int     `json:"count"`
	TotalAmount   float64 `json:"total_amount"`
	AverageAmount float64 `json:"average_amount"`
	ActiveCount   int     `json:"active_count"`
	UrgentCount   int     `json:"urgent_count"`
}

func computeStats(records []models.Scholarship, now time.Time, window int) Stats {
	stats := Stats{Count: len(records)}
	today := day(now)
	for i := range records {
		stats.TotalAmount += ParseAmount(records[i].Amount)
		if records[i].Status == models.ScholarshipStatusActive {
			stats.ActiveCount++
		}
		if IsUrgent(records[i], today, window) {
			stats.UrgentCount++
		}
	}
	if stats.Count > 0 {
		stats.AverageAmount = stats.TotalAmount / float64(stats.Count)
	}
	return stats
}

// DaysUntilDeadline returns the whole days from now's calendar day to the
// deadline, or -1 when the deadline cannot be parsed.
func DaysUntilDeadline(s models.Scholarship, now time.Time) int {
	deadline, ok := ParseDeadline(s.ApplicationEndDate)
	if !ok {
		return -1
	}
	return daysBetween(day(now), deadline)
}

// IsUrgent reports whether the deadline falls within the next window days.
func IsUrgent(s models.Scholarship, now time.Time, window int) bool {
	days := DaysUntilDeadline(s, now)
	return days > 0 && days <= window
}
