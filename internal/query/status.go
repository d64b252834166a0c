package query

import (
	"time"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

// DisplayStatus derives the admin console state of a listing. Active
// listings past their deadline are expired; inactive ones are drafts until
// they carry an application link or form.
func DisplayStatus(s models.Scholarship, now time.Time) models.DisplayStatus {
	if s.Status != models.ScholarshipStatusActive {
		if s.ApplicationLink == nil && s.ApplicationFormPath == nil {
			return models.DisplayStatusDraft
		}
		return models.DisplayStatusPaused
	}
	if deadline, ok := ParseDeadline(s.ApplicationEndDate); ok && deadline.Before(day(now)) {
		return models.DisplayStatusExpired
	}
	return models.DisplayStatusActive
}
