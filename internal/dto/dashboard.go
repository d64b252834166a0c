package dto

import (
	"time"

	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
)

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	Totals      query.Stats          `json:"totals"`
	ByStatus    map[string]int       `json:"byStatus"`
	ByEducation []EducationBucket    `json:"byEducation"`
	Urgent      []DeadlineItem       `json:"urgent"`
	TopAmounts  []AmountItem         `json:"topAmounts"`
	Accounts    map[string]int       `json:"accounts,omitempty"`
	System      models.SystemMetrics `json:"system"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// EducationBucket counts listings per education level.
type EducationBucket struct {
	EducationLevel string `json:"educationLevel"`
	Count          int    `json:"count"`
}

// DeadlineItem is a listing closing soon.
type DeadlineItem struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Deadline          string `json:"deadline"`
	DaysUntilDeadline int    `json:"daysUntilDeadline"`
}

// AmountItem is a listing ranked by award amount.
type AmountItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// StudentDashboardResponse is the personalised view for a student.
type StudentDashboardResponse struct {
	Profile     *models.StudentProfile `json:"profile,omitempty"`
	Applied     models.CatalogQuery    `json:"applied"`
	Stats       query.Stats            `json:"stats"`
	Matches     []models.Scholarship   `json:"matches"`
	Urgent      []DeadlineItem         `json:"urgent"`
	GeneratedAt time.Time              `json:"generatedAt"`
}
