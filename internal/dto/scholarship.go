package dto

import (
	"time"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

// ScholarshipRequest is the create/update payload from the admin console.
type ScholarshipRequest struct {
	Name               string  `json:"name" validate:"required,max=200"`
	Description        string  `json:"description" validate:"required"`
	Amount             string  `json:"amount" validate:"required,max=32"`
	EducationLevel     string  `json:"educationLevel" validate:"required,max=64"`
	ApplicationEndDate string  `json:"applicationEndDate" validate:"required"`
	Eligibility        string  `json:"eligibility" validate:"required"`
	Community          *string `json:"community,omitempty" validate:"omitempty,max=200"`
	GenderRequirement  string  `json:"genderRequirement" validate:"omitempty,oneof='All Genders' Male Female Other"`
	Status             string  `json:"status" validate:"omitempty,oneof=active inactive"`
	OrganizationLogo   *string `json:"organizationLogo,omitempty" validate:"omitempty,url"`
	ApplicationLink    *string `json:"applicationLink,omitempty" validate:"omitempty,url"`
}

// CatalogRequest binds the public catalog query string.
type CatalogRequest struct {
	models.CatalogQuery
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// ScholarshipDetail decorates a listing with derived presentation fields.
type ScholarshipDetail struct {
	models.Scholarship
	EligibilityItems  []string             `json:"eligibility_items"`
	DisplayStatus     models.DisplayStatus `json:"display_status"`
	DaysUntilDeadline int                  `json:"days_until_deadline"`
	Urgent            bool                 `json:"urgent"`
}

// ImportResult reports the outcome of a bulk import.
type ImportResult struct {
	Imported int      `json:"imported"`
	IDs      []string `json:"ids"`
}

// ApplicationFormResponse exposes a signed download URL for an uploaded form.
type ApplicationFormResponse struct {
	ScholarshipID string    `json:"scholarshipId"`
	DownloadURL   string    `json:"downloadUrl"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
