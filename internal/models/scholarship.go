package models

import "time"

// ScholarshipStatus is the persisted publication state of a listing.
type ScholarshipStatus string

const (
	ScholarshipStatusActive   ScholarshipStatus = "active"
	ScholarshipStatusInactive ScholarshipStatus = "inactive"
)

// DisplayStatus is the admin console view of a listing, derived from the
// persisted status and the deadline.
type DisplayStatus string

const (
	DisplayStatusActive  DisplayStatus = "active"
	DisplayStatusDraft   DisplayStatus = "draft"
	DisplayStatusExpired DisplayStatus = "expired"
	DisplayStatusPaused  DisplayStatus = "paused"
)

// Education levels offered by the catalog.
const (
	EducationHighSchool = "High School"
	EducationBachelors  = "Bachelor's"
	EducationMasters    = "Master's"
	EducationPhD        = "PhD"
	EducationAllLevels  = "All Levels"
)

// EducationLevels lists the levels a listing may target.
var EducationLevels = []string{EducationHighSchool, EducationBachelors, EducationMasters, EducationPhD, EducationAllLevels}

// IsEducationLevel reports whether level is one of EducationLevels.
func IsEducationLevel(level string) bool {
	for _, candidate := range EducationLevels {
		if candidate == level {
			return true
		}
	}
	return false
}

// Gender requirements. GenderAll is the wildcard on both records and filters.
const (
	GenderAll    = "All Genders"
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// Scholarship is a single funding listing. Amount and ApplicationEndDate are
// kept exactly as submitted and parsed by the query engine.
type Scholarship struct {
	ID                  string            `db:"id" json:"id"`
	Name                string            `db:"name" json:"name"`
	Description         string            `db:"description" json:"description"`
	Amount              string            `db:"amount" json:"amount"`
	EducationLevel      string            `db:"education_level" json:"education_level"`
	ApplicationEndDate  string            `db:"application_end_date" json:"application_end_date"`
	Eligibility         string            `db:"eligibility" json:"eligibility"`
	Community           *string           `db:"community" json:"community,omitempty"`
	GenderRequirement   string            `db:"gender_requirement" json:"gender_requirement"`
	Status              ScholarshipStatus `db:"status" json:"status"`
	OrganizationLogo    *string           `db:"organization_logo" json:"organization_logo,omitempty"`
	ApplicationLink     *string           `db:"application_link" json:"application_link,omitempty"`
	ApplicationFormPath *string           `db:"application_form_path" json:"application_form_path,omitempty"`
	CreatedBy           *string           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt           *time.Time        `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt           *time.Time        `db:"updated_at" json:"updated_at,omitempty"`
}

// ScholarshipFilter is the coarse server-side pre-filter applied in SQL
// before the query engine runs.
type ScholarshipFilter struct {
	EducationLevel string
	Status         string
	Search         string
}

// CatalogQuery is the serialisable form of a catalog filter/sort request.
// It travels through HTTP query strings, export job params and CLI flags.
type CatalogQuery struct {
	Search         string   `json:"search,omitempty" form:"search"`
	EducationLevel string   `json:"educationLevel,omitempty" form:"educationLevel"`
	MinAmount      *float64 `json:"minAmount,omitempty" form:"minAmount"`
	MaxAmount      *float64 `json:"maxAmount,omitempty" form:"maxAmount"`
	DeadlineFrom   string   `json:"deadlineFrom,omitempty" form:"deadlineFrom"`
	DeadlineTo     string   `json:"deadlineTo,omitempty" form:"deadlineTo"`
	Communities    []string `json:"communities,omitempty" form:"community"`
	Gender         string   `json:"gender,omitempty" form:"gender"`
	SortBy         string   `json:"sortBy,omitempty" form:"sortBy"`
	Order          string   `json:"order,omitempty" form:"order"`
	Status         string   `json:"status,omitempty" form:"status"`
}
