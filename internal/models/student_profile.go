package models

import "time"

// StudentProfile holds the attributes used to match a student against the
// catalog on the student dashboard.
type StudentProfile struct {
	UserID         string    `db:"user_id" json:"user_id"`
	EducationLevel string    `db:"education_level" json:"education_level"`
	Gender         string    `db:"gender" json:"gender"`
	Community      *string   `db:"community" json:"community,omitempty"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
