package dto

// UpdateStudentProfileRequest is the payload for PUT /me/profile.
type UpdateStudentProfileRequest struct {
	EducationLevel string  `json:"educationLevel" validate:"omitempty,max=64"`
	Gender         string  `json:"gender" validate:"omitempty,oneof='All Genders' Male Female Other"`
	Community      *string `json:"community,omitempty" validate:"omitempty,max=200"`
}
