package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

// StudentProfileRepository stores catalog matching preferences per student.
type StudentProfileRepository struct {
	db *sqlx.DB
}

// NewStudentProfileRepository constructs the repository.
func NewStudentProfileRepository(db *sqlx.DB) *StudentProfileRepository {
	return &StudentProfileRepository{db: db}
}

// Get returns the profile of a user.
func (r *StudentProfileRepository) Get(ctx context.Context, userID string) (*models.StudentProfile, error) {
	const query = `SELECT user_id, education_level, gender, community, updated_at FROM student_profiles WHERE user_id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get student profile: %w", err)
	}
	return &profile, nil
}

// Upsert creates or replaces a profile.
func (r *StudentProfileRepository) Upsert(ctx context.Context, profile *models.StudentProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO student_profiles (user_id, education_level, gender, community, updated_at)
VALUES (:user_id, :education_level, :gender, :community, :updated_at)
ON CONFLICT (user_id)
DO UPDATE SET education_level = EXCLUDED.education_level, gender = EXCLUDED.gender,
              community = EXCLUDED.community, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert student profile: %w", err)
	}
	return nil
}
