package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/models"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type studentProfileRepository interface {
	Get(ctx context.Context, userID string) (*models.StudentProfile, error)
	Upsert(ctx context.Context, profile *models.StudentProfile) error
}

// StudentProfileService manages the matching attributes of student accounts.
type StudentProfileService struct {
	repo      studentProfileRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentProfileService constructs a StudentProfileService.
func NewStudentProfileService(repo studentProfileRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentProfileService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// Get returns the profile of userID, or an empty profile when none is stored.
func (s *StudentProfileService) Get(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.StudentProfile{UserID: userID, Gender: models.GenderAll}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}

// Update stores the profile and drops the student's cached dashboards.
func (s *StudentProfileService) Update(ctx context.Context, userID string, req dto.UpdateStudentProfileRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if req.EducationLevel != "" && !models.IsEducationLevel(req.EducationLevel) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported education level")
	}

	profile := &models.StudentProfile{
		UserID:         userID,
		EducationLevel: req.EducationLevel,
		Gender:         req.Gender,
		Community:      trimmedPtr(req.Community),
		UpdatedAt:      s.now().UTC(),
	}
	if profile.Gender == "" {
		profile.Gender = models.GenderAll
	}
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student profile")
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dash:student:%s*", userID)); err != nil {
		s.logger.Warn("failed to drop student dashboard cache", zap.String("user_id", userID), zap.Error(err))
	}
	return profile, nil
}
