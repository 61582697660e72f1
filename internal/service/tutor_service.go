package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/matching"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type tutorRepository interface {
	List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error)
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, tutor *models.Tutor) error
	Update(ctx context.Context, tutor *models.Tutor) error
	Deactivate(ctx context.Context, id string) error
}

type candidateInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CreateTutorRequest represents payload for registering a tutor.
type CreateTutorRequest struct {
	Email         string                   `json:"email" validate:"required,email"`
	FullName      string                   `json:"full_name" validate:"required,max=200"`
	Subjects      []matching.SubjectTopics `json:"subjects" validate:"required,min=1"`
	Availability  matching.Schedule        `json:"availability"`
	MaxTuteeCount int                      `json:"max_tutee_count" validate:"gte=0,lte=50"`
}

// UpdateTutorRequest represents payload for updating a tutor. The tutee
// counter is owned by the assignment flow and cannot be set here.
type UpdateTutorRequest struct {
	Email         string                   `json:"email" validate:"required,email"`
	FullName      string                   `json:"full_name" validate:"required,max=200"`
	Subjects      []matching.SubjectTopics `json:"subjects" validate:"required,min=1"`
	Availability  matching.Schedule        `json:"availability"`
	MaxTuteeCount int                      `json:"max_tutee_count" validate:"gte=0,lte=50"`
	Active        *bool                    `json:"active"`
}

// TutorService orchestrates tutor profile operations.
type TutorService struct {
	repo      tutorRepository
	cache     candidateInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTutorService constructs a TutorService.
func NewTutorService(repo tutorRepository, cache candidateInvalidator, validate *validator.Validate, logger *zap.Logger) *TutorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns tutors plus pagination data.
func (s *TutorService) List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, *models.Pagination, error) {
	tutors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return tutors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a tutor by id.
func (s *TutorService) Get(ctx context.Context, id string) (*models.Tutor, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	return tutor, nil
}

// Create registers a new tutor with an empty load.
func (s *TutorService) Create(ctx context.Context, req CreateTutorRequest) (*models.Tutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}
	if err := validateTutorProfile(req.Subjects, req.Availability); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	tutor := &models.Tutor{
		Email:         strings.TrimSpace(req.Email),
		FullName:      strings.TrimSpace(req.FullName),
		MaxTuteeCount: req.MaxTuteeCount,
		Active:        true,
	}
	if err := s.applyProfile(tutor, req.Subjects, req.Availability); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, tutor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tutor")
	}
	s.invalidateRankings(ctx)
	s.logger.Info("tutor registered", zap.String("tutor_id", tutor.ID), zap.Int("max_tutee_count", tutor.MaxTuteeCount))
	return tutor, nil
}

// Update modifies an existing tutor's profile.
func (s *TutorService) Update(ctx context.Context, id string, req UpdateTutorRequest) (*models.Tutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}
	if err := validateTutorProfile(req.Subjects, req.Availability); err != nil {
		return nil, err
	}

	tutor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, id); err != nil {
		return nil, err
	}

	tutor.Email = strings.TrimSpace(req.Email)
	tutor.FullName = strings.TrimSpace(req.FullName)
	tutor.MaxTuteeCount = req.MaxTuteeCount
	if req.Active != nil {
		tutor.Active = *req.Active
	}
	if err := s.applyProfile(tutor, req.Subjects, req.Availability); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tutor); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tutor")
	}
	s.invalidateRankings(ctx)
	return tutor, nil
}

// Deactivate removes a tutor from future rankings. Existing assignments are kept.
func (s *TutorService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate tutor")
	}
	s.invalidateRankings(ctx)
	return nil
}

func (s *TutorService) ensureUniqueEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, strings.TrimSpace(email), excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrEmailTaken, "")
	}
	return nil
}

func (s *TutorService) applyProfile(tutor *models.Tutor, subjects []matching.SubjectTopics, availability matching.Schedule) error {
	cleaned := make([]matching.SubjectTopics, 0, len(subjects))
	for _, subject := range subjects {
		cleaned = append(cleaned, matching.SubjectTopics{Subject: strings.TrimSpace(subject.Subject), Topics: subject.Topics})
	}
	rawSubjects, err := encodeJSON(cleaned, "[]")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode subjects")
	}
	rawAvailability, err := encodeJSON(availability.Normalize(), "{}")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode availability")
	}
	tutor.Subjects = rawSubjects
	tutor.Availability = rawAvailability
	return nil
}

// invalidateRankings drops every cached candidate list since any tutor change can reorder them.
func (s *TutorService) invalidateRankings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, CandidateCachePattern("")); err != nil {
		s.logger.Warn("failed to invalidate candidate cache", zap.Error(err))
	}
}

func validateTutorProfile(subjects []matching.SubjectTopics, availability matching.Schedule) error {
	seen := make(map[string]struct{}, len(subjects))
	for _, subject := range subjects {
		name := strings.TrimSpace(subject.Subject)
		if name == "" {
			return appErrors.Clone(appErrors.ErrValidation, "subject name is required")
		}
		if _, dup := seen[name]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %q listed twice", name))
		}
		seen[name] = struct{}{}
	}
	if err := availability.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability")
	}
	return nil
}
