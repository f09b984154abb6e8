package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/section-swap-api/internal/dto"
	"github.com/noah-isme/section-swap-api/internal/models"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdatePreferences(ctx context.Context, id string, desired []string) error
}

// preferenceListener is told when a student's desired list changes so cached
// match annotations can be dropped.
type preferenceListener interface {
	NotifyPreferenceChange(ctx context.Context, student *models.Student)
}

// StudentService handles student listing and preference management.
type StudentService struct {
	repo      studentRepository
	listener  preferenceListener
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, listener preferenceListener, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, listener: listener, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// UpdatePreferences replaces the desired-section list, preserving the given
// priority order. Students may only edit their own list.
func (s *StudentService) UpdatePreferences(ctx context.Context, id string, req dto.UpdatePreferencesRequest, actor *models.JWTClaims) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && actor.StudentID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only edit their own preferences")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	desired := make([]string, 0, len(req.DesiredSections))
	for _, section := range req.DesiredSections {
		trimmed := strings.TrimSpace(section)
		if trimmed == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "desired sections must be non-empty tokens")
		}
		if trimmed == student.CurrentSection {
			// a preference for the seat already held is meaningless
			continue
		}
		desired = append(desired, trimmed)
	}

	if err := s.repo.UpdatePreferences(ctx, id, desired); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update preferences")
	}
	student.DesiredSections = desired

	if s.listener != nil {
		s.listener.NotifyPreferenceChange(ctx, student)
	}
	return student, nil
}
