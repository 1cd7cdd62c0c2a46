package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

type courseStore interface {
	courseReader
	Upsert(ctx context.Context, course *models.Course) error
}

// CatalogService serves the read-only course catalog.
type CatalogService struct {
	repo   courseStore
	logger *zap.Logger
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(repo courseStore, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, logger: logger}
}

// List returns courses matching the filter.
func (s *CatalogService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get returns a course by ID.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Load upserts reference courses, used when seeding the catalog.
func (s *CatalogService) Load(ctx context.Context, courses []models.Course) error {
	for i := range courses {
		if err := s.repo.Upsert(ctx, &courses[i]); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course "+courses[i].ID)
		}
	}
	s.logger.Info("catalog loaded", zap.Int("courses", len(courses)))
	return nil
}
