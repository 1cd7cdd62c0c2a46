package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// StudentProfile holds the identity fields a student supplies on enrollment.
type StudentProfile struct {
	Name             string `json:"name" validate:"required,max=120"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone" validate:"omitempty,max=32"`
	Address          string `json:"address" validate:"omitempty,max=255"`
	Gender           string `json:"gender" validate:"omitempty,max=32"`
	Education        string `json:"education" validate:"omitempty,max=120"`
	Occupation       string `json:"occupation" validate:"omitempty,max=120"`
	EmergencyContact string `json:"emergencyContact" validate:"omitempty,max=120"`
}

// RegisterStudentRequest is the self-registration payload.
type RegisterStudentRequest struct {
	StudentProfile
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// StudentService handles student identity use-cases.
type StudentService struct {
	repo      studentStore
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentStore, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student by ID.
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

// Register creates a student account with a bcrypt-hashed password.
func (s *StudentService) Register(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	email := normalizeEmail(req.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	student := newStudent(req.StudentProfile)
	student.PasswordHash = string(hash)
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.audit.Record(ctx, student.ID, models.ActorStudent, models.AuditStudentRegistered, models.AuditEntityStudent, student.ID, nil, student)
	s.logger.Info("student registered", zap.String("student_id", student.ID))
	return student, nil
}

// Resolve finds a student by normalised email or creates one from the
// profile. The boolean reports whether a new student was created.
func (s *StudentService) Resolve(ctx context.Context, profile StudentProfile) (*models.Student, bool, error) {
	if err := s.validator.Struct(profile); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student profile")
	}
	existing, err := s.repo.FindByEmail(ctx, normalizeEmail(profile.Email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
	}

	student := newStudent(profile)
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, true, nil
}

func newStudent(p StudentProfile) *models.Student {
	return &models.Student{
		Name:             strings.TrimSpace(p.Name),
		Email:            normalizeEmail(p.Email),
		Phone:            strings.TrimSpace(p.Phone),
		Address:          p.Address,
		Gender:           p.Gender,
		Education:        p.Education,
		Occupation:       p.Occupation,
		EmergencyContact: p.EmergencyContact,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
