package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// EnrollRequest enrolls an existing student (StudentID) or one identified by
// profile, found or created by email. Schedule, when given, replaces the
// generated split and must hold exactly Installments entries.
type EnrollRequest struct {
	StudentID    string          `json:"studentId" validate:"omitempty,max=64"`
	Student      *StudentProfile `json:"student"`
	CourseID     string          `json:"courseId" validate:"required"`
	Installments int             `json:"installments" validate:"required,min=1"`
	Schedule     []ScheduleEntry `json:"schedule" validate:"omitempty,dive"`
	Notes        string          `json:"notes" validate:"omitempty,max=1000"`
	Source       models.Source   `json:"source" validate:"omitempty,oneof=self_service admin_entered"`
	ActorID      string          `json:"-"`
}

// UpdateEnrollmentStatusRequest changes the administrative status. Completion
// is derived from payments and cannot be set directly.
type UpdateEnrollmentStatusRequest struct {
	Status  models.EnrollmentStatus `json:"status" validate:"required,oneof=active cancelled"`
	ActorID string                  `json:"-"`
}

// EnrollmentListResult is a page of enrollment views with totals.
type EnrollmentListResult struct {
	Items      []models.EnrollmentView
	Statistics models.EnrollmentListStatistics
	Pagination *models.Pagination
}

type studentResolver interface {
	Get(ctx context.Context, id string) (*models.Student, error)
	Resolve(ctx context.Context, profile StudentProfile) (*models.Student, bool, error)
}

// EnrollmentService handles enrollment lifecycle use-cases.
type EnrollmentService struct {
	repo       enrollmentStore
	courses    courseReader
	students   studentResolver
	reconciler *ReconciliationService
	audit      *AuditService
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentStore, courses courseReader, students studentResolver, reconciler *ReconciliationService, audit *AuditService, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:       repo,
		courses:    courses,
		students:   students,
		reconciler: reconciler,
		audit:      audit,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// Enroll creates an enrollment with either the requested or a generated
// installment schedule.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if strings.TrimSpace(req.StudentID) == "" && req.Student == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId or student profile is required")
	}
	if len(req.Schedule) > 0 && len(req.Schedule) != req.Installments {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("schedule has %d entries, expected %d", len(req.Schedule), req.Installments))
	}
	if req.Source == "" {
		req.Source = models.SourceSelfService
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not open for enrollment")
	}
	if req.Installments > course.MaxInstallments {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installments must be between 1 and %d", course.MaxInstallments))
	}

	student, err := s.resolveStudent(ctx, req)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsActive(ctx, student.ID, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	}

	schedule, err := s.schedule(course, req)
	if err != nil {
		return nil, err
	}
	enrollment := &models.Enrollment{
		StudentID:            student.ID,
		CourseID:             course.ID,
		TotalAmount:          course.Price,
		SelectedInstallments: req.Installments,
		Status:               models.EnrollmentActive,
		Source:               req.Source,
		Notes:                strings.TrimSpace(req.Notes),
		CreatedBy:            req.ActorID,
		Schedule:             schedule,
	}
	start := time.Now()
	err = s.repo.Create(ctx, enrollment)
	s.metrics.ObserveStoreOperation("create_enrollment", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.metrics.RecordEnrollment(enrollment.Source)
	s.audit.Record(ctx, req.ActorID, actorTypeFor(req.Source), models.AuditEnrollmentCreated, models.AuditEntityEnrollment, enrollment.ID, nil, enrollment)
	s.cache.InvalidateLedger(ctx)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", student.ID),
		zap.String("course_id", course.ID),
		zap.Int("installments", req.Installments),
	)
	return s.describeOne(ctx, *enrollment)
}

func (s *EnrollmentService) schedule(course *models.Course, req EnrollRequest) ([]models.Installment, error) {
	if len(req.Schedule) == 0 {
		return GenerateSchedule(course.Price, req.Installments, course.StartDate, course.EndDate)
	}
	return BuildSchedule(course.Price, req.Schedule, course.StartDate, course.EndDate)
}

func (s *EnrollmentService) resolveStudent(ctx context.Context, req EnrollRequest) (*models.Student, error) {
	if id := strings.TrimSpace(req.StudentID); id != "" {
		return s.students.Get(ctx, id)
	}
	student, created, err := s.students.Resolve(ctx, *req.Student)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("student created on enrollment", zap.String("student_id", student.ID))
	}
	return student, nil
}

// Get returns one enrollment view.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentView, error) {
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.describeOne(ctx, *enrollment)
}

// List returns a page of enrollment views with totals over that page.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) (*EnrollmentListResult, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	views, err := s.reconciler.Describe(ctx, enrollments)
	if err != nil {
		return nil, err
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return &EnrollmentListResult{
		Items:      views,
		Statistics: EnrollmentListStatisticsOf(views),
		Pagination: &models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// UpdateStatus cancels or reactivates an enrollment. Reactivation re-derives
// completion from the payments on record.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == req.Status {
		return s.describeOne(ctx, *current)
	}
	if current.Status == models.EnrollmentCancelled && req.Status == models.EnrollmentActive {
		exists, err := s.repo.ExistsActive(ctx, current.StudentID, current.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	updated, err := s.reconciler.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, req.ActorID, models.ActorAdmin, models.AuditEnrollmentStatusChanged, models.AuditEntityEnrollment, id,
		map[string]models.EnrollmentStatus{"status": current.Status},
		map[string]models.EnrollmentStatus{"status": updated.Status})
	s.cache.InvalidateLedger(ctx)
	return s.describeOne(ctx, *updated)
}

// Delete removes the enrollment together with its payments.
func (s *EnrollmentService) Delete(ctx context.Context, id, actorID string) error {
	current, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	s.audit.Record(ctx, actorID, models.ActorAdmin, models.AuditEnrollmentDeleted, models.AuditEntityEnrollment, id, current, nil)
	s.cache.InvalidateLedger(ctx)
	s.logger.Info("enrollment deleted", zap.String("enrollment_id", id))
	return nil
}

// Summary returns the payment position of one enrollment.
func (s *EnrollmentService) Summary(ctx context.Context, id string) (*models.EnrollmentSummary, error) {
	return s.reconciler.Summary(ctx, id)
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) describeOne(ctx context.Context, enrollment models.Enrollment) (*models.EnrollmentView, error) {
	views, err := s.reconciler.Describe(ctx, []models.Enrollment{enrollment})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
