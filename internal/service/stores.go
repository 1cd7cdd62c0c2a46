package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// The repository method sets below are satisfied by both the sqlx
// repositories and the in-memory store views.

type courseReader interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type studentStore interface {
	studentReader
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	UpdateSchedule(ctx context.Context, id string, schedule []models.Installment, status models.EnrollmentStatus) error
	Delete(ctx context.Context, id string) error
}

type paymentStore interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) (bool, error)
}

type auditWriter interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Stores bundles one persistence driver's repositories.
type Stores struct {
	Courses     courseStore
	Students    studentStore
	Enrollments enrollmentStore
	Payments    paymentStore
	AuditLogs   auditRepository
}

// Container holds every service wired over one set of stores.
type Container struct {
	Audit       *AuditService
	Catalog     *CatalogService
	Students    *StudentService
	Reconciler  *ReconciliationService
	Enrollments *EnrollmentService
	Ledger      *LedgerService
	Reports     *ReportService
	Overdue     *OverdueService
	Seeder      *Seeder
	Cache       *CacheService
	Metrics     *MetricsService
}

// NewContainer wires the services. cache and metrics may be nil.
func NewContainer(stores Stores, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()

	audit := NewAuditService(stores.AuditLogs, logger.Named("audit"))
	catalog := NewCatalogService(stores.Courses, logger.Named("catalog"))
	students := NewStudentService(stores.Students, audit, validate, logger.Named("students"))
	reconciler := NewReconciliationService(stores.Enrollments, stores.Payments, stores.Students, stores.Courses, cache, metrics, logger.Named("reconciler"))
	enrollments := NewEnrollmentService(stores.Enrollments, stores.Courses, students, reconciler, audit, cache, metrics, validate, logger.Named("enrollments"))
	ledger := NewLedgerService(stores.Payments, stores.Enrollments, reconciler, audit, cache, metrics, validate, logger.Named("ledger"))

	return &Container{
		Audit:       audit,
		Catalog:     catalog,
		Students:    students,
		Reconciler:  reconciler,
		Enrollments: enrollments,
		Ledger:      ledger,
		Reports:     NewReportService(ledger, reconciler, logger.Named("reports"), nil, nil, nil, nil),
		Overdue:     NewOverdueService(stores.Enrollments, reconciler, audit, cache, metrics, logger.Named("overdue")),
		Seeder:      NewSeeder(catalog, stores.Courses, stores.Students, stores.Enrollments, stores.Payments, reconciler, logger.Named("seeder")),
		Cache:       cache,
		Metrics:     metrics,
	}
}
