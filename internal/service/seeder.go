package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/seed"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// Seeder loads the sample dataset into an empty store, keeping its IDs so
// the sample-data endpoint and the stored records agree.
type Seeder struct {
	catalog     *CatalogService
	courses     courseReader
	students    studentStore
	enrollments enrollmentStore
	payments    paymentStore
	reconciler  *ReconciliationService
	logger      *zap.Logger
}

// NewSeeder constructs a Seeder.
func NewSeeder(catalog *CatalogService, courses courseReader, students studentStore, enrollments enrollmentStore, payments paymentStore, reconciler *ReconciliationService, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		catalog:     catalog,
		courses:     courses,
		students:    students,
		enrollments: enrollments,
		payments:    payments,
		reconciler:  reconciler,
		logger:      logger,
	}
}

// Seed upserts the catalog and, when no enrollment exists yet, inserts the
// sample students, enrollments and payments. It reports whether sample
// records were inserted.
func (s *Seeder) Seed(ctx context.Context, data *seed.Dataset) (bool, error) {
	if err := s.catalog.Load(ctx, data.Courses); err != nil {
		return false, err
	}
	existing, err := s.enrollments.ListAll(ctx, models.EnrollmentFilter{})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect enrollments")
	}
	if len(existing) > 0 {
		s.logger.Info("seed skipped, store already holds enrollments", zap.Int("enrollments", len(existing)))
		return false, nil
	}

	for i := range data.Students {
		student := data.Students[i]
		if _, err := s.students.FindByID(ctx, student.ID); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect students")
		}
		student.Email = normalizeEmail(student.Email)
		if err := s.students.Create(ctx, &student); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed student "+student.ID)
		}
	}

	for _, e := range data.Enrollments {
		course, err := s.courses.FindByID(ctx, e.CourseID)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "seed enrollment "+e.ID+" references unknown course")
		}
		schedule, err := GenerateSchedule(course.Price, e.Installments, course.StartDate, course.EndDate)
		if err != nil {
			return false, err
		}
		enrollment := &models.Enrollment{
			ID:                   e.ID,
			StudentID:            e.StudentID,
			CourseID:             e.CourseID,
			TotalAmount:          course.Price,
			SelectedInstallments: e.Installments,
			Status:               models.EnrollmentActive,
			Source:               e.Source,
			Notes:                e.Notes,
			Schedule:             schedule,
			CreatedAt:            e.CreatedAt,
		}
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed enrollment "+e.ID)
		}
	}

	for i := range data.Payments {
		payment := data.Payments[i]
		status, ok := models.ParsePaymentStatus(string(payment.Status))
		if !ok {
			return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("seed payment %s has status %q", payment.ID, payment.Status))
		}
		payment.Status = status
		payment.CreatedAt = payment.PaidAt
		if err := s.payments.Create(ctx, &payment); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed payment "+payment.ID)
		}
	}

	for _, e := range data.Enrollments {
		if _, err := s.reconciler.Reconcile(ctx, e.ID); err != nil {
			return false, err
		}
	}
	s.logger.Info("sample data seeded",
		zap.Int("students", len(data.Students)),
		zap.Int("enrollments", len(data.Enrollments)),
		zap.Int("payments", len(data.Payments)),
	)
	return true, nil
}
