package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// ReconciliationService composes the pure aggregation functions with the
// stores. It owns the write-back of installment state and every derived
// read model.
type ReconciliationService struct {
	enrollments enrollmentStore
	payments    paymentStore
	students    studentReader
	courses     courseReader
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewReconciliationService constructs the service.
func NewReconciliationService(enrollments enrollmentStore, payments paymentStore, students studentReader, courses courseReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		enrollments: enrollments,
		payments:    payments,
		students:    students,
		courses:     courses,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Reconcile replays the enrollment's payments onto its schedule and stores
// the result together with the derived lifecycle status.
func (s *ReconciliationService) Reconcile(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	enrollment, _, err := s.reconcile(ctx, enrollmentID)
	return enrollment, err
}

func (s *ReconciliationService) reconcile(ctx context.Context, enrollmentID string) (*models.Enrollment, bool, error) {
	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, false, err
	}
	payments, err := s.payments.List(ctx, models.PaymentFilter{EnrollmentID: enrollmentID})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	schedule := ApplyPayments(enrollment.Schedule, payments, s.now())
	status := derivedStatus(enrollment.Status, schedule)
	if status == enrollment.Status && sameInstallmentState(enrollment.Schedule, schedule) {
		return enrollment, false, nil
	}

	start := time.Now()
	err = s.enrollments.UpdateSchedule(ctx, enrollmentID, schedule, status)
	s.metrics.ObserveStoreOperation("update_schedule", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update installments")
	}
	if status != enrollment.Status {
		s.logger.Info("enrollment status derived",
			zap.String("enrollment_id", enrollmentID),
			zap.String("from", string(enrollment.Status)),
			zap.String("to", string(status)),
		)
	}
	enrollment.Schedule = schedule
	enrollment.Status = status
	return enrollment, true, nil
}

// derivedStatus keeps cancellations and otherwise follows the schedule:
// completed once every installment is paid, active again after a refund.
func derivedStatus(current models.EnrollmentStatus, schedule []models.Installment) models.EnrollmentStatus {
	if current == models.EnrollmentCancelled {
		return current
	}
	if len(schedule) == 0 {
		return models.EnrollmentActive
	}
	for _, inst := range schedule {
		if !inst.Paid {
			return models.EnrollmentActive
		}
	}
	return models.EnrollmentCompleted
}

func sameInstallmentState(a, b []models.Installment) bool {
	if len(a) != len(b) {
		return false
	}
	byNo := make(map[int]models.Installment, len(a))
	for _, inst := range a {
		byNo[inst.No] = inst
	}
	for _, next := range b {
		prev, ok := byNo[next.No]
		if !ok || prev.Paid != next.Paid || prev.Status != next.Status || !prev.PaidAmount.Equal(next.PaidAmount) {
			return false
		}
	}
	return true
}

// Summary derives the payment position of one enrollment.
func (s *ReconciliationService) Summary(ctx context.Context, enrollmentID string) (*models.EnrollmentSummary, error) {
	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.List(ctx, models.PaymentFilter{EnrollmentID: enrollmentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	summary := Summarize(*enrollment, payments, s.now())
	return &summary, nil
}

// Describe enriches enrollments with student and course references and
// their payment summary. The schedule in each view reflects the payments as
// of now. Missing references degrade to "Unknown".
func (s *ReconciliationService) Describe(ctx context.Context, enrollments []models.Enrollment) ([]models.EnrollmentView, error) {
	views := make([]models.EnrollmentView, 0, len(enrollments))
	if len(enrollments) == 0 {
		return views, nil
	}
	filter := models.PaymentFilter{}
	if len(enrollments) == 1 {
		filter.EnrollmentID = enrollments[0].ID
	}
	payments, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	byEnrollment := groupByEnrollment(payments)

	refs, err := s.newResolver(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, e := range enrollments {
		own := byEnrollment[e.ID]
		student, err := refs.student(ctx, e.StudentID)
		if err != nil {
			return nil, err
		}
		view := models.EnrollmentView{
			Enrollment:  e.Clone(),
			Student:     student,
			Course:      refs.course(e.CourseID),
			PaymentInfo: Summarize(e, own, now),
		}
		view.Schedule = ApplyPayments(e.Schedule, own, now)
		views = append(views, view)
	}
	return views, nil
}

// Statistics returns the ledger-wide aggregate, served from cache when
// enabled. The boolean reports a cache hit.
func (s *ReconciliationService) Statistics(ctx context.Context) (*models.Statistics, bool, error) {
	var cached models.Statistics
	if hit, _ := s.cache.Get(ctx, statisticsCacheKey, &cached); hit {
		return &cached, true, nil
	}

	enrollments, err := s.enrollments.ListAll(ctx, models.EnrollmentFilter{})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	payments, err := s.payments.List(ctx, models.PaymentFilter{})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	courses, err := s.courses.List(ctx, models.CourseFilter{})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	input := StatisticsInput{
		Enrollments: enrollments,
		Payments:    payments,
		Students:    make(map[string]models.Student),
		Courses:     make(map[string]models.Course, len(courses)),
	}
	for _, c := range courses {
		input.Courses[c.ID] = c
	}
	for _, e := range enrollments {
		if _, seen := input.Students[e.StudentID]; seen {
			continue
		}
		student, err := s.students.FindByID(ctx, e.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		input.Students[e.StudentID] = *student
	}

	stats := BuildStatistics(input, s.now())
	_ = s.cache.Set(ctx, statisticsCacheKey, stats, 0)
	return &stats, false, nil
}

// StudentOverview assembles a student's enrollments, payments and totals.
func (s *ReconciliationService) StudentOverview(ctx context.Context, studentID string) (*models.StudentOverview, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.enrollments.ListAll(ctx, models.EnrollmentFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	payments, err := s.payments.List(ctx, models.PaymentFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	views, err := s.Describe(ctx, enrollments)
	if err != nil {
		return nil, err
	}

	stats := models.StudentStatistics{
		TotalEnrollments:  len(views),
		TotalCourseFees:   decimal.Zero,
		TotalPaid:         decimal.Zero,
		TotalRemaining:    decimal.Zero,
		EnrollmentDetails: make([]models.EnrollmentBreakdown, 0, len(views)),
	}
	var amounts models.StatusAmounts
	zeroAmounts(&amounts)
	for _, p := range payments {
		countStatus(&stats.PaymentsByStatus, &amounts, p)
	}
	for _, v := range views {
		info := v.PaymentInfo
		stats.TotalCourseFees = stats.TotalCourseFees.Add(info.TotalFees)
		stats.TotalPaid = stats.TotalPaid.Add(info.TotalPaid)
		stats.TotalRemaining = stats.TotalRemaining.Add(info.Remaining)
		stats.EnrollmentDetails = append(stats.EnrollmentDetails, models.EnrollmentBreakdown{
			EnrollmentID:       v.ID,
			CourseID:           v.CourseID,
			CourseTitle:        v.Course.Title,
			CourseFees:         info.TotalFees,
			TotalInstallments:  info.TotalInstallments,
			PaidInstallments:   info.PaidInstallments,
			CurrentInstallment: info.CurrentInstallment,
			TotalPaid:          info.TotalPaid,
			Remaining:          info.Remaining,
			PercentagePaid:     info.PercentagePaid,
		})
	}

	return &models.StudentOverview{
		Student:     *student,
		Enrollments: views,
		Payments:    payments,
		Statistics:  stats,
	}, nil
}

// PendingInstallments lists unpaid installments of active enrollments,
// earliest due first.
func (s *ReconciliationService) PendingInstallments(ctx context.Context, overdueOnly bool) ([]models.PendingInstallment, error) {
	enrollments, err := s.enrollments.ListAll(ctx, models.EnrollmentFilter{Status: models.EnrollmentActive})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	views, err := s.Describe(ctx, enrollments)
	if err != nil {
		return nil, err
	}

	today := truncateDay(s.now())
	out := make([]models.PendingInstallment, 0)
	for _, v := range views {
		for _, inst := range v.Schedule {
			if inst.Paid {
				continue
			}
			if overdueOnly && inst.Status != models.InstallmentOverdue {
				continue
			}
			item := models.PendingInstallment{
				EnrollmentID: v.ID,
				Student:      v.Student,
				Course:       v.Course,
				No:           inst.No,
				Amount:       inst.Amount,
				PaidAmount:   inst.PaidAmount,
				Outstanding:  inst.Outstanding(),
				DueDate:      inst.DueDate,
				Status:       inst.Status,
			}
			if inst.Status == models.InstallmentOverdue {
				item.DaysOverdue = int(today.Sub(truncateDay(inst.DueDate)).Hours() / 24)
			}
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		if out[i].EnrollmentID != out[j].EnrollmentID {
			return out[i].EnrollmentID < out[j].EnrollmentID
		}
		return out[i].No < out[j].No
	})
	return out, nil
}

func (s *ReconciliationService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func groupByEnrollment(payments []models.Payment) map[string][]models.Payment {
	out := make(map[string][]models.Payment)
	for _, p := range payments {
		out[p.EnrollmentID] = append(out[p.EnrollmentID], p)
	}
	return out
}

// refResolver memoises display references for one request.
type refResolver struct {
	students studentReader
	courses  map[string]models.Course
	seen     map[string]models.StudentRef
}

func (s *ReconciliationService) newResolver(ctx context.Context) (*refResolver, error) {
	courses, err := s.courses.List(ctx, models.CourseFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	r := &refResolver{
		students: s.students,
		courses:  make(map[string]models.Course, len(courses)),
		seen:     make(map[string]models.StudentRef),
	}
	for _, c := range courses {
		r.courses[c.ID] = c
	}
	return r, nil
}

func (r *refResolver) student(ctx context.Context, id string) (models.StudentRef, error) {
	if ref, ok := r.seen[id]; ok {
		return ref, nil
	}
	ref := models.StudentRef{ID: id, Name: unknownName}
	st, err := r.students.FindByID(ctx, id)
	switch {
	case err == nil:
		ref = models.StudentRef{ID: st.ID, Name: st.Name, Email: st.Email, Phone: st.Phone}
	case !errors.Is(err, sql.ErrNoRows):
		return models.StudentRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	r.seen[id] = ref
	return ref, nil
}

func (r *refResolver) course(id string) models.CourseRef {
	c, ok := r.courses[id]
	if !ok {
		return models.CourseRef{ID: id, Title: unknownName}
	}
	return models.CourseRef{ID: c.ID, Title: c.Title, Price: c.Price, Instructor: c.Instructor}
}
