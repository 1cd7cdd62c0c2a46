package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

const (
	enrollmentColumns = `e.id, e.student_id, e.course_id, e.total_amount, e.selected_installments, e.status, e.source, e.notes, e.created_by, e.created_at, e.updated_at`
	enrollmentFrom    = `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	installmentColumns = `enrollment_id, no, amount, due_date, paid_amount, paid, status`
)

// EnrollmentRepository persists enrollments together with their installment schedules.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func enrollmentClause(filter models.EnrollmentFilter) clauseBuilder {
	var b clauseBuilder
	if filter.StudentID != "" {
		b.add("e.student_id = $%d", filter.StudentID)
	}
	if filter.CourseID != "" {
		b.add("e.course_id = $%d", filter.CourseID)
	}
	if filter.Status != "" {
		b.add("e.status = $%d", filter.Status)
	}
	if strings.TrimSpace(filter.Search) != "" {
		b.add("(s.name ILIKE $%[1]d OR s.email ILIKE $%[1]d OR c.title ILIKE $%[1]d)", likePattern(filter.Search))
	}
	return b
}

// List returns one page of enrollments, newest first, with the total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	b := enrollmentClause(filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s%s ORDER BY e.created_at DESC, e.id LIMIT %d OFFSET %d", enrollmentColumns, enrollmentFrom, b.where(), limit, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+enrollmentFrom+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	if err := r.attachSchedules(ctx, enrollments); err != nil {
		return nil, 0, err
	}
	return enrollments, total, nil
}

// ListAll returns every enrollment matching the filter, ignoring paging.
func (r *EnrollmentRepository) ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	b := enrollmentClause(filter)
	query := fmt.Sprintf("SELECT %s %s%s ORDER BY e.created_at DESC, e.id", enrollmentColumns, enrollmentFrom, b.where())

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, b.args...); err != nil {
		return nil, fmt.Errorf("list all enrollments: %w", err)
	}
	if err := r.attachSchedules(ctx, enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

// FindByID returns an enrollment with its schedule or sql.ErrNoRows.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, "SELECT "+enrollmentColumns+" FROM enrollments e WHERE e.id = $1", id); err != nil {
		return nil, err
	}
	schedule := []models.Installment{}
	query := "SELECT " + installmentColumns + " FROM installments WHERE enrollment_id = $1 ORDER BY no"
	if err := r.db.SelectContext(ctx, &schedule, query, id); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	enrollment.Schedule = schedule
	return &enrollment, nil
}

func (r *EnrollmentRepository) attachSchedules(ctx context.Context, enrollments []models.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	ids := make([]string, len(enrollments))
	index := make(map[string]int, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
		index[e.ID] = i
		enrollments[i].Schedule = []models.Installment{}
	}

	query, args, err := sqlx.In("SELECT "+installmentColumns+" FROM installments WHERE enrollment_id IN (?) ORDER BY enrollment_id, no", ids)
	if err != nil {
		return fmt.Errorf("build schedule query: %w", err)
	}
	var installments []models.Installment
	if err := r.db.SelectContext(ctx, &installments, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	for _, inst := range installments {
		if i, ok := index[inst.EnrollmentID]; ok {
			enrollments[i].Schedule = append(enrollments[i].Schedule, inst)
		}
	}
	return nil
}

// ExistsActive reports whether the student already holds a non-cancelled enrollment in the course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = "SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status <> $3 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create inserts the enrollment and its schedule in one transaction.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	defer rollbackOnError(tx, &err)

	const insertEnrollment = `INSERT INTO enrollments (id, student_id, course_id, total_amount, selected_installments, status, source, notes, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :total_amount, :selected_installments, :status, :source, :notes, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertEnrollment, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	const insertInstallment = `INSERT INTO installments (enrollment_id, no, amount, due_date, paid_amount, paid, status) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range enrollment.Schedule {
		inst := &enrollment.Schedule[i]
		inst.EnrollmentID = enrollment.ID
		if _, err = tx.ExecContext(ctx, insertInstallment, inst.EnrollmentID, inst.No, inst.Amount, inst.DueDate, inst.PaidAmount, inst.Paid, inst.Status); err != nil {
			return fmt.Errorf("create installment %d: %w", inst.No, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status, returning sql.ErrNoRows for unknown IDs.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1", id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return requireAffected(res)
}

// UpdateSchedule writes reconciled installment state and the derived status together.
func (r *EnrollmentRepository) UpdateSchedule(ctx context.Context, id string, schedule []models.Installment, status models.EnrollmentStatus) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update schedule: %w", err)
	}
	defer rollbackOnError(tx, &err)

	const updateInstallment = `UPDATE installments SET paid_amount = $3, paid = $4, status = $5 WHERE enrollment_id = $1 AND no = $2`
	for _, inst := range schedule {
		if _, err = tx.ExecContext(ctx, updateInstallment, id, inst.No, inst.PaidAmount, inst.Paid, inst.Status); err != nil {
			return fmt.Errorf("update installment %d: %w", inst.No, err)
		}
	}

	res, err := tx.ExecContext(ctx, "UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1", id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update schedule: %w", err)
	}
	return nil
}

// Delete removes the enrollment, its installments and every payment recorded against it.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete enrollment: %w", err)
	}
	defer rollbackOnError(tx, &err)

	if _, err = tx.ExecContext(ctx, "DELETE FROM payments WHERE enrollment_id = $1", id); err != nil {
		return fmt.Errorf("delete enrollment payments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM installments WHERE enrollment_id = $1", id); err != nil {
		return fmt.Errorf("delete enrollment installments: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete enrollment: %w", err)
	}
	return nil
}

func rollbackOnError(tx *sqlx.Tx, err *error) {
	if *err != nil {
		_ = tx.Rollback()
	}
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
