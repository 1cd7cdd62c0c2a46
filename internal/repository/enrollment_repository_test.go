package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

var (
	enrollmentRowColumns  = []string{"id", "student_id", "course_id", "total_amount", "selected_installments", "status", "source", "notes", "created_by", "created_at", "updated_at"}
	installmentRowColumns = []string{"enrollment_id", "no", "amount", "due_date", "paid_amount", "paid", "status"}
)

func TestEnrollmentRepositoryListAttachesSchedules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	due := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND e.status = $2 ORDER BY e.created_at DESC, e.id LIMIT 20 OFFSET 0")).
		WithArgs("student-001", models.EnrollmentActive).
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).
			AddRow("enr-1", "student-001", "1", "15000", 3, "active", "self_service", "", "", now, now).
			AddRow("enr-2", "student-001", "2", "9000", 1, "active", "admin_entered", "", "admin", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("student-001", models.EnrollmentActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM installments WHERE enrollment_id IN ($1, $2) ORDER BY enrollment_id, no")).
		WithArgs("enr-1", "enr-2").
		WillReturnRows(sqlmock.NewRows(installmentRowColumns).
			AddRow("enr-1", 1, "5000", due, "5000", true, "paid").
			AddRow("enr-1", 2, "5000", due.AddDate(0, 2, 0), "0", false, "pending").
			AddRow("enr-1", 3, "5000", due.AddDate(0, 4, 0), "0", false, "pending").
			AddRow("enr-2", 1, "9000", due, "0", false, "overdue"))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "student-001", Status: models.EnrollmentActive})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, enrollments, 2)
	assert.Len(t, enrollments[0].Schedule, 3)
	assert.Len(t, enrollments[1].Schedule, 1)
	assert.Equal(t, models.InstallmentOverdue, enrollments[1].Schedule[0].Status)
	assert.True(t, enrollments[0].TotalAmount.Equal(decimal.NewFromInt(15000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListAllSearchJoinsNames(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE (s.name ILIKE $1 OR s.email ILIKE $1 OR c.title ILIKE $1) ORDER BY e.created_at DESC, e.id")).
		WithArgs("%stack%").
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns))

	enrollments, err := repo.ListAll(context.Background(), models.EnrollmentFilter{Search: "stack"})
	require.NoError(t, err)
	assert.Empty(t, enrollments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status <> $3 LIMIT 1")
	mock.ExpectQuery(query).WithArgs("s1", "c1", models.EnrollmentCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(query).WithArgs("s1", "c2", models.EnrollmentCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsActive(context.Background(), "s1", "c2")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWritesScheduleInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO installments").WithArgs(sqlmock.AnyArg(), 1, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false, models.InstallmentPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO installments").WithArgs(sqlmock.AnyArg(), 2, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false, models.InstallmentPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{
		StudentID:   "s1",
		CourseID:    "c1",
		TotalAmount: decimal.NewFromInt(10000),
		Schedule: []models.Installment{
			{No: 1, Amount: decimal.NewFromInt(5000), PaidAmount: decimal.Zero, Status: models.InstallmentPending},
			{No: 2, Amount: decimal.NewFromInt(5000), PaidAmount: decimal.Zero, Status: models.InstallmentPending},
		},
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentActive, enrollment.Status)
	assert.Equal(t, enrollment.ID, enrollment.Schedule[1].EnrollmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateRollsBackOnInstallmentFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO installments").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Enrollment{
		Schedule: []models.Installment{{No: 1, Amount: decimal.NewFromInt(1), PaidAmount: decimal.Zero}},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateSchedule(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE installments SET paid_amount = $3, paid = $4, status = $5 WHERE enrollment_id = $1 AND no = $2")).
		WithArgs("enr-1", 1, sqlmock.AnyArg(), true, models.InstallmentPaid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2")).
		WithArgs("enr-1", models.EnrollmentCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateSchedule(context.Background(), "enr-1", []models.Installment{
		{No: 1, Amount: decimal.NewFromInt(100), PaidAmount: decimal.NewFromInt(100), Paid: true, Status: models.InstallmentPaid},
	}, models.EnrollmentCompleted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteCascadesPayments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE enrollment_id = $1")).WithArgs("enr-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM installments WHERE enrollment_id = $1")).WithArgs("enr-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).WithArgs("enr-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "enr-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM payments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM installments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM enrollments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
