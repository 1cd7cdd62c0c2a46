package repository

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

var paymentRowColumns = []string{"id", "receipt_id", "enrollment_id", "installment_no", "amount", "method", "status", "source", "txn_ref", "notes", "paid_at", "created_by", "updated_by", "created_at", "updated_at"}

func TestPaymentRepositoryListResolvesStudentThroughEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments p JOIN enrollments e ON e.id = p.enrollment_id WHERE e.student_id = $1 AND p.status = $2 AND p.source = $3 AND LOWER(p.method) = LOWER($4) ORDER BY p.paid_at DESC")).
		WithArgs("student-001", models.PaymentCompleted, models.SourceSelfService, "online").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow("PAY-1", "RCP-1", "enr-1", 1, "5000", "online", "completed", "self_service", "txn", "", now, "", "", now, now))

	payments, err := repo.List(context.Background(), models.PaymentFilter{
		StudentID: "student-001",
		Status:    models.PaymentCompleted,
		Source:    models.SourceSelfService,
		Method:    " online ",
	})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "RCP-1", payments[0].ReceiptID)
	assert.True(t, payments[0].Amount.Equal(decimal.NewFromInt(5000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateAssignsIdentifiers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{ReceiptID: "RCP-1", EnrollmentID: "enr-1", InstallmentNo: 1, Amount: decimal.NewFromInt(10)}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.True(t, strings.HasPrefix(payment.ID, "PAY-"))
	assert.False(t, payment.PaidAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("UPDATE payments SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Payment{ID: "ghost", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).WithArgs("PAY-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).WithArgs("PAY-1").WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Delete(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
