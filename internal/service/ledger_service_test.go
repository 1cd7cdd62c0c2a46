package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

func TestLedgerServiceRecordTwoInstallments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.enroll(t, "jane@example.com", 3)

	first := f.pay(t, view.ID, 1, 5000)
	f.pay(t, view.ID, 2, 5000)

	assert.Regexp(t, `^PAY-`, first.ID)
	assert.Regexp(t, `^RCP-\d{14}-[0-9A-Z]{6}$`, first.ReceiptID)
	assert.Equal(t, models.PaymentCompleted, first.Status)
	assert.Equal(t, f.clock, first.PaidAt)

	summary, err := f.enrollments.Summary(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, summary.TotalPaid.Equal(decimal.NewFromInt(10000)))
	assert.True(t, summary.Remaining.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 67, summary.PercentagePaid)
	assert.Equal(t, 2, summary.PaidInstallments)
	assert.Equal(t, 3, summary.CurrentInstallment)
	assert.False(t, summary.IsComplete)

	stored, err := f.store.Enrollments().FindByID(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, stored.Schedule[0].Paid)
	assert.True(t, stored.Schedule[1].Paid)
	assert.False(t, stored.Schedule[2].Paid)
	assert.Contains(t, f.auditActions(t, first.ID), models.AuditPaymentRecorded)
}

func TestLedgerServiceRecordValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.enroll(t, "jane@example.com", 3)
	f.pay(t, view.ID, 1, 5000)

	cases := []struct {
		name string
		req  RecordPaymentRequest
		want *appErrors.Error
	}{
		{"zero amount", RecordPaymentRequest{EnrollmentID: view.ID, InstallmentNo: 1, Method: "cash"}, appErrors.ErrValidation},
		{"missing method", RecordPaymentRequest{EnrollmentID: view.ID, InstallmentNo: 1, Amount: decimal.NewFromInt(1)}, appErrors.ErrValidation},
		{"unknown status", RecordPaymentRequest{EnrollmentID: view.ID, InstallmentNo: 1, Amount: decimal.NewFromInt(1), Method: "cash", Status: "bounced"}, appErrors.ErrValidation},
		{"installment outside schedule", RecordPaymentRequest{EnrollmentID: view.ID, InstallmentNo: 4, Amount: decimal.NewFromInt(1), Method: "cash"}, appErrors.ErrValidation},
		{"unknown enrollment", RecordPaymentRequest{EnrollmentID: "ghost", InstallmentNo: 1, Amount: decimal.NewFromInt(1), Method: "cash"}, appErrors.ErrNotFound},
		{"exceeds balance", RecordPaymentRequest{EnrollmentID: view.ID, InstallmentNo: 2, Amount: decimal.NewFromInt(10001), Method: "cash"}, appErrors.ErrOverpayment},
		{"pending exceeds balance", RecordPaymentRequest{EnrollmentID: view.ID, InstallmentNo: 2, Amount: decimal.NewFromInt(10001), Method: "cash", Status: "pending"}, appErrors.ErrOverpayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payment, err := f.ledger.Record(ctx, tc.req)
			assert.Nil(t, payment)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	failed, err := f.ledger.Record(ctx, RecordPaymentRequest{EnrollmentID: view.ID, InstallmentNo: 2, Amount: decimal.NewFromInt(20000), Method: "card", Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.Status)
}

func TestLedgerServiceRecordNormalisesSuccess(t *testing.T) {
	f := newFixture(t)
	view := f.enroll(t, "jane@example.com", 1)
	paidAt := time.Date(2026, 1, 5, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))

	payment, err := f.ledger.Record(context.Background(), RecordPaymentRequest{
		EnrollmentID:  view.ID,
		InstallmentNo: 1,
		Amount:        decimal.NewFromInt(15000),
		Method:        "UPI",
		Status:        "SUCCESS",
		Source:        models.SourceAdminEntered,
		PaidAt:        &paidAt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	assert.Equal(t, time.UTC, payment.PaidAt.Location())
	assert.True(t, payment.PaidAt.Equal(paidAt))

	got, err := f.enrollments.Get(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, got.Status)
	assert.True(t, got.PaymentInfo.IsComplete)
	assert.Equal(t, "Complete", got.PaymentInfo.PaymentStatus)
}

func TestLedgerServiceRefundReopensEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.enroll(t, "jane@example.com", 3)
	payment := f.pay(t, view.ID, 1, 15000)

	full, err := f.enrollments.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, full.Status)
	assert.Equal(t, 3, full.PaymentInfo.PaidInstallments)

	refunded := "refunded"
	updated, err := f.ledger.Update(ctx, payment.ID, UpdatePaymentRequest{Status: &refunded, ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, updated.Status)
	assert.Equal(t, "admin-1", updated.UpdatedBy)

	reopened, err := f.enrollments.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, reopened.Status)
	assert.Equal(t, 0, reopened.PaymentInfo.PaidInstallments)
	assert.Equal(t, models.InstallmentOverdue, reopened.Schedule[0].Status)
	assert.ElementsMatch(t, []string{models.AuditPaymentRecorded, models.AuditPaymentUpdated}, f.auditActions(t, payment.ID))
}

func TestLedgerServiceUpdateChecksBalanceExcludingItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.enroll(t, "jane@example.com", 3)
	first := f.pay(t, view.ID, 1, 5000)
	f.pay(t, view.ID, 2, 5000)

	amount := decimal.NewFromInt(10000)
	updated, err := f.ledger.Update(ctx, first.ID, UpdatePaymentRequest{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))

	tooMuch := decimal.NewFromInt(10001)
	_, err = f.ledger.Update(ctx, first.ID, UpdatePaymentRequest{Amount: &tooMuch})
	assert.True(t, errors.Is(err, appErrors.ErrOverpayment))

	zero := decimal.Zero
	_, err = f.ledger.Update(ctx, first.ID, UpdatePaymentRequest{Amount: &zero})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.ledger.Update(ctx, "PAY-missing", UpdatePaymentRequest{Amount: &amount})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLedgerServiceRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.enroll(t, "jane@example.com", 3)
	payment := f.pay(t, view.ID, 1, 5000)

	require.NoError(t, f.ledger.Remove(ctx, payment.ID, "admin-1"))
	assert.True(t, errors.Is(f.ledger.Remove(ctx, payment.ID, "admin-1"), appErrors.ErrNotFound))

	stored, err := f.store.Enrollments().FindByID(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, stored.Schedule[0].Paid)
	assert.Contains(t, f.auditActions(t, payment.ID), models.AuditPaymentDeleted)
}

func TestLedgerServiceListAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.enroll(t, "a@example.com", 3)
	b := f.enroll(t, "b@example.com", 3)
	f.pay(t, a.ID, 1, 5000)
	f.clock = f.clock.Add(time.Hour)
	f.pay(t, a.ID, 2, 5000)
	_, err := f.ledger.Record(ctx, RecordPaymentRequest{EnrollmentID: b.ID, InstallmentNo: 1, Amount: decimal.NewFromInt(2000), Method: "cash", Status: "pending"})
	require.NoError(t, err)

	all, err := f.ledger.List(ctx, models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)
	assert.Equal(t, 2, all.Statistics.ByStatus.Completed)
	assert.Equal(t, 1, all.Statistics.ByStatus.Pending)
	assert.True(t, all.Statistics.TotalAmount.Equal(decimal.NewFromInt(12000)))

	byStudent, err := f.ledger.List(ctx, models.PaymentFilter{StudentID: a.StudentID})
	require.NoError(t, err)
	require.Len(t, byStudent.Items, 2)
	assert.Equal(t, "Go Foundations", byStudent.Items[0].Enrollment.Course.Title)
	assert.Equal(t, "a@example.com", byStudent.Items[0].Enrollment.Student.Email)

	pending, err := f.ledger.List(ctx, models.PaymentFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, pending.Items, 1)

	_, err = f.ledger.List(ctx, models.PaymentFilter{Status: "bogus"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	history, err := f.ledger.History(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].InstallmentNo)

	_, err = f.ledger.History(ctx, "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

type failingScheduleStore struct {
	enrollmentStore
}

func (failingScheduleStore) UpdateSchedule(context.Context, string, []models.Installment, models.EnrollmentStatus) error {
	return errors.New("schedule write timed out")
}

func TestLedgerServiceRecordKeepsPaymentWhenReconcileFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.enroll(t, "jane@example.com", 3)

	enrollments := failingScheduleStore{enrollmentStore: f.store.Enrollments()}
	reconciler := NewReconciliationService(enrollments, f.store.Payments(), f.store.Students(), f.store.Courses(), nil, nil, nil)
	ledger := NewLedgerService(f.store.Payments(), enrollments, reconciler, f.audit, nil, nil, nil, nil)

	payment, err := ledger.Record(ctx, RecordPaymentRequest{
		EnrollmentID:  view.ID,
		InstallmentNo: 1,
		Amount:        decimal.NewFromInt(5000),
		Method:        "cash",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ReceiptID)
	assert.Contains(t, f.auditActions(t, payment.ID), models.AuditPaymentRecorded)

	history, err := f.ledger.History(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	stored, err := f.store.Enrollments().FindByID(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, stored.Schedule[0].Paid)

	repaired, err := f.reconciler.Reconcile(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, repaired.Schedule[0].Paid)
}
