package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

var reconcileNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testEnrollment(t *testing.T, id string, price int64, count int) models.Enrollment {
	t.Helper()
	schedule, err := GenerateSchedule(dec(price), count, day(2025, 1, 15), day(2025, 6, 15))
	require.NoError(t, err)
	return models.Enrollment{
		ID:                   id,
		StudentID:            "student-" + id,
		CourseID:             "course-" + id,
		TotalAmount:          dec(price),
		SelectedInstallments: count,
		Status:               models.EnrollmentActive,
		Schedule:             schedule,
	}
}

func payment(enrollmentID string, no int, amount int64, status models.PaymentStatus, paidAt time.Time) models.Payment {
	return models.Payment{
		ID:            enrollmentID + "-" + paidAt.Format("0102150405"),
		EnrollmentID:  enrollmentID,
		InstallmentNo: no,
		Amount:        dec(amount),
		Method:        "online",
		Status:        status,
		Source:        models.SourceSelfService,
		PaidAt:        paidAt,
	}
}

func TestSummarizeTwoOfThreePaid(t *testing.T) {
	e := testEnrollment(t, "e1", 15000, 3)
	payments := []models.Payment{
		payment("e1", 1, 5000, models.PaymentCompleted, day(2025, 1, 15)),
		payment("e1", 2, 5000, models.PaymentSuccess, day(2025, 2, 20)),
	}

	summary := Summarize(e, payments, reconcileNow)

	assert.Equal(t, "10000", summary.TotalPaid.String())
	assert.Equal(t, "5000", summary.Remaining.String())
	assert.Equal(t, 67, summary.PercentagePaid)
	assert.Equal(t, 2, summary.PaidInstallments)
	assert.Equal(t, 1, summary.RemainingInstallments)
	assert.Equal(t, 3, summary.CurrentInstallment)
	assert.False(t, summary.IsComplete)
	assert.Equal(t, "1 remaining", summary.PaymentStatus)
	require.NotNil(t, summary.NextDueDate)
	assert.Equal(t, e.Schedule[2].DueDate, *summary.NextDueDate)
}

func TestSummarizeIgnoresUnsettledAndForeignPayments(t *testing.T) {
	e := testEnrollment(t, "e1", 15000, 3)
	payments := []models.Payment{
		payment("e1", 1, 5000, models.PaymentPending, day(2025, 1, 15)),
		payment("e1", 1, 5000, models.PaymentFailed, day(2025, 1, 16)),
		payment("e2", 1, 5000, models.PaymentCompleted, day(2025, 1, 17)),
	}

	summary := Summarize(e, payments, reconcileNow)
	assert.True(t, summary.TotalPaid.IsZero())
	assert.Equal(t, 0, summary.PaidInstallments)
	assert.Equal(t, 1, summary.CurrentInstallment)
	assert.Equal(t, 1, summary.OverdueInstallments, "installment 1 was due on Jan 15")
}

func TestSummarizeZeroFees(t *testing.T) {
	summary := Summarize(models.Enrollment{ID: "e0", TotalAmount: decimal.Zero}, nil, reconcileNow)
	assert.Equal(t, 0, summary.PercentagePaid)
	assert.True(t, summary.IsComplete)
	assert.Equal(t, "Complete", summary.PaymentStatus)
}

func TestApplyPaymentsAttributesAndSpills(t *testing.T) {
	e := testEnrollment(t, "e1", 15000, 3)
	payments := []models.Payment{
		payment("e1", 2, 7000, models.PaymentCompleted, day(2025, 2, 1)),
		payment("e1", 3, 9000, models.PaymentCompleted, day(2025, 2, 2)),
	}

	schedule := ApplyPayments(e.Schedule, payments, reconcileNow)

	// 7000 -> #2 (5000) spills 2000 to #3; 9000 -> #3 (3000) wraps 5000 to #1, 1000 dropped.
	assert.Equal(t, "5000", schedule[0].PaidAmount.String())
	assert.Equal(t, "5000", schedule[1].PaidAmount.String())
	assert.Equal(t, "5000", schedule[2].PaidAmount.String())
	for _, inst := range schedule {
		assert.True(t, inst.Paid)
		assert.Equal(t, models.InstallmentPaid, inst.Status)
	}
	assert.True(t, e.Schedule[0].PaidAmount.IsZero(), "input schedule must not be mutated")
}

func TestApplyPaymentsMarksOverdue(t *testing.T) {
	e := testEnrollment(t, "e1", 15000, 3)
	schedule := ApplyPayments(e.Schedule, []models.Payment{
		payment("e1", 1, 2000, models.PaymentCompleted, day(2025, 1, 10)),
	}, reconcileNow)

	assert.Equal(t, models.InstallmentOverdue, schedule[0].Status)
	assert.Equal(t, "2000", schedule[0].PaidAmount.String())
	assert.Equal(t, models.InstallmentPending, schedule[1].Status, "due Mar 6 is after today")
}

func TestApplyPaymentsUnknownInstallmentStartsAtFirst(t *testing.T) {
	e := testEnrollment(t, "e1", 15000, 3)
	schedule := ApplyPayments(e.Schedule, []models.Payment{
		payment("e1", 9, 6000, models.PaymentCompleted, day(2025, 1, 10)),
	}, reconcileNow)

	assert.True(t, schedule[0].Paid)
	assert.Equal(t, "1000", schedule[1].PaidAmount.String())
}

func TestApplyPaymentsWrapsExcessFromLastInstallment(t *testing.T) {
	e := testEnrollment(t, "e1", 15000, 3)

	schedule := ApplyPayments(e.Schedule, []models.Payment{
		payment("e1", 3, 12000, models.PaymentCompleted, day(2025, 1, 10)),
	}, reconcileNow)
	assert.Equal(t, []string{"5000", "2000", "5000"}, []string{
		schedule[0].PaidAmount.String(), schedule[1].PaidAmount.String(), schedule[2].PaidAmount.String(),
	})
	assert.True(t, schedule[0].Paid)
	assert.False(t, schedule[1].Paid)
	assert.True(t, schedule[2].Paid)

	overpaid := ApplyPayments(e.Schedule, []models.Payment{
		payment("e1", 3, 20000, models.PaymentCompleted, day(2025, 1, 10)),
	}, reconcileNow)
	applied := decimal.Zero
	for _, inst := range overpaid {
		assert.True(t, inst.Paid)
		applied = applied.Add(inst.PaidAmount)
	}
	assert.Equal(t, "15000", applied.String())
}

func TestReconciliationProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []models.PaymentStatus{models.PaymentCompleted, models.PaymentPending, models.PaymentFailed, models.PaymentRefunded, models.PaymentSuccess}

	for iter := 0; iter < 200; iter++ {
		count := 1 + rng.Intn(12)
		price := int64(count) * int64(100+rng.Intn(5000))
		e := testEnrollment(t, "prop", price, count)

		payments := make([]models.Payment, rng.Intn(8))
		for i := range payments {
			payments[i] = payment("prop", 1+rng.Intn(count+1), int64(1+rng.Intn(int(price))), statuses[rng.Intn(len(statuses))],
				day(2025, 1, 1).Add(time.Duration(rng.Intn(3000))*time.Hour))
		}

		first := Summarize(e, payments, reconcileNow)
		second := Summarize(e, payments, reconcileNow)
		assert.Equal(t, first, second, "summaries must be idempotent")
		assert.False(t, first.Remaining.IsNegative(), "remaining must never be negative")

		schedule := ApplyPayments(e.Schedule, payments, reconcileNow)
		allPaid := true
		for _, inst := range schedule {
			if inst.PaidAmount.LessThan(inst.Amount) {
				allPaid = false
			}
			assert.False(t, inst.PaidAmount.GreaterThan(inst.Amount), "installment over-applied")
		}
		assert.Equal(t, allPaid, first.IsComplete, "isComplete must match a fully paid schedule")
	}
}

func TestPaymentListStatisticsOf(t *testing.T) {
	stats := PaymentListStatisticsOf([]models.Payment{
		payment("e1", 1, 5000, models.PaymentCompleted, day(2025, 1, 1)),
		payment("e1", 2, 3000, models.PaymentSuccess, day(2025, 1, 2)),
		payment("e1", 3, 1000, models.PaymentPending, day(2025, 1, 3)),
		payment("e1", 3, 700, models.PaymentRefunded, day(2025, 1, 4)),
	})

	assert.Equal(t, 4, stats.TotalPayments)
	assert.Equal(t, "9700", stats.TotalAmount.String())
	assert.Equal(t, "8000", stats.SettledAmount.String())
	assert.Equal(t, "4000", stats.AveragePayment.String())
	assert.Equal(t, models.StatusCounts{Completed: 2, Pending: 1, Refunded: 1}, stats.ByStatus)
	assert.Equal(t, "1000", stats.AmountByStatus.Pending.String())
}

func TestBuildStatistics(t *testing.T) {
	e1 := testEnrollment(t, "e1", 15000, 3)
	e1.StudentID, e1.CourseID = "s1", "c1"
	e2 := testEnrollment(t, "e2", 10000, 2)
	e2.StudentID, e2.CourseID = "s2", "c1"
	e3 := testEnrollment(t, "e3", 20000, 4)
	e3.StudentID, e3.CourseID = "s1", "c2"

	in := StatisticsInput{
		Enrollments: []models.Enrollment{e1, e2, e3},
		Payments: []models.Payment{
			payment("e1", 1, 15000, models.PaymentCompleted, day(2025, 1, 1)),
			payment("e2", 1, 5000, models.PaymentCompleted, day(2025, 1, 2)),
			payment("e2", 2, 5000, models.PaymentPending, day(2025, 1, 3)),
			{ID: "bank", EnrollmentID: "e3", InstallmentNo: 1, Amount: dec(100), Method: "Bank Transfer", Status: models.PaymentFailed, Source: models.SourceAdminEntered},
		},
		Students: map[string]models.Student{"s1": {ID: "s1", Name: "Asha"}},
		Courses:  map[string]models.Course{"c1": {ID: "c1", Title: "Go Basics"}},
	}

	stats := BuildStatistics(in, reconcileNow)

	assert.Equal(t, models.StatisticsOverview{TotalStudents: 2, TotalEnrollments: 3, TotalCourses: 2, TotalPayments: 4}, stats.Overview)
	assert.Equal(t, "45000", stats.Financial.TotalCourseFees.String())
	assert.Equal(t, "20000", stats.Financial.TotalPaid.String())
	assert.Equal(t, "5000", stats.Financial.TotalPending.String())
	assert.Equal(t, "25000", stats.Financial.TotalRemaining.String())
	assert.Equal(t, 44, stats.CollectionRate)
	assert.Equal(t, models.EnrollmentPaymentStatus{FullyPaid: 1, PartiallyPaid: 1, NotPaid: 1}, stats.EnrollmentStatus)
	assert.Equal(t, 3, stats.PaymentMethods["online"])
	assert.Equal(t, 1, stats.PaymentMethods["bankTransfer"])
	assert.Equal(t, 1, stats.PaymentSources[models.SourceAdminEntered])

	require.Len(t, stats.TopStudents, 2)
	assert.Equal(t, "s1", stats.TopStudents[0].StudentID)
	assert.Equal(t, "Asha", stats.TopStudents[0].StudentName)
	assert.Equal(t, unknownName, stats.TopStudents[1].StudentName)

	require.Len(t, stats.TopCourses, 2)
	assert.Equal(t, "c1", stats.TopCourses[0].CourseID)
	assert.Equal(t, 2, stats.TopCourses[0].EnrollmentCount)
	assert.Equal(t, 80, stats.TopCourses[0].PaymentPercentage)
	assert.Equal(t, unknownName, stats.TopCourses[1].CourseTitle)

	assert.Equal(t, stats, BuildStatistics(in, reconcileNow), "statistics must be idempotent")
}

func TestBuildStatisticsEmpty(t *testing.T) {
	stats := BuildStatistics(StatisticsInput{}, reconcileNow)
	assert.Equal(t, 0, stats.CollectionRate)
	assert.Empty(t, stats.TopStudents)
	assert.NotNil(t, stats.TopCourses)
}

func TestEnrollmentListStatisticsOf(t *testing.T) {
	views := []models.EnrollmentView{
		{PaymentInfo: models.EnrollmentSummary{TotalFees: dec(100), TotalPaid: dec(100), Remaining: decimal.Zero, PercentagePaid: 100, IsComplete: true}},
		{PaymentInfo: models.EnrollmentSummary{TotalFees: dec(100), TotalPaid: dec(25), Remaining: dec(75), PercentagePaid: 25}},
		{PaymentInfo: models.EnrollmentSummary{TotalFees: dec(100), TotalPaid: decimal.Zero, Remaining: dec(100)}},
	}
	stats := EnrollmentListStatisticsOf(views)
	assert.Equal(t, 42, stats.AveragePaymentPercentage)
	assert.Equal(t, "175", stats.TotalRemaining.String())
	assert.Equal(t, 1, stats.FullyPaid)
	assert.Equal(t, 1, stats.PartiallyPaid)
	assert.Equal(t, 1, stats.NotPaid)
}

func TestMethodBucket(t *testing.T) {
	assert.Equal(t, "creditCard", methodBucket("Credit Card"))
	assert.Equal(t, "upi", methodBucket(" UPI "))
	assert.Equal(t, "other", methodBucket("barter"))
}
