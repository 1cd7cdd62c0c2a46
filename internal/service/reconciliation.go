package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

const (
	topRankingSize = 5
	unknownName    = "Unknown"
)

// ApplyPayments replays settled payments onto a copy of schedule in paidAt
// order. Each payment lands on its attributed installment first; any excess
// flows to the following unpaid installments and then wraps to earlier ones.
// Money beyond the whole schedule is dropped. The input slices are not modified.
func ApplyPayments(schedule []models.Installment, payments []models.Payment, now time.Time) []models.Installment {
	out := make([]models.Installment, len(schedule))
	copy(out, schedule)
	sort.SliceStable(out, func(i, j int) bool { return out[i].No < out[j].No })

	position := make(map[int]int, len(out))
	for i := range out {
		out[i].PaidAmount = decimal.Zero
		position[out[i].No] = i
	}

	for _, p := range settledInPaidOrder(payments) {
		remaining := p.Amount
		start := position[p.InstallmentNo]
		for step := 0; step < len(out) && remaining.IsPositive(); step++ {
			i := (start + step) % len(out)
			due := out[i].Outstanding()
			if !due.IsPositive() {
				continue
			}
			applied := decimal.Min(due, remaining)
			out[i].PaidAmount = out[i].PaidAmount.Add(applied)
			remaining = remaining.Sub(applied)
		}
	}

	today := truncateDay(now)
	for i := range out {
		out[i].Paid = out[i].PaidAmount.GreaterThanOrEqual(out[i].Amount)
		switch {
		case out[i].Paid:
			out[i].Status = models.InstallmentPaid
		case truncateDay(out[i].DueDate).Before(today):
			out[i].Status = models.InstallmentOverdue
		default:
			out[i].Status = models.InstallmentPending
		}
	}
	return out
}

func settledInPaidOrder(payments []models.Payment) []models.Payment {
	settled := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if p.Status.Settled() && p.Amount.IsPositive() {
			settled = append(settled, p)
		}
	}
	sort.SliceStable(settled, func(i, j int) bool {
		if !settled[i].PaidAt.Equal(settled[j].PaidAt) {
			return settled[i].PaidAt.Before(settled[j].PaidAt)
		}
		return settled[i].CreatedAt.Before(settled[j].CreatedAt)
	})
	return settled
}

// SettledTotal sums payments that count toward the amount paid.
func SettledTotal(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status.Settled() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Summarize derives an enrollment's payment position from its own payments.
// Payments belonging to other enrollments are ignored.
func Summarize(enrollment models.Enrollment, payments []models.Payment, now time.Time) models.EnrollmentSummary {
	own := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if p.EnrollmentID == enrollment.ID {
			own = append(own, p)
		}
	}

	schedule := ApplyPayments(enrollment.Schedule, own, now)
	totalPaid := SettledTotal(own)
	remaining := models.NonNegative(enrollment.TotalAmount.Sub(totalPaid))

	summary := models.EnrollmentSummary{
		TotalFees:         enrollment.TotalAmount,
		TotalPaid:         totalPaid,
		Remaining:         remaining,
		TotalInstallments: len(schedule),
		PercentagePaid:    models.Percent(totalPaid, enrollment.TotalAmount),
		IsComplete:        remaining.IsZero(),
	}
	if summary.TotalInstallments == 0 {
		summary.TotalInstallments = enrollment.SelectedInstallments
	}

	for _, inst := range schedule {
		switch inst.Status {
		case models.InstallmentPaid:
			summary.PaidInstallments++
		case models.InstallmentOverdue:
			summary.OverdueInstallments++
		}
		if !inst.Paid && summary.CurrentInstallment == 0 {
			summary.CurrentInstallment = inst.No
			due := inst.DueDate
			summary.NextDueDate = &due
		}
	}
	summary.RemainingInstallments = summary.TotalInstallments - summary.PaidInstallments
	if summary.RemainingInstallments < 0 {
		summary.RemainingInstallments = 0
	}

	if summary.IsComplete {
		summary.PaymentStatus = "Complete"
	} else {
		summary.PaymentStatus = fmt.Sprintf("%d remaining", summary.RemainingInstallments)
	}
	return summary
}

// PaymentListStatisticsOf tallies a payment listing by status.
func PaymentListStatisticsOf(payments []models.Payment) models.PaymentListStatistics {
	stats := models.PaymentListStatistics{
		TotalPayments:  len(payments),
		TotalAmount:    decimal.Zero,
		SettledAmount:  decimal.Zero,
		AveragePayment: decimal.Zero,
		AmountByStatus: models.StatusAmounts{
			Completed: decimal.Zero,
			Pending:   decimal.Zero,
			Failed:    decimal.Zero,
			Refunded:  decimal.Zero,
		},
	}
	for _, p := range payments {
		stats.TotalAmount = stats.TotalAmount.Add(p.Amount)
		countStatus(&stats.ByStatus, &stats.AmountByStatus, p)
	}
	stats.SettledAmount = stats.AmountByStatus.Completed
	if stats.ByStatus.Completed > 0 {
		stats.AveragePayment = stats.SettledAmount.Div(decimal.NewFromInt(int64(stats.ByStatus.Completed))).Round(2)
	}
	return stats
}

func countStatus(counts *models.StatusCounts, amounts *models.StatusAmounts, p models.Payment) {
	switch {
	case p.Status.Settled():
		counts.Completed++
		amounts.Completed = amounts.Completed.Add(p.Amount)
	case p.Status == models.PaymentPending:
		counts.Pending++
		amounts.Pending = amounts.Pending.Add(p.Amount)
	case p.Status == models.PaymentFailed:
		counts.Failed++
		amounts.Failed = amounts.Failed.Add(p.Amount)
	case p.Status == models.PaymentRefunded:
		counts.Refunded++
		amounts.Refunded = amounts.Refunded.Add(p.Amount)
	}
}

// StatisticsInput is the snapshot BuildStatistics aggregates over.
type StatisticsInput struct {
	Enrollments []models.Enrollment
	Payments    []models.Payment
	Students    map[string]models.Student
	Courses     map[string]models.Course
}

// BuildStatistics aggregates the whole ledger. It is deterministic for a
// given input and now; rankings break ties by ID.
func BuildStatistics(in StatisticsInput, now time.Time) models.Statistics {
	stats := models.Statistics{
		PaymentMethods: make(map[string]int),
		PaymentSources: make(map[models.Source]int),
		TopStudents:    []models.TopStudent{},
		TopCourses:     []models.TopCourse{},
		GeneratedAt:    now.UTC(),
	}
	var amounts models.StatusAmounts
	zeroAmounts(&amounts)

	enrollmentByID := make(map[string]models.Enrollment, len(in.Enrollments))
	paidByEnrollment := make(map[string]decimal.Decimal, len(in.Enrollments))
	students := make(map[string]struct{})
	courses := make(map[string]struct{})
	totalFees := decimal.Zero
	for _, e := range in.Enrollments {
		enrollmentByID[e.ID] = e
		paidByEnrollment[e.ID] = decimal.Zero
		students[e.StudentID] = struct{}{}
		courses[e.CourseID] = struct{}{}
		totalFees = totalFees.Add(e.TotalAmount)
	}

	type studentTotals struct {
		paid  decimal.Decimal
		count int
	}
	byStudent := make(map[string]*studentTotals)
	for _, p := range in.Payments {
		countStatus(&stats.PaymentStatus, &amounts, p)
		stats.PaymentMethods[methodBucket(p.Method)]++
		stats.PaymentSources[p.Source]++
		if !p.Status.Settled() {
			continue
		}
		e, ok := enrollmentByID[p.EnrollmentID]
		if !ok {
			continue
		}
		paidByEnrollment[e.ID] = paidByEnrollment[e.ID].Add(p.Amount)
		st := byStudent[e.StudentID]
		if st == nil {
			st = &studentTotals{paid: decimal.Zero}
			byStudent[e.StudentID] = st
		}
		st.paid = st.paid.Add(p.Amount)
		st.count++
	}

	stats.Overview = models.StatisticsOverview{
		TotalStudents:    len(students),
		TotalEnrollments: len(in.Enrollments),
		TotalCourses:     len(courses),
		TotalPayments:    len(in.Payments),
	}
	stats.Financial = models.FinancialStatistics{
		TotalCourseFees: totalFees,
		TotalPaid:       amounts.Completed,
		TotalPending:    amounts.Pending,
		TotalFailed:     amounts.Failed,
		TotalRefunded:   amounts.Refunded,
		TotalRemaining:  models.NonNegative(totalFees.Sub(amounts.Completed)),
	}
	stats.CollectionRate = models.Percent(amounts.Completed, totalFees)

	for _, e := range in.Enrollments {
		paid := paidByEnrollment[e.ID]
		switch {
		case paid.GreaterThanOrEqual(e.TotalAmount):
			stats.EnrollmentStatus.FullyPaid++
		case paid.IsPositive():
			stats.EnrollmentStatus.PartiallyPaid++
		default:
			stats.EnrollmentStatus.NotPaid++
		}
	}

	for id, totals := range byStudent {
		name := unknownName
		if s, ok := in.Students[id]; ok {
			name = s.Name
		}
		stats.TopStudents = append(stats.TopStudents, models.TopStudent{
			StudentID:    id,
			StudentName:  name,
			TotalPaid:    totals.paid,
			PaymentCount: totals.count,
		})
	}
	sort.Slice(stats.TopStudents, func(i, j int) bool {
		a, b := stats.TopStudents[i], stats.TopStudents[j]
		if c := a.TotalPaid.Cmp(b.TotalPaid); c != 0 {
			return c > 0
		}
		return a.StudentID < b.StudentID
	})
	if len(stats.TopStudents) > topRankingSize {
		stats.TopStudents = stats.TopStudents[:topRankingSize]
	}

	byCourse := make(map[string]*models.TopCourse)
	for _, e := range in.Enrollments {
		tc := byCourse[e.CourseID]
		if tc == nil {
			title := unknownName
			if c, ok := in.Courses[e.CourseID]; ok {
				title = c.Title
			}
			tc = &models.TopCourse{CourseID: e.CourseID, CourseTitle: title, TotalFees: decimal.Zero, TotalPaid: decimal.Zero}
			byCourse[e.CourseID] = tc
		}
		tc.EnrollmentCount++
		tc.TotalFees = tc.TotalFees.Add(e.TotalAmount)
		tc.TotalPaid = tc.TotalPaid.Add(paidByEnrollment[e.ID])
	}
	for _, tc := range byCourse {
		tc.PaymentPercentage = models.Percent(tc.TotalPaid, tc.TotalFees)
		stats.TopCourses = append(stats.TopCourses, *tc)
	}
	sort.Slice(stats.TopCourses, func(i, j int) bool {
		a, b := stats.TopCourses[i], stats.TopCourses[j]
		if a.EnrollmentCount != b.EnrollmentCount {
			return a.EnrollmentCount > b.EnrollmentCount
		}
		return a.CourseID < b.CourseID
	})
	if len(stats.TopCourses) > topRankingSize {
		stats.TopCourses = stats.TopCourses[:topRankingSize]
	}

	return stats
}

// EnrollmentListStatisticsOf totals a page of enrollment views.
func EnrollmentListStatisticsOf(views []models.EnrollmentView) models.EnrollmentListStatistics {
	stats := models.EnrollmentListStatistics{
		TotalEnrollments: len(views),
		TotalCourseFees:  decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalRemaining:   decimal.Zero,
	}
	percentSum := 0
	for _, v := range views {
		info := v.PaymentInfo
		stats.TotalCourseFees = stats.TotalCourseFees.Add(info.TotalFees)
		stats.TotalPaid = stats.TotalPaid.Add(info.TotalPaid)
		stats.TotalRemaining = stats.TotalRemaining.Add(info.Remaining)
		percentSum += info.PercentagePaid
		switch {
		case info.IsComplete:
			stats.FullyPaid++
		case info.TotalPaid.IsPositive():
			stats.PartiallyPaid++
		default:
			stats.NotPaid++
		}
	}
	if len(views) > 0 {
		stats.AveragePaymentPercentage = int(decimal.NewFromInt(int64(percentSum)).
			Div(decimal.NewFromInt(int64(len(views)))).Round(0).IntPart())
	}
	return stats
}

func zeroAmounts(a *models.StatusAmounts) {
	a.Completed, a.Pending, a.Failed, a.Refunded = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
}

// methodBucket folds free-text payment methods into the dashboard buckets.
func methodBucket(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	switch {
	case m == "":
		return "other"
	case m == "online" || m == "offline" || m == "upi" || m == "cash" || m == "cheque":
		return m
	case strings.Contains(m, "bank") || strings.Contains(m, "transfer"):
		return "bankTransfer"
	case strings.Contains(m, "card"):
		return "creditCard"
	default:
		return "other"
	}
}
