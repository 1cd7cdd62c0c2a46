package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentSummary is the derived payment position of one enrollment.
type EnrollmentSummary struct {
	TotalFees             decimal.Decimal `json:"totalFees"`
	TotalPaid             decimal.Decimal `json:"totalPaid"`
	Remaining             decimal.Decimal `json:"remaining"`
	PaidInstallments      int             `json:"paidInstallments"`
	TotalInstallments     int             `json:"totalInstallments"`
	RemainingInstallments int             `json:"remainingInstallments"`
	OverdueInstallments   int             `json:"overdueInstallments"`
	CurrentInstallment    int             `json:"currentInstallment"`
	NextDueDate           *time.Time      `json:"nextDueDate,omitempty"`
	PercentagePaid        int             `json:"percentagePaid"`
	IsComplete            bool            `json:"isComplete"`
	PaymentStatus         string          `json:"paymentStatus"`
}

// StatusCounts tallies payments per normalised status.
type StatusCounts struct {
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Refunded  int `json:"refunded"`
}

// StatusAmounts sums payment amounts per normalised status.
type StatusAmounts struct {
	Completed decimal.Decimal `json:"completed"`
	Pending   decimal.Decimal `json:"pending"`
	Failed    decimal.Decimal `json:"failed"`
	Refunded  decimal.Decimal `json:"refunded"`
}

// PaymentListStatistics accompanies a payment listing.
type PaymentListStatistics struct {
	TotalPayments  int             `json:"totalPayments"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	SettledAmount  decimal.Decimal `json:"settledAmount"`
	AveragePayment decimal.Decimal `json:"averagePayment"`
	ByStatus       StatusCounts    `json:"byStatus"`
	AmountByStatus StatusAmounts   `json:"amountByStatus"`
}

// EnrollmentListStatistics accompanies an enrollment listing.
type EnrollmentListStatistics struct {
	TotalEnrollments         int             `json:"totalEnrollments"`
	TotalCourseFees          decimal.Decimal `json:"totalCourseFees"`
	TotalPaid                decimal.Decimal `json:"totalPaid"`
	TotalRemaining           decimal.Decimal `json:"totalRemaining"`
	AveragePaymentPercentage int             `json:"averagePaymentPercentage"`
	FullyPaid                int             `json:"fullyPaid"`
	PartiallyPaid            int             `json:"partiallyPaid"`
	NotPaid                  int             `json:"notPaid"`
}

// StatisticsOverview counts the main entities.
type StatisticsOverview struct {
	TotalStudents    int `json:"totalStudents"`
	TotalEnrollments int `json:"totalEnrollments"`
	TotalCourses     int `json:"totalCourses"`
	TotalPayments    int `json:"totalPayments"`
}

// FinancialStatistics sums money across the ledger.
type FinancialStatistics struct {
	TotalCourseFees decimal.Decimal `json:"totalCourseFees"`
	TotalPaid       decimal.Decimal `json:"totalPaid"`
	TotalPending    decimal.Decimal `json:"totalPending"`
	TotalFailed     decimal.Decimal `json:"totalFailed"`
	TotalRefunded   decimal.Decimal `json:"totalRefunded"`
	TotalRemaining  decimal.Decimal `json:"totalRemaining"`
}

// EnrollmentPaymentStatus buckets enrollments by how much has been paid.
type EnrollmentPaymentStatus struct {
	FullyPaid     int `json:"fullyPaid"`
	PartiallyPaid int `json:"partiallyPaid"`
	NotPaid       int `json:"notPaid"`
}

// TopStudent ranks students by settled payments.
type TopStudent struct {
	StudentID    string          `json:"studentId"`
	StudentName  string          `json:"studentName"`
	TotalPaid    decimal.Decimal `json:"totalPaid"`
	PaymentCount int             `json:"paymentCount"`
}

// TopCourse ranks courses by enrollment count.
type TopCourse struct {
	CourseID          string          `json:"courseId"`
	CourseTitle       string          `json:"courseTitle"`
	EnrollmentCount   int             `json:"enrollmentCount"`
	TotalFees         decimal.Decimal `json:"totalFees"`
	TotalPaid         decimal.Decimal `json:"totalPaid"`
	PaymentPercentage int             `json:"paymentPercentage"`
}

// Statistics is the cross-entity dashboard aggregate.
type Statistics struct {
	Overview         StatisticsOverview      `json:"overview"`
	Financial        FinancialStatistics     `json:"financial"`
	PaymentStatus    StatusCounts            `json:"paymentStatus"`
	PaymentMethods   map[string]int          `json:"paymentMethods"`
	PaymentSources   map[Source]int          `json:"paymentSources"`
	EnrollmentStatus EnrollmentPaymentStatus `json:"enrollmentStatus"`
	TopStudents      []TopStudent            `json:"topStudents"`
	TopCourses       []TopCourse             `json:"topCourses"`
	CollectionRate   int                     `json:"collectionRate"`
	GeneratedAt      time.Time               `json:"generatedAt"`
}

// EnrollmentBreakdown is one row of a student's per-course position.
type EnrollmentBreakdown struct {
	EnrollmentID       string          `json:"enrollmentId"`
	CourseID           string          `json:"courseId"`
	CourseTitle        string          `json:"courseTitle"`
	CourseFees         decimal.Decimal `json:"courseFees"`
	TotalInstallments  int             `json:"totalInstallments"`
	PaidInstallments   int             `json:"paidInstallments"`
	CurrentInstallment int             `json:"currentInstallment"`
	TotalPaid          decimal.Decimal `json:"totalPaid"`
	Remaining          decimal.Decimal `json:"remaining"`
	PercentagePaid     int             `json:"percentagePaid"`
}

// StudentStatistics totals a student's enrollments and payments.
type StudentStatistics struct {
	TotalEnrollments  int                   `json:"totalEnrollments"`
	TotalCourseFees   decimal.Decimal       `json:"totalCourseFees"`
	TotalPaid         decimal.Decimal       `json:"totalPaid"`
	TotalRemaining    decimal.Decimal       `json:"totalRemaining"`
	PaymentsByStatus  StatusCounts          `json:"paymentsByStatus"`
	EnrollmentDetails []EnrollmentBreakdown `json:"enrollmentBreakdown"`
}

// StudentOverview is the full profile served by the student detail endpoint.
type StudentOverview struct {
	Student     Student           `json:"student"`
	Enrollments []EnrollmentView  `json:"enrollments"`
	Payments    []Payment         `json:"payments"`
	Statistics  StudentStatistics `json:"statistics"`
}
