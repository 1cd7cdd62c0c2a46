package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus describes the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// InstallmentStatus is derived from the paid flag and the due date.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentOverdue InstallmentStatus = "overdue"
	InstallmentPaid    InstallmentStatus = "paid"
)

// Installment is one scheduled portion of an enrollment's fee.
type Installment struct {
	EnrollmentID string            `db:"enrollment_id" json:"-"`
	No           int               `db:"no" json:"no"`
	Amount       decimal.Decimal   `db:"amount" json:"amount"`
	DueDate      time.Time         `db:"due_date" json:"dueDate"`
	PaidAmount   decimal.Decimal   `db:"paid_amount" json:"paidAmount"`
	Paid         bool              `db:"paid" json:"paid"`
	Status       InstallmentStatus `db:"status" json:"status"`
}

// Outstanding returns the unpaid part of the installment, never negative.
func (i Installment) Outstanding() decimal.Decimal {
	return NonNegative(i.Amount.Sub(i.PaidAmount))
}

// Enrollment binds a student to a course with a chosen installment plan.
type Enrollment struct {
	ID                   string           `db:"id" json:"id"`
	StudentID            string           `db:"student_id" json:"studentId"`
	CourseID             string           `db:"course_id" json:"courseId"`
	TotalAmount          decimal.Decimal  `db:"total_amount" json:"totalAmount"`
	SelectedInstallments int              `db:"selected_installments" json:"selectedInstallments"`
	Status               EnrollmentStatus `db:"status" json:"status"`
	Source               Source           `db:"source" json:"source"`
	Notes                string           `db:"notes" json:"notes,omitempty"`
	CreatedBy            string           `db:"created_by" json:"createdBy,omitempty"`
	Schedule             []Installment    `db:"-" json:"schedule"`
	CreatedAt            time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updatedAt"`
}

// Clone returns a copy whose schedule does not alias the receiver's.
func (e Enrollment) Clone() Enrollment {
	if e.Schedule != nil {
		e.Schedule = append([]Installment(nil), e.Schedule...)
	}
	return e
}

// EnrollmentFilter captures filtering criteria for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Search    string
	Page      int
	PageSize  int
}

// CourseRef is the display projection of a course.
type CourseRef struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	Instructor string          `json:"instructor,omitempty"`
}

// EnrollmentView is an enrollment enriched with display references and its payment summary.
type EnrollmentView struct {
	Enrollment
	Student     StudentRef        `json:"student"`
	Course      CourseRef         `json:"course"`
	PaymentInfo EnrollmentSummary `json:"paymentInfo"`
}

// PendingInstallment is an unpaid installment listed across enrollments.
type PendingInstallment struct {
	EnrollmentID string            `json:"enrollmentId"`
	Student      StudentRef        `json:"student"`
	Course       CourseRef         `json:"course"`
	No           int               `json:"installmentNo"`
	Amount       decimal.Decimal   `json:"amount"`
	PaidAmount   decimal.Decimal   `json:"paidAmount"`
	Outstanding  decimal.Decimal   `json:"outstanding"`
	DueDate      time.Time         `json:"dueDate"`
	Status       InstallmentStatus `json:"status"`
	DaysOverdue  int               `json:"daysOverdue"`
}
