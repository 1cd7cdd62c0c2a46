package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags where an enrollment or payment entered the system.
type Source string

const (
	SourceSelfService  Source = "self_service"
	SourceAdminEntered Source = "admin_entered"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"

	// PaymentSuccess is the portal's historical spelling of completed.
	PaymentSuccess PaymentStatus = "success"
)

// ParsePaymentStatus normalises raw input, folding success into completed.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentCompleted, PaymentSuccess:
		return PaymentCompleted, true
	case PaymentPending:
		return PaymentPending, true
	case PaymentFailed:
		return PaymentFailed, true
	case PaymentRefunded:
		return PaymentRefunded, true
	default:
		return "", false
	}
}

// Settled reports whether the payment counts toward the amount paid.
func (s PaymentStatus) Settled() bool {
	return s == PaymentCompleted || s == PaymentSuccess
}

// Payment is a single ledger entry attributed to one installment.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	ReceiptID     string          `db:"receipt_id" json:"receiptId"`
	EnrollmentID  string          `db:"enrollment_id" json:"enrollmentId"`
	InstallmentNo int             `db:"installment_no" json:"installmentNo"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        string          `db:"method" json:"method"`
	Status        PaymentStatus   `db:"status" json:"status"`
	Source        Source          `db:"source" json:"source"`
	TxnRef        string          `db:"txn_ref" json:"txnRef,omitempty"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	PaidAt        time.Time       `db:"paid_at" json:"paidAt"`
	CreatedBy     string          `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy     string          `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// PaymentFilter narrows ledger listings. StudentID and CourseID resolve through the enrollment.
type PaymentFilter struct {
	StudentID    string
	EnrollmentID string
	CourseID     string
	Status       PaymentStatus
	Source       Source
	Method       string
}

// PaymentEnrollmentRef describes the enrollment a payment belongs to.
type PaymentEnrollmentRef struct {
	ID      string     `json:"id"`
	Student StudentRef `json:"student"`
	Course  CourseRef  `json:"course"`
}

// PaymentView is a ledger entry with its enrollment context.
type PaymentView struct {
	Payment
	Enrollment PaymentEnrollmentRef `json:"enrollment"`
}
