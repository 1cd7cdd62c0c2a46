package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

const paymentColumns = `p.id, p.receipt_id, p.enrollment_id, p.installment_no, p.amount, p.method, p.status, p.source, p.txn_ref, p.notes, p.paid_at, p.created_by, p.updated_by, p.created_at, p.updated_at`

// PaymentRepository persists ledger entries.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns payments matching the filter, most recent first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	var b clauseBuilder
	if filter.EnrollmentID != "" {
		b.add("p.enrollment_id = $%d", filter.EnrollmentID)
	}
	if filter.StudentID != "" {
		b.add("e.student_id = $%d", filter.StudentID)
	}
	if filter.CourseID != "" {
		b.add("e.course_id = $%d", filter.CourseID)
	}
	if filter.Status != "" {
		b.add("p.status = $%d", filter.Status)
	}
	if filter.Source != "" {
		b.add("p.source = $%d", filter.Source)
	}
	if strings.TrimSpace(filter.Method) != "" {
		b.add("LOWER(p.method) = LOWER($%d)", strings.TrimSpace(filter.Method))
	}
	query := "SELECT " + paymentColumns + " FROM payments p JOIN enrollments e ON e.id = p.enrollment_id" + b.where() + " ORDER BY p.paid_at DESC, p.created_at DESC"

	payments := []models.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, b.args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// FindByID returns a payment or sql.ErrNoRows.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, "SELECT "+paymentColumns+" FROM payments p WHERE p.id = $1", id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create appends a payment, assigning ID and timestamps when unset.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = "PAY-" + uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}
	const query = `INSERT INTO payments (id, receipt_id, enrollment_id, installment_no, amount, method, status, source, txn_ref, notes, paid_at, created_by, updated_by, created_at, updated_at)
        VALUES (:id, :receipt_id, :enrollment_id, :installment_no, :amount, :method, :status, :source, :txn_ref, :notes, :paid_at, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a payment, returning sql.ErrNoRows for unknown IDs.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET amount = :amount, method = :method, status = :status, notes = :notes,
        paid_at = :paid_at, updated_by = :updated_by, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, payment)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a payment and reports whether it existed.
func (r *PaymentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
