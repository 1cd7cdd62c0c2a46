package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// PaymentRepository is the ledger view of a Store.
type PaymentRepository struct {
	store *Store
}

// List returns payments matching the filter, most recent first.
func (r *PaymentRepository) List(_ context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	method := strings.TrimSpace(filter.Method)
	out := make([]models.Payment, 0, len(r.store.payments))
	for _, p := range r.store.payments {
		if filter.EnrollmentID != "" && p.EnrollmentID != filter.EnrollmentID {
			continue
		}
		if filter.StudentID != "" || filter.CourseID != "" {
			e, ok := r.store.enrollments[p.EnrollmentID]
			if !ok {
				continue
			}
			if filter.StudentID != "" && e.StudentID != filter.StudentID {
				continue
			}
			if filter.CourseID != "" && e.CourseID != filter.CourseID {
				continue
			}
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Source != "" && p.Source != filter.Source {
			continue
		}
		if method != "" && !strings.EqualFold(p.Method, method) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].PaidAt.After(out[j].PaidAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindByID returns a payment or sql.ErrNoRows.
func (r *PaymentRepository) FindByID(_ context.Context, id string) (*models.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		p := r.store.payments[i]
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

// Create appends a payment, assigning ID and timestamps when unset.
func (r *PaymentRepository) Create(_ context.Context, payment *models.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

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
	r.store.payments = append(r.store.payments, *payment)
	return r.store.persistLocked()
}

// Update rewrites the mutable fields of a payment, returning sql.ErrNoRows for unknown IDs.
func (r *PaymentRepository) Update(_ context.Context, payment *models.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.indexLocked(payment.ID)
	if i < 0 {
		return sql.ErrNoRows
	}
	payment.UpdatedAt = time.Now().UTC()
	current := &r.store.payments[i]
	current.Amount = payment.Amount
	current.Method = payment.Method
	current.Status = payment.Status
	current.Notes = payment.Notes
	current.PaidAt = payment.PaidAt
	current.UpdatedBy = payment.UpdatedBy
	current.UpdatedAt = payment.UpdatedAt
	return r.store.persistLocked()
}

// Delete removes a payment and reports whether it existed.
func (r *PaymentRepository) Delete(_ context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	r.store.payments = append(r.store.payments[:i], r.store.payments[i+1:]...)
	return true, r.store.persistLocked()
}

func (r *PaymentRepository) indexLocked(id string) int {
	for i := range r.store.payments {
		if r.store.payments[i].ID == id {
			return i
		}
	}
	return -1
}
