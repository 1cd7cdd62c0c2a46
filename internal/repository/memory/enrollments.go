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

// EnrollmentRepository is the enrollment view of a Store.
type EnrollmentRepository struct {
	store *Store
}

// List returns one page of enrollments, newest first, with the total count.
func (r *EnrollmentRepository) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched := r.matchLocked(filter)
	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}

// ListAll returns every enrollment matching the filter, ignoring paging.
func (r *EnrollmentRepository) ListAll(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.matchLocked(filter), nil
}

func (r *EnrollmentRepository) matchLocked(filter models.EnrollmentFilter) []models.Enrollment {
	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.Enrollment, 0, len(r.store.enrollments))
	for _, e := range r.store.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if needle != "" {
			st := r.store.students[e.StudentID]
			c := r.store.courses[e.CourseID]
			if !containsFold(needle, st.Name, st.Email, c.Title) {
				continue
			}
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindByID returns a copy of the enrollment or sql.ErrNoRows.
func (r *EnrollmentRepository) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := e.Clone()
	return &clone, nil
}

// ExistsActive reports whether the student already holds a non-cancelled enrollment in the course.
func (r *EnrollmentRepository) ExistsActive(_ context.Context, studentID, courseID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, e := range r.store.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status != models.EnrollmentCancelled {
			return true, nil
		}
	}
	return false, nil
}

// Create stores the enrollment with its schedule.
func (r *EnrollmentRepository) Create(_ context.Context, enrollment *models.Enrollment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentActive
	}
	for i := range enrollment.Schedule {
		enrollment.Schedule[i].EnrollmentID = enrollment.ID
	}
	r.store.enrollments[enrollment.ID] = enrollment.Clone()
	return r.store.persistLocked()
}

// UpdateStatus sets the lifecycle status, returning sql.ErrNoRows for unknown IDs.
func (r *EnrollmentRepository) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	r.store.enrollments[id] = e
	return r.store.persistLocked()
}

// UpdateSchedule replaces installment state and the derived status together.
func (r *EnrollmentRepository) UpdateSchedule(_ context.Context, id string, schedule []models.Installment, status models.EnrollmentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	byNo := make(map[int]models.Installment, len(schedule))
	for _, inst := range schedule {
		byNo[inst.No] = inst
	}
	updated := make([]models.Installment, len(e.Schedule))
	for i, inst := range e.Schedule {
		if next, ok := byNo[inst.No]; ok {
			inst.PaidAmount, inst.Paid, inst.Status = next.PaidAmount, next.Paid, next.Status
		}
		updated[i] = inst
	}
	e.Schedule = updated
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	r.store.enrollments[id] = e
	return r.store.persistLocked()
}

// Delete removes the enrollment and every payment recorded against it.
func (r *EnrollmentRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.store.enrollments, id)

	kept := r.store.payments[:0]
	for _, p := range r.store.payments {
		if p.EnrollmentID != id {
			kept = append(kept, p)
		}
	}
	r.store.payments = kept
	return r.store.persistLocked()
}
