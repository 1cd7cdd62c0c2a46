package memory

import (
	"context"
	"database/sql"
	"strings"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// CourseRepository is the catalog view of a Store.
type CourseRepository struct {
	store *Store
}

// List returns courses in insertion order.
func (r *CourseRepository) List(_ context.Context, filter models.CourseFilter) ([]models.Course, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]models.Course, 0, len(r.store.courseOrder))
	for _, id := range r.store.courseOrder {
		c := r.store.courses[id]
		if filter.ActiveOnly && !c.Active {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(c.Category, filter.Category) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// FindByID returns a course or sql.ErrNoRows.
func (r *CourseRepository) FindByID(_ context.Context, id string) (*models.Course, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

// Upsert inserts or replaces a course.
func (r *CourseRepository) Upsert(_ context.Context, course *models.Course) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.putCourseLocked(*course)
	return r.store.persistLocked()
}
