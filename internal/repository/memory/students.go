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

// StudentRepository is the student view of a Store.
type StudentRepository struct {
	store *Store
}

// List returns one page of students ordered by name.
func (r *StudentRepository) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]models.Student, 0, len(r.store.students))
	for _, st := range r.store.students {
		if needle != "" && !containsFold(needle, st.Name, st.Email, st.Phone) {
			continue
		}
		matched = append(matched, st)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}

// FindByID returns a student or sql.ErrNoRows.
func (r *StudentRepository) FindByID(_ context.Context, id string) (*models.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	st, ok := r.store.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

// FindByEmail matches case-insensitively and returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByEmail(_ context.Context, email string) (*models.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, st := range r.store.students {
		if strings.EqualFold(st.Email, strings.TrimSpace(email)) {
			found := st
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

// Create stores a new student, assigning ID and timestamps when unset.
func (r *StudentRepository) Create(_ context.Context, student *models.Student) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	r.store.students[student.ID] = *student
	return r.store.persistLocked()
}

func containsFold(needle string, haystack ...string) bool {
	for _, h := range haystack {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page, size int) []T {
	page, size = models.NormalizePage(page, size)
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
