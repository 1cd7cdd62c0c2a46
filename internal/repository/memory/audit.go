package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// AuditRepository is the audit trail view of a Store.
type AuditRepository struct {
	store *Store
}

// Create appends an audit entry.
func (r *AuditRepository) Create(_ context.Context, entry *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.store.auditLogs = append(r.store.auditLogs, *entry)
	return r.store.persistLocked()
}

// List returns audit entries newest first with the total count.
func (r *AuditRepository) List(_ context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched := make([]models.AuditLog, 0)
	for _, entry := range r.store.auditLogs {
		if filter.Entity != "" && entry.Entity != filter.Entity {
			continue
		}
		if filter.EntityID != "" && entry.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}
