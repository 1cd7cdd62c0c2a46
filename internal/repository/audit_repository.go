package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

const auditColumns = `id, actor_id, actor_type, action, entity, entity_id, COALESCE(before, 'null'::jsonb) AS before, COALESCE(after, 'null'::jsonb) AS after, created_at`

// AuditRepository stores the append-only audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, actor_type, action, entity, entity_id, before, after, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.ActorID, entry.ActorType, entry.Action, entry.Entity, entry.EntityID,
		nullableJSON(entry.Before), nullableJSON(entry.After), entry.CreatedAt); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns audit entries newest first with the total count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	var b clauseBuilder
	if filter.Entity != "" {
		b.add("entity = $%d", filter.Entity)
	}
	if filter.EntityID != "" {
		b.add("entity_id = $%d", filter.EntityID)
	}
	if filter.Action != "" {
		b.add("action = $%d", filter.Action)
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d", auditColumns, b.where(), limit, offset)

	logs := []models.AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
