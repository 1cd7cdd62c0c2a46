package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

type auditRepository interface {
	auditWriter
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService appends and lists audit trail entries.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends an entry. A failed write is logged and swallowed so it never
// fails the operation being audited.
func (s *AuditService) Record(ctx context.Context, actorID string, actorType models.ActorType, action, entity, entityID string, before, after interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	if actorType == "" {
		actorType = models.ActorSystem
	}
	entry := &models.AuditLog{
		ActorID:   actorID,
		ActorType: actorType,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Before:    s.encode(before),
		After:     s.encode(after),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("action", action),
			zap.String("entity", entity),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func (s *AuditService) encode(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("audit payload not encodable", zap.Error(err))
		return nil
	}
	return raw
}

// List returns audit entries with pagination metadata.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// actorTypeFor maps the entry point of a write to the audited actor.
func actorTypeFor(source models.Source) models.ActorType {
	switch source {
	case models.SourceSelfService:
		return models.ActorStudent
	case models.SourceAdminEntered:
		return models.ActorAdmin
	default:
		return models.ActorSystem
	}
}
