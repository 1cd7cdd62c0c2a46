package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

func TestAuditRepositoryCreateStoresNullForEmptyJSON(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "admin-1", models.ActorAdmin, models.AuditPaymentDeleted, models.AuditEntityPayment, "PAY-1", `{"amount":5000}`, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditLog{
		ActorID:   "admin-1",
		ActorType: models.ActorAdmin,
		Action:    models.AuditPaymentDeleted,
		Entity:    models.AuditEntityPayment,
		EntityID:  "PAY-1",
		Before:    []byte(`{"amount":5000}`),
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE entity = $1 AND entity_id = $2 ORDER BY created_at DESC, id LIMIT 20 OFFSET 0")).
		WithArgs("enrollment", "enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "actor_type", "action", "entity", "entity_id", "before", "after", "created_at"}).
			AddRow("a1", "", "system", models.AuditInstallmentsOverdue, "enrollment", "enr-1", []byte("null"), []byte(`{"overdue":1}`), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE entity = $1 AND entity_id = $2")).
		WithArgs("enrollment", "enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	logs, total, err := repo.List(context.Background(), models.AuditFilter{Entity: "enrollment", EntityID: "enr-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"overdue":1}`, string(logs[0].After))
	assert.Equal(t, models.ActorSystem, logs[0].ActorType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
