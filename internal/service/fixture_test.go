package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/repository/memory"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

type stubCacheRepo struct {
	store   map[string][]byte
	deletes int
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deletes++
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

type fixture struct {
	store       *memory.Store
	cacheRepo   *stubCacheRepo
	metrics     *MetricsService
	audit       *AuditService
	catalog     *CatalogService
	students    *StudentService
	reconciler  *ReconciliationService
	enrollments *EnrollmentService
	ledger      *LedgerService
	clock       time.Time
}

// newFixture wires every service over an in-memory store holding one
// 15000 course running 2026-01-01..2026-04-01. The clock starts at 2026-01-20.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := memory.NewStore(nil, nil)
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		cacheRepo: &stubCacheRepo{},
		metrics:   NewMetricsService(),
		clock:     time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC),
	}
	logger := zap.NewNop()
	cache := NewCacheService(f.cacheRepo, f.metrics, time.Minute, logger, true)
	f.audit = NewAuditService(store.AuditLogs(), logger)
	f.catalog = NewCatalogService(store.Courses(), logger)
	f.students = NewStudentService(store.Students(), f.audit, nil, logger)
	f.reconciler = NewReconciliationService(store.Enrollments(), store.Payments(), store.Students(), store.Courses(), cache, f.metrics, logger)
	f.reconciler.now = f.now
	f.enrollments = NewEnrollmentService(store.Enrollments(), store.Courses(), f.students, f.reconciler, f.audit, cache, f.metrics, nil, logger)
	f.ledger = NewLedgerService(store.Payments(), store.Enrollments(), f.reconciler, f.audit, cache, f.metrics, nil, logger)
	f.ledger.now = f.now

	require.NoError(t, f.catalog.Load(context.Background(), []models.Course{
		{
			ID:              "c-1",
			Title:           "Go Foundations",
			Price:           decimal.NewFromInt(15000),
			StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			MaxInstallments: 6,
			Active:          true,
			Category:        "Development",
		},
		{
			ID:              "c-closed",
			Title:           "Archived Course",
			Price:           decimal.NewFromInt(9000),
			StartDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			MaxInstallments: 3,
			Active:          false,
		},
	}))
	return f
}

func (f *fixture) now() time.Time { return f.clock }

func (f *fixture) enroll(t *testing.T, email string, installments int) *models.EnrollmentView {
	t.Helper()
	view, err := f.enrollments.Enroll(context.Background(), EnrollRequest{
		Student:      &StudentProfile{Name: "Jane Roe", Email: email, Phone: "555-0100"},
		CourseID:     "c-1",
		Installments: installments,
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) pay(t *testing.T, enrollmentID string, no int, amount int64) *models.Payment {
	t.Helper()
	payment, err := f.ledger.Record(context.Background(), RecordPaymentRequest{
		EnrollmentID:  enrollmentID,
		InstallmentNo: no,
		Amount:        decimal.NewFromInt(amount),
		Method:        "online",
	})
	require.NoError(t, err)
	return payment
}

func (f *fixture) auditActions(t *testing.T, entityID string) []string {
	t.Helper()
	logs, _, err := f.audit.List(context.Background(), models.AuditFilter{EntityID: entityID, PageSize: 100})
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}
