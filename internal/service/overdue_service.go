package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
	"github.com/noah-isme/course-ledger-api/pkg/jobs"
)

// OverdueSweepJob is the queue job type handled by OverdueService.
const OverdueSweepJob = "overdue_sweep"

// SweepResult summarises one overdue sweep.
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Updated  int `json:"updated"`
	Overdue  int `json:"overdue"`
	Failures int `json:"failures"`
}

type jobRegistrar interface {
	Handle(jobType string, handler jobs.Handler)
}

// OverdueService re-reconciles active enrollments so installments that
// passed their due date flip to overdue.
type OverdueService struct {
	enrollments enrollmentStore
	reconciler  *ReconciliationService
	audit       *AuditService
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewOverdueService constructs the sweeper.
func NewOverdueService(enrollments enrollmentStore, reconciler *ReconciliationService, audit *AuditService, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *OverdueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueService{enrollments: enrollments, reconciler: reconciler, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// Register binds the sweep to its job type on the queue.
func (s *OverdueService) Register(queue jobRegistrar) {
	queue.Handle(OverdueSweepJob, func(ctx context.Context, _ jobs.Job) error {
		_, err := s.Sweep(ctx)
		return err
	})
}

// Sweep reconciles every active enrollment. Individual failures are logged
// and counted; the sweep only fails when the enrollment list cannot be read.
func (s *OverdueService) Sweep(ctx context.Context) (*SweepResult, error) {
	started := time.Now()
	enrollments, err := s.enrollments.ListAll(ctx, models.EnrollmentFilter{Status: models.EnrollmentActive})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active enrollments")
	}

	result := &SweepResult{Scanned: len(enrollments)}
	for _, e := range enrollments {
		before := overdueNumbers(e.Schedule)
		updated, changed, err := s.reconciler.reconcile(ctx, e.ID)
		if err != nil {
			result.Failures++
			s.logger.Warn("overdue sweep skipped enrollment", zap.String("enrollment_id", e.ID), zap.Error(err))
			continue
		}
		after := overdueNumbers(updated.Schedule)
		result.Overdue += len(after)
		if !changed {
			continue
		}
		result.Updated++
		if newly := newlyOverdue(before, after); len(newly) > 0 {
			s.audit.Record(ctx, "", models.ActorSystem, models.AuditInstallmentsOverdue, models.AuditEntityEnrollment, e.ID,
				map[string][]int{"overdue": before}, map[string][]int{"overdue": after})
		}
	}

	if result.Updated > 0 {
		s.cache.InvalidateLedger(ctx)
	}
	s.metrics.SetOverdueInstallments(result.Overdue)
	s.logger.Info("overdue sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("overdue", result.Overdue),
		zap.Int("failures", result.Failures),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

func overdueNumbers(schedule []models.Installment) []int {
	out := []int{}
	for _, inst := range schedule {
		if inst.Status == models.InstallmentOverdue {
			out = append(out, inst.No)
		}
	}
	return out
}

func newlyOverdue(before, after []int) []int {
	known := make(map[int]struct{}, len(before))
	for _, no := range before {
		known[no] = struct{}{}
	}
	var out []int
	for _, no := range after {
		if _, ok := known[no]; !ok {
			out = append(out, no)
		}
	}
	return out
}
