package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// RecordPaymentRequest appends one payment to the ledger. Status defaults to
// completed and accepts the legacy "success" spelling.
type RecordPaymentRequest struct {
	EnrollmentID  string          `json:"enrollmentId" validate:"required"`
	InstallmentNo int             `json:"installmentNo" validate:"required,min=1"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" validate:"required,max=64"`
	Status        string          `json:"status" validate:"omitempty,max=16"`
	Source        models.Source   `json:"source" validate:"omitempty,oneof=self_service admin_entered"`
	TxnRef        string          `json:"txnRef" validate:"omitempty,max=128"`
	Notes         string          `json:"notes" validate:"omitempty,max=1000"`
	PaidAt        *time.Time      `json:"paidAt"`
	ActorID       string          `json:"-"`
}

// UpdatePaymentRequest carries a partial update; nil fields are left unchanged.
type UpdatePaymentRequest struct {
	Status  *string          `json:"status"`
	Amount  *decimal.Decimal `json:"amount"`
	Method  *string          `json:"method" validate:"omitempty,min=1,max=64"`
	Notes   *string          `json:"notes" validate:"omitempty,max=1000"`
	PaidAt  *time.Time       `json:"paidAt"`
	ActorID string           `json:"-"`
}

// PaymentListResult is a ledger listing with its statistics.
type PaymentListResult struct {
	Items      []models.PaymentView
	Statistics models.PaymentListStatistics
}

// LedgerService owns the single payment ledger. Every write re-reconciles
// the affected enrollment.
type LedgerService struct {
	payments    paymentStore
	enrollments enrollmentStore
	reconciler  *ReconciliationService
	audit       *AuditService
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewLedgerService constructs the ledger service.
func NewLedgerService(payments paymentStore, enrollments enrollmentStore, reconciler *ReconciliationService, audit *AuditService, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		payments:    payments,
		enrollments: enrollments,
		reconciler:  reconciler,
		audit:       audit,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Record validates and appends a payment, then reconciles its enrollment.
func (s *LedgerService) Record(ctx context.Context, req RecordPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
	}
	status := models.PaymentCompleted
	if req.Status != "" {
		parsed, ok := models.ParsePaymentStatus(req.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported payment status %q", req.Status))
		}
		status = parsed
	}
	if req.Source == "" {
		req.Source = models.SourceSelfService
	}

	enrollment, err := s.enrollment(ctx, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is cancelled")
	}
	if !hasInstallment(enrollment.Schedule, req.InstallmentNo) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment %d is not part of the schedule", req.InstallmentNo))
	}
	if err := s.checkBalance(ctx, *enrollment, "", status, req.Amount); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payment := &models.Payment{
		ReceiptID:     newReceiptID(now),
		EnrollmentID:  enrollment.ID,
		InstallmentNo: req.InstallmentNo,
		Amount:        req.Amount,
		Method:        strings.TrimSpace(req.Method),
		Status:        status,
		Source:        req.Source,
		TxnRef:        strings.TrimSpace(req.TxnRef),
		Notes:         strings.TrimSpace(req.Notes),
		PaidAt:        now,
		CreatedBy:     req.ActorID,
	}
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		payment.PaidAt = req.PaidAt.UTC()
	}

	start := time.Now()
	err = s.payments.Create(ctx, payment)
	s.metrics.ObserveStoreOperation("create_payment", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	s.reconcileQuietly(ctx, enrollment.ID)

	s.metrics.RecordPayment(*payment)
	s.audit.Record(ctx, req.ActorID, actorTypeFor(payment.Source), models.AuditPaymentRecorded, models.AuditEntityPayment, payment.ID, nil, payment)
	s.cache.InvalidateLedger(ctx)
	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("receipt_id", payment.ReceiptID),
		zap.String("enrollment_id", payment.EnrollmentID),
		zap.Int("installment_no", payment.InstallmentNo),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", string(payment.Status)),
	)
	return payment, nil
}

// Update applies a partial update to a payment.
func (s *LedgerService) Update(ctx context.Context, id string, req UpdatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *current
	updated := *current

	if req.Status != nil {
		parsed, ok := models.ParsePaymentStatus(*req.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported payment status %q", *req.Status))
		}
		updated.Status = parsed
	}
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
		}
		updated.Amount = *req.Amount
	}
	if req.Method != nil {
		updated.Method = strings.TrimSpace(*req.Method)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		updated.PaidAt = req.PaidAt.UTC()
	}
	updated.UpdatedBy = req.ActorID

	if enrollment, err := s.enrollment(ctx, updated.EnrollmentID); err == nil {
		if err := s.checkBalance(ctx, *enrollment, updated.ID, updated.Status, updated.Amount); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, appErrors.ErrNotFound) {
		return nil, err
	}

	if err := s.payments.Update(ctx, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	s.reconcileQuietly(ctx, updated.EnrollmentID)

	s.audit.Record(ctx, req.ActorID, models.ActorAdmin, models.AuditPaymentUpdated, models.AuditEntityPayment, id, before, updated)
	s.cache.InvalidateLedger(ctx)
	return &updated, nil
}

// Remove deletes a payment and reconciles its enrollment.
func (s *LedgerService) Remove(ctx context.Context, id, actorID string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	removed, err := s.payments.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	s.reconcileQuietly(ctx, current.EnrollmentID)

	s.audit.Record(ctx, actorID, models.ActorAdmin, models.AuditPaymentDeleted, models.AuditEntityPayment, id, current, nil)
	s.cache.InvalidateLedger(ctx)
	return nil
}

// Get returns a payment by ID.
func (s *LedgerService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns payments with their enrollment context and statistics.
func (s *LedgerService) List(ctx context.Context, filter models.PaymentFilter) (*PaymentListResult, error) {
	if filter.Status != "" {
		parsed, ok := models.ParsePaymentStatus(string(filter.Status))
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported payment status %q", filter.Status))
		}
		filter.Status = parsed
	}
	payments, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	refs, err := s.reconciler.newResolver(ctx)
	if err != nil {
		return nil, err
	}
	enrollments := make(map[string]*models.Enrollment)
	items := make([]models.PaymentView, 0, len(payments))
	for _, p := range payments {
		e, seen := enrollments[p.EnrollmentID]
		if !seen {
			found, err := s.enrollments.FindByID(ctx, p.EnrollmentID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
			}
			e = found
			enrollments[p.EnrollmentID] = e
		}
		ref := models.PaymentEnrollmentRef{
			ID:      p.EnrollmentID,
			Student: models.StudentRef{Name: unknownName},
			Course:  models.CourseRef{Title: unknownName},
		}
		if e != nil {
			student, err := refs.student(ctx, e.StudentID)
			if err != nil {
				return nil, err
			}
			ref.Student = student
			ref.Course = refs.course(e.CourseID)
		}
		items = append(items, models.PaymentView{Payment: p, Enrollment: ref})
	}
	return &PaymentListResult{Items: items, Statistics: PaymentListStatisticsOf(payments)}, nil
}

// History returns an enrollment's payments, most recent first.
func (s *LedgerService) History(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	if _, err := s.enrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}
	payments, err := s.payments.List(ctx, models.PaymentFilter{EnrollmentID: enrollmentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}
	return payments, nil
}

// checkBalance rejects pending or settled payments that would take the
// enrollment past its total. excludeID skips the payment being edited.
func (s *LedgerService) checkBalance(ctx context.Context, enrollment models.Enrollment, excludeID string, status models.PaymentStatus, amount decimal.Decimal) error {
	if status != models.PaymentPending && !status.Settled() {
		return nil
	}
	existing, err := s.payments.List(ctx, models.PaymentFilter{EnrollmentID: enrollment.ID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	others := existing[:0:0]
	for _, p := range existing {
		if p.ID != excludeID {
			others = append(others, p)
		}
	}
	remaining := models.NonNegative(enrollment.TotalAmount.Sub(SettledTotal(others)))
	if amount.GreaterThan(remaining) {
		return appErrors.Clone(appErrors.ErrOverpayment, fmt.Sprintf("payment exceeds remaining balance of %s", remaining.String()))
	}
	return nil
}

func (s *LedgerService) reconcileQuietly(ctx context.Context, enrollmentID string) {
	if _, err := s.reconciler.Reconcile(ctx, enrollmentID); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
		s.logger.Error("reconcile after ledger write failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
}

func (s *LedgerService) enrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func hasInstallment(schedule []models.Installment, no int) bool {
	for _, inst := range schedule {
		if inst.No == no {
			return true
		}
	}
	return false
}

// newReceiptID formats RCP-<yyyymmddhhmmss>-<6 upper alphanumerics>.
func newReceiptID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return "RCP-" + now.UTC().Format("20060102150405") + "-" + suffix
}
