package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ledger-api/internal/middleware"
	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/service"
	"github.com/noah-isme/course-ledger-api/pkg/response"
)

type paymentLedger interface {
	Record(ctx context.Context, req service.RecordPaymentRequest) (*models.Payment, error)
	Update(ctx context.Context, id string, req service.UpdatePaymentRequest) (*models.Payment, error)
	Remove(ctx context.Context, id, actorID string) error
	Get(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) (*service.PaymentListResult, error)
}

// PaymentHandler exposes the unified payment ledger.
type PaymentHandler struct {
	ledger paymentLedger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(ledger paymentLedger) *PaymentHandler {
	return &PaymentHandler{ledger: ledger}
}

// List godoc
// @Summary List payments
// @Description Returns ledger entries with enrollment detail, newest first.
// @Tags Payments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param courseId query string false "Filter by course"
// @Param status query string false "pending, completed, failed or refunded"
// @Param source query string false "self_service or admin_entered"
// @Param method query string false "Filter by payment method"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	result, err := h.ledger.List(c.Request.Context(), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	withMeta(c, result.Items, nil, map[string]interface{}{
		"count":      len(result.Items),
		"statistics": result.Statistics,
	})
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Record godoc
// @Summary Record payment
// @Description Appends a payment against one installment and reconciles the enrollment.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	var req service.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ActorID = middleware.ActorID(c)
	payment, err := h.ledger.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Update godoc
// @Summary Update payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.UpdatePaymentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [patch]
func (h *PaymentHandler) Update(c *gin.Context) {
	var req service.UpdatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ActorID = middleware.ActorID(c)
	payment, err := h.ledger.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Tags Payments
// @Param id path string true "Payment ID"
// @Success 204
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.ledger.Remove(c.Request.Context(), c.Param("id"), middleware.ActorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
