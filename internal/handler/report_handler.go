package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/service"
	"github.com/noah-isme/course-ledger-api/pkg/export"
	"github.com/noah-isme/course-ledger-api/pkg/response"
)

type paymentReporter interface {
	PaymentReport(ctx context.Context, format export.Format, filter models.PaymentFilter) (*service.ReportFile, error)
}

// ReportHandler streams tabular ledger exports.
type ReportHandler struct {
	reports paymentReporter
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports paymentReporter) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Payments godoc
// @Summary Export payment ledger
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv (default), pdf or xlsx"
// @Param studentId query string false "Filter by student"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by payment status"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/payments [get]
func (h *ReportHandler) Payments(c *gin.Context) {
	file, err := h.reports.PaymentReport(c.Request.Context(), export.Format(c.Query("format")), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Data)
}
