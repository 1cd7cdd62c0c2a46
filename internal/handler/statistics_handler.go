package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ledger-api/internal/middleware"
	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/seed"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
	"github.com/noah-isme/course-ledger-api/pkg/response"
)

type ledgerAggregator interface {
	Statistics(ctx context.Context) (*models.Statistics, bool, error)
	PendingInstallments(ctx context.Context, overdueOnly bool) ([]models.PendingInstallment, error)
}

// StatisticsHandler serves ledger-wide aggregates.
type StatisticsHandler struct {
	aggregator ledgerAggregator
	sample     func() (*seed.Dataset, error)
}

// NewStatisticsHandler constructs StatisticsHandler.
func NewStatisticsHandler(aggregator ledgerAggregator) *StatisticsHandler {
	return &StatisticsHandler{aggregator: aggregator, sample: seed.Load}
}

// Statistics godoc
// @Summary Ledger statistics
// @Description Overview counts, financial totals, status breakdowns and top students/courses.
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statistics [get]
func (h *StatisticsHandler) Statistics(c *gin.Context) {
	stats, hit, err := h.aggregator.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	withMeta(c, stats, nil, nil)
}

// SampleData godoc
// @Summary Sample dataset
// @Description Returns the embedded catalog and sample students, enrollments and payments.
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sample-data [get]
func (h *StatisticsHandler) SampleData(c *gin.Context) {
	data, err := h.sample()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sample data"))
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// PendingInstallments godoc
// @Summary Unpaid installments
// @Description Lists outstanding installments across active enrollments ordered by due date.
// @Tags Statistics
// @Produce json
// @Param overdueOnly query bool false "Only installments past their due date"
// @Success 200 {object} response.Envelope
// @Router /installments/pending [get]
func (h *StatisticsHandler) PendingInstallments(c *gin.Context) {
	overdueOnly := c.Query("overdueOnly") == "true"
	items, err := h.aggregator.PendingInstallments(c.Request.Context(), overdueOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	withMeta(c, items, nil, map[string]interface{}{"count": len(items)})
}
