package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ledger-api/internal/middleware"
	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
	"github.com/noah-isme/course-ledger-api/pkg/response"
)

const defaultPageSize = 20

// pageParams reads page and limit query parameters; malformed values fall back to defaults.
func pageParams(c *gin.Context) (int, int) {
	page, size := 1, defaultPageSize
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize))); err == nil {
		size = v
	}
	return page, size
}

func paymentFilterFromQuery(c *gin.Context) models.PaymentFilter {
	return models.PaymentFilter{
		StudentID:    strings.TrimSpace(c.Query("studentId")),
		EnrollmentID: strings.TrimSpace(c.Query("enrollmentId")),
		CourseID:     strings.TrimSpace(c.Query("courseId")),
		Status:       models.PaymentStatus(strings.TrimSpace(c.Query("status"))),
		Source:       models.Source(strings.TrimSpace(c.Query("source"))),
		Method:       strings.TrimSpace(c.Query("method")),
	}
}

// bindJSON decodes the request body, answering 400 on malformed payloads.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// withMeta answers 200 with the request's collected metadata plus extra entries.
func withMeta(c *gin.Context, data interface{}, pagination *models.Pagination, extra map[string]interface{}) {
	for key, value := range extra {
		middleware.SetMeta(c, key, value)
	}
	response.JSON(c, http.StatusOK, data, pagination, middleware.ExtractMeta(c))
}
