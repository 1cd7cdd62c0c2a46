package handler

import "github.com/gin-gonic/gin"

// Handlers groups the API handlers mounted by RegisterRoutes.
type Handlers struct {
	Payments    *PaymentHandler
	Enrollments *EnrollmentHandler
	Students    *StudentHandler
	Courses     *CourseHandler
	Statistics  *StatisticsHandler
	Reports     *ReportHandler
	Audit       *AuditHandler
}

// RegisterRoutes mounts the ledger API on the given group.
func RegisterRoutes(api *gin.RouterGroup, h Handlers) {
	payments := api.Group("/payments")
	payments.GET("", h.Payments.List)
	payments.POST("", h.Payments.Record)
	payments.GET("/:id", h.Payments.Get)
	payments.PATCH("/:id", h.Payments.Update)
	payments.DELETE("/:id", h.Payments.Delete)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.POST("", h.Enrollments.Create)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.DELETE("/:id", h.Enrollments.Delete)
	enrollments.GET("/:id/summary", h.Enrollments.Summary)
	enrollments.GET("/:id/payments", h.Enrollments.Payments)
	enrollments.GET("/:id/schedule.ics", h.Enrollments.Calendar)
	enrollments.PATCH("/:id/status", h.Enrollments.UpdateStatus)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Register)
	students.GET("/:id", h.Students.Get)

	api.GET("/courses", h.Courses.List)
	api.GET("/courses/:id", h.Courses.Get)

	api.GET("/statistics", h.Statistics.Statistics)
	api.GET("/sample-data", h.Statistics.SampleData)
	api.GET("/installments/pending", h.Statistics.PendingInstallments)

	api.GET("/reports/payments", h.Reports.Payments)
	api.GET("/audit-logs", h.Audit.List)
}

// RegisterOps mounts liveness, readiness and Prometheus endpoints at the root.
func RegisterOps(r gin.IRoutes, metrics *MetricsHandler) {
	r.GET("/health", metrics.Health)
	r.GET("/ready", metrics.Ready)
	r.GET("/metrics", metrics.Prometheus)
}
