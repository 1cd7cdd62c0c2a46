package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
	"github.com/noah-isme/course-ledger-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

type calendarRenderer interface {
	Render(name string, events []export.CalendarEvent) ([]byte, error)
}

type paymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) (*PaymentListResult, error)
}

// ReportFile is a rendered download.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

var paymentReportHeaders = []string{"Receipt", "Payment ID", "Student", "Course", "Installment", "Amount", "Method", "Status", "Source", "Paid At"}

// ReportService renders ledger exports and installment calendars.
type ReportService struct {
	ledger     paymentLister
	reconciler *ReconciliationService
	csv        csvRenderer
	pdf        pdfRenderer
	xlsx       xlsxRenderer
	ics        calendarRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportService constructs a ReportService. Nil renderers fall back to the pkg/export defaults.
func NewReportService(ledger paymentLister, reconciler *ReconciliationService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer, ics calendarRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter("")
	}
	return &ReportService{ledger: ledger, reconciler: reconciler, csv: csv, pdf: pdf, xlsx: xlsx, ics: ics, logger: logger, now: time.Now}
}

// PaymentReport renders the filtered ledger in the requested format.
func (s *ReportService) PaymentReport(ctx context.Context, format export.Format, filter models.PaymentFilter) (*ReportFile, error) {
	format = export.Format(strings.ToLower(strings.TrimSpace(string(format))))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatPDF && format != export.FormatXLSX {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}

	result, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := paymentDataset(result)

	var payload []byte
	switch format {
	case export.FormatCSV:
		payload, err = s.csv.Render(dataset)
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset, "Payment Ledger")
	case export.FormatXLSX:
		payload, err = s.xlsx.Render(dataset, "Payments")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render payment report")
	}

	s.logger.Info("payment report rendered", zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return &ReportFile{
		Filename:    fmt.Sprintf("payments-%s.%s", s.now().UTC().Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func paymentDataset(result *PaymentListResult) export.Dataset {
	rows := make([]map[string]string, 0, len(result.Items))
	for _, p := range result.Items {
		rows = append(rows, map[string]string{
			"Receipt":     p.ReceiptID,
			"Payment ID":  p.ID,
			"Student":     p.Enrollment.Student.Name,
			"Course":      p.Enrollment.Course.Title,
			"Installment": strconv.Itoa(p.InstallmentNo),
			"Amount":      p.Amount.StringFixed(2),
			"Method":      p.Method,
			"Status":      string(p.Status),
			"Source":      string(p.Source),
			"Paid At":     p.PaidAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return export.Dataset{
		Headers: paymentReportHeaders,
		Rows:    rows,
		Footer: map[string]string{
			"Receipt": "Total settled",
			"Amount":  result.Statistics.SettledAmount.StringFixed(2),
			"Status":  fmt.Sprintf("%d payments", result.Statistics.TotalPayments),
		},
	}
}

// ScheduleCalendar renders an enrollment's unpaid installment due dates as an iCalendar feed.
func (s *ReportService) ScheduleCalendar(ctx context.Context, enrollmentID string) (*ReportFile, error) {
	enrollment, err := s.reconciler.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	views, err := s.reconciler.Describe(ctx, []models.Enrollment{*enrollment})
	if err != nil {
		return nil, err
	}
	view := views[0]

	events := make([]export.CalendarEvent, 0, len(view.Schedule))
	for _, inst := range view.Schedule {
		if inst.Paid {
			continue
		}
		events = append(events, export.CalendarEvent{
			UID:         fmt.Sprintf("%s-%d@course-ledger", view.ID, inst.No),
			Summary:     fmt.Sprintf("%s installment %d/%d due", view.Course.Title, inst.No, len(view.Schedule)),
			Description: fmt.Sprintf("Outstanding %s of %s", inst.Outstanding().StringFixed(2), inst.Amount.StringFixed(2)),
			Date:        inst.DueDate,
		})
	}
	if len(events) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment has no unpaid installments")
	}
	payload, err := s.ics.Render(view.Course.Title+" installments", events)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
	}
	return &ReportFile{
		Filename:    fmt.Sprintf("enrollment-%s-schedule.ics", view.ID),
		ContentType: "text/calendar; charset=utf-8",
		Data:        payload,
	}, nil
}

