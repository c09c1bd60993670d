package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
	"github.com/noah-isme/coursecap-api/pkg/export"
)

// Report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

var courseReportHeaders = []string{
	"Section ID", "Course", "Title", "Instructors", "Location", "Days", "Time",
	"Status", "Approved By", "Publish Type", "Recording Type", "Do Not Email",
}

type courseOverviewLister interface {
	ListCourses(ctx context.Context, req dto.CoursesRequest) ([]models.CourseOverview, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Report is a rendered export ready to download.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService exports the approval status of a term's sections.
type ReportService struct {
	courses courseOverviewLister
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewReportService constructs a ReportService. Nil renderers default to pkg/export.
func NewReportService(courses courseOverviewLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{courses: courses, csv: csv, pdf: pdf, logger: logger}
}

// CourseReport renders every eligible, approved or scheduled section of a term.
func (s *ReportService) CourseReport(ctx context.Context, termID int, format string) (*Report, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}

	overviews, err := s.courses.ListCourses(ctx, dto.CoursesRequest{TermID: termID, Filter: dto.FilterAll})
	if err != nil {
		return nil, err
	}
	dataset := courseDataset(overviews)

	report := &Report{Filename: fmt.Sprintf("course-capture-%d.%s", termID, format)}
	switch format {
	case ReportFormatPDF:
		report.ContentType = "application/pdf"
		report.Data, err = s.pdf.Render(dataset, fmt.Sprintf("Course Capture, %s", TermNameForSISID(termID)))
	default:
		report.ContentType = "text/csv"
		report.Data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Info("course report rendered", zap.Int("term_id", termID), zap.String("format", format), zap.Int("rows", len(dataset.Rows)))
	return report, nil
}

func courseDataset(overviews []models.CourseOverview) export.Dataset {
	rows := make([]map[string]string, 0, len(overviews))
	for _, o := range overviews {
		instructors := make([]string, 0, len(o.Instructors))
		for _, instructor := range o.Instructors {
			instructors = append(instructors, instructor.Name())
		}
		approvers := make([]string, 0, len(o.Approvals))
		for _, approval := range o.Approvals {
			approvers = append(approvers, approval.ApprovedByUID)
		}

		row := map[string]string{
			"Section ID":   strconv.Itoa(o.SectionID),
			"Course":       o.CourseName,
			"Title":        o.CourseTitle,
			"Instructors":  strings.Join(instructors, ", "),
			"Location":     o.MeetingLocation,
			"Days":         o.MeetingDays,
			"Time":         strings.Trim(o.MeetingStartTime+" - "+o.MeetingEndTime, " -"),
			"Status":       o.Status,
			"Approved By":  strings.Join(approvers, ", "),
			"Do Not Email": strconv.FormatBool(o.OptOut),
		}
		switch {
		case o.Scheduled != nil:
			row["Publish Type"] = o.Scheduled.PublishType.Name()
			row["Recording Type"] = o.Scheduled.RecordingType.Name()
		case len(o.Approvals) > 0:
			latest := o.Approvals[len(o.Approvals)-1]
			row["Publish Type"] = latest.PublishTypeName
			row["Recording Type"] = latest.RecordingTypeName
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: courseReportHeaders, Rows: rows}
}
