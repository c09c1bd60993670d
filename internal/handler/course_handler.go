package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/middleware"
	"github.com/noah-isme/coursecap-api/internal/models"
	"github.com/noah-isme/coursecap-api/internal/service"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
	"github.com/noah-isme/coursecap-api/pkg/response"
)

type approvalService interface {
	RecordApproval(ctx context.Context, actor *models.JWTClaims, req dto.ApproveRequest) (*models.CourseApprovalStatus, error)
	CourseStatus(ctx context.Context, actor *models.JWTClaims, termID, sectionID int) (*models.CourseApprovalStatus, error)
	ListCourses(ctx context.Context, req dto.CoursesRequest) ([]models.CourseOverview, error)
	UpdateOptOut(ctx context.Context, req dto.OptOutRequest) (*models.CoursePreference, error)
}

type schedulingService interface {
	ScheduleRecordings(ctx context.Context, termID, sectionID int) (*models.Scheduled, error)
}

type reportService interface {
	CourseReport(ctx context.Context, termID int, format string) (*service.Report, error)
}

// CourseHandler exposes approval, scheduling and course listing endpoints.
type CourseHandler struct {
	approvals  approvalService
	scheduling schedulingService
	reports    reportService
}

// NewCourseHandler constructs a CourseHandler.
func NewCourseHandler(approvals approvalService, scheduling schedulingService, reports reportService) *CourseHandler {
	return &CourseHandler{approvals: approvals, scheduling: scheduling, reports: reports}
}

// Approve godoc
// @Summary Approve recording of a section
// @Description Records the current user's approval for a section in the current term
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.ApproveRequest true "Approval"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /course/approve [post]
func (h *CourseHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "One or more required params are missing or invalid"))
		return
	}

	status, err := h.approvals.RecordApproval(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Approvals godoc
// @Summary Approval status of a section
// @Tags Courses
// @Produce json
// @Param termId path int true "Term ID"
// @Param sectionId path int true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course/approvals/{termId}/{sectionId} [get]
func (h *CourseHandler) Approvals(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	termID, err := intParam(c, "termId")
	if err != nil {
		response.Error(c, err)
		return
	}
	sectionID, err := intParam(c, "sectionId")
	if err != nil {
		response.Error(c, err)
		return
	}

	status, err := h.approvals.CourseStatus(c.Request.Context(), claims, termID, sectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Courses godoc
// @Summary Admin course list
// @Description Sections with approvals or scheduled recordings, narrowed by filter
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CoursesRequest true "Term and filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Courses(c *gin.Context) {
	var req dto.CoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "One or more required params are missing or invalid"))
		return
	}

	courses, err := h.approvals.ListCourses(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "filter", req.Filter)
	middleware.SetMeta(c, "total", len(courses))
	response.JSON(c, http.StatusOK, courses, nil, middleware.ExtractMeta(c))
}

// Filters godoc
// @Summary Course list filters
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/filters [get]
func (h *CourseHandler) Filters(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.CourseFilters, nil)
}

// UpdateOptOut godoc
// @Summary Update course opt out
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.OptOutRequest true "Opt out"
// @Success 200 {object} response.Envelope
// @Router /course/opt_out/update [post]
func (h *CourseHandler) UpdateOptOut(c *gin.Context) {
	var req dto.OptOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid opt out payload"))
		return
	}

	pref, err := h.approvals.UpdateOptOut(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}

// Schedule godoc
// @Summary Schedule recordings of a section
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleRequest true "Section"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /course/schedule [post]
func (h *CourseHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	if req.TermID <= 0 || req.SectionID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId and sectionId required"))
		return
	}

	scheduled, err := h.scheduling.ScheduleRecordings(c.Request.Context(), req.TermID, req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, scheduled)
}

// Report godoc
// @Summary Download course capture report
// @Tags Courses
// @Produce text/csv
// @Produce application/pdf
// @Param termId query int true "Term ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /courses/report [get]
func (h *CourseHandler) Report(c *gin.Context) {
	termID, err := intQuery(c, "termId")
	if err != nil {
		response.Error(c, err)
		return
	}
	format := c.DefaultQuery("format", service.ReportFormatCSV)

	report, err := h.reports.CourseReport(c.Request.Context(), termID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Data)
}
