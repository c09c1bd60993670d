package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
	"github.com/noah-isme/coursecap-api/pkg/response"
)

const defaultHistoryDays = 7

type jobService interface {
	List(ctx context.Context) ([]models.JobInfo, error)
	History(ctx context.Context, daysCount int) ([]models.JobHistory, error)
	Start(ctx context.Context, key string) (string, error)
}

// JobHandler exposes background job controls.
type JobHandler struct {
	service jobService
}

// NewJobHandler constructs a JobHandler.
func NewJobHandler(service jobService) *JobHandler {
	return &JobHandler{service: service}
}

// List godoc
// @Summary List background jobs
// @Tags Jobs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// History godoc
// @Summary Job run history
// @Tags Jobs
// @Produce json
// @Param days_count query int false "Days of history" default(7)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /jobs/history [get]
func (h *JobHandler) History(c *gin.Context) {
	days := defaultHistoryDays
	if raw := c.Query("days_count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days_count must be a positive integer"))
			return
		}
		days = parsed
	}
	rows, err := h.service.History(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"days_count": days})
}

// Start godoc
// @Summary Start a job now
// @Tags Jobs
// @Produce json
// @Param jobKey path string true "Job key"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /job/{jobKey}/start [get]
func (h *JobHandler) Start(c *gin.Context) {
	message, err := h.service.Start(c.Request.Context(), c.Param("jobKey"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.MessageResponse{Message: message})
}
