package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type jobServiceMock struct {
	days    int
	started string
}

func (m *jobServiceMock) List(ctx context.Context) ([]models.JobInfo, error) {
	return []models.JobInfo{{Key: "queued_emails", IntervalStr: "2m0s"}}, nil
}

func (m *jobServiceMock) History(ctx context.Context, daysCount int) ([]models.JobHistory, error) {
	m.days = daysCount
	if daysCount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "days_count must be a positive integer")
	}
	return []models.JobHistory{}, nil
}

func (m *jobServiceMock) Start(ctx context.Context, key string) (string, error) {
	if key == "admin_emails" {
		return "", appErrors.Clone(appErrors.ErrConflict, "Job admin_emails is already running")
	}
	m.started = key
	return "Job " + key + " started", nil
}

func TestJobHandlerHistoryDays(t *testing.T) {
	svc := &jobServiceMock{}
	handler := NewJobHandler(svc)

	w, c := newTestContext(http.MethodGet, "/api/jobs/history", nil)
	handler.History(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultHistoryDays, svc.days)

	w, c = newTestContext(http.MethodGet, "/api/jobs/history?days_count=30", nil)
	handler.History(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, svc.days)

	w, c = newTestContext(http.MethodGet, "/api/jobs/history?days_count=soon", nil)
	handler.History(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, c = newTestContext(http.MethodGet, "/api/jobs/history?days_count=0", nil)
	handler.History(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandlerStart(t *testing.T) {
	svc := &jobServiceMock{}
	handler := NewJobHandler(svc)

	w, c := newTestContext(http.MethodGet, "/api/job/queued_emails/start", nil)
	c.Params = gin.Params{{Key: "jobKey", Value: "queued_emails"}}
	handler.Start(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "queued_emails", svc.started)

	w, c = newTestContext(http.MethodGet, "/api/job/admin_emails/start", nil)
	c.Params = gin.Params{{Key: "jobKey", Value: "admin_emails"}}
	handler.Start(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJobHandlerList(t *testing.T) {
	w, c := newTestContext(http.MethodGet, "/api/jobs", nil)
	NewJobHandler(&jobServiceMock{}).List(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].([]interface{})
	assert.Equal(t, "queued_emails", data[0].(map[string]interface{})["key"])
}
