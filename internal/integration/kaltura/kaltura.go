// Package kaltura schedules lecture capture with the Kaltura video platform.
package kaltura

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	resourceCacheKey = "kaltura:resources"
	resourceCacheTTL = 30 * time.Second

	sessionTypeAdmin        = 2
	recurrenceTypeRecurring = 1
	eventStatusActive       = 2
	classificationPrivate   = 2
)

// ErrDisabled is returned by calls that need the platform while the integration is off.
var ErrDisabled = errors.New("kaltura integration disabled")

// Cache stores short-lived platform responses.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Config configures the client. The client makes no calls unless Enabled.
type Config struct {
	Enabled      bool
	ServiceURL   string
	PartnerID    string
	AdminSecret  string
	UniqueUserID string
	Organizer    string
	TimeZone     string
	Timeout      time.Duration
}

// Resource is a schedulable capture resource, normally one per room.
type Resource struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Recording describes the weekly capture of one section for a term.
type Recording struct {
	CourseLabel    string
	InstructorUIDs []string
	Days           []string
	StartTime      string
	EndTime        string
	PublishType    string
	RecordingType  string
	Location       string
	ResourceID     int
	TermBegin      time.Time
	TermEnd        time.Time
}

// APIError is an exception reported by the platform.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kaltura: %s: %s", e.Code, e.Message)
}

// Client talks to the Kaltura REST API using JSON payloads.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  Cache
	logger *zap.Logger
}

// New constructs a Client. cache may be nil.
func New(cfg Config, cache Cache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "US/Pacific"
	}
	if cfg.UniqueUserID == "" {
		cfg.UniqueUserID = "kmsAdminServiceUser"
	}
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, cache: cache, logger: logger}
}

// Enabled reports whether calls reach the platform.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

// ListResources returns every schedule resource. Results are cached for 30 seconds.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	if !c.Enabled() {
		return []Resource{}, nil
	}
	var cached []Resource
	if c.cache != nil {
		if hit, _ := c.cache.Get(ctx, resourceCacheKey, &cached); hit {
			return cached, nil
		}
	}

	ks, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Objects []Resource `json:"objects"`
	}
	body := map[string]interface{}{
		"ks":     ks,
		"filter": map[string]interface{}{"objectType": "KalturaScheduleResourceFilter"},
		"pager":  map[string]interface{}{"objectType": "KalturaFilterPager", "pageSize": 500},
	}
	if err := c.call(ctx, "schedule_scheduleresource", "list", body, &resp); err != nil {
		return nil, err
	}
	if resp.Objects == nil {
		resp.Objects = []Resource{}
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, resourceCacheKey, resp.Objects, resourceCacheTTL); err != nil {
			c.logger.Warn("failed to cache kaltura resources", zap.Error(err))
		}
	}
	return resp.Objects, nil
}

// ScheduleRecording creates a weekly recurring capture event and binds it to the
// room's resource. It returns the event id, or zero when the integration is off.
func (c *Client) ScheduleRecording(ctx context.Context, rec Recording) (int, error) {
	if !c.Enabled() {
		c.logger.Info("kaltura disabled, skipping schedule", zap.String("course", rec.CourseLabel))
		return 0, nil
	}
	if rec.ResourceID <= 0 {
		return 0, fmt.Errorf("kaltura: no resource for %s", rec.Location)
	}
	if len(rec.Days) == 0 {
		return 0, fmt.Errorf("kaltura: %s has no meeting days", rec.CourseLabel)
	}

	ks, err := c.session(ctx)
	if err != nil {
		return 0, err
	}

	description := fmt.Sprintf("%s meets in %s, %s - %s on %s. Recordings of type %s will be published to %s.",
		rec.CourseLabel, rec.Location, rec.StartTime, rec.EndTime, strings.Join(rec.Days, ","), rec.RecordingType, rec.PublishType)
	event := map[string]interface{}{
		"objectType":         "KalturaRecordScheduleEvent",
		"summary":            rec.CourseLabel,
		"description":        description,
		"comment":            fmt.Sprintf("Recordings for %s scheduled by Course Capture.", rec.CourseLabel),
		"contact":            "Instructor UIDs: " + strings.Join(rec.InstructorUIDs, ","),
		"organizer":          c.cfg.Organizer,
		"ownerId":            c.cfg.UniqueUserID,
		"classificationType": classificationPrivate,
		"status":             eventStatusActive,
		"recurrenceType":     recurrenceTypeRecurring,
		"startDate":          rec.TermBegin.Unix(),
		"endDate":            rec.TermEnd.Unix(),
		"recurrence": map[string]interface{}{
			"objectType":   "KalturaScheduleEventRecurrence",
			"frequency":    "weeks",
			"byDay":        strings.Join(rec.Days, ","),
			"timeZone":     c.cfg.TimeZone,
			"weekStartDay": rec.Days[0],
		},
	}
	var created struct {
		ID int `json:"id"`
	}
	if err := c.call(ctx, "schedule_scheduleevent", "add", map[string]interface{}{"ks": ks, "scheduleEvent": event}, &created); err != nil {
		return 0, err
	}

	link := map[string]interface{}{
		"ks": ks,
		"scheduleEventResource": map[string]interface{}{
			"objectType": "KalturaScheduleEventResource",
			"eventId":    created.ID,
			"resourceId": rec.ResourceID,
		},
	}
	if err := c.call(ctx, "schedule_scheduleeventresource", "add", link, nil); err != nil {
		return 0, err
	}
	c.logger.Info("kaltura recording scheduled", zap.String("course", rec.CourseLabel), zap.Int("event_id", created.ID))
	return created.ID, nil
}

// Ping verifies credentials by opening a session.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	_, err := c.session(ctx)
	return err
}

// SplitDays turns a meeting pattern such as "MOWEFR" into two-letter day codes.
func SplitDays(meetingDays string) []string {
	meetingDays = strings.ToUpper(strings.TrimSpace(meetingDays))
	days := make([]string, 0, len(meetingDays)/2)
	for i := 0; i+1 < len(meetingDays); i += 2 {
		days = append(days, meetingDays[i:i+2])
	}
	return days
}

func (c *Client) session(ctx context.Context) (string, error) {
	var ks string
	body := map[string]interface{}{
		"secret":    c.cfg.AdminSecret,
		"userId":    c.cfg.UniqueUserID,
		"type":      sessionTypeAdmin,
		"partnerId": c.cfg.PartnerID,
		"expiry":    3600,
	}
	if err := c.call(ctx, "session", "start", body, &ks); err != nil {
		return "", err
	}
	return ks, nil
}

func (c *Client) call(ctx context.Context, service, action string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("kaltura: encode %s.%s: %w", service, action, err)
	}
	url := fmt.Sprintf("%s/api_v3/service/%s/action/%s?format=1", c.cfg.ServiceURL, service, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("kaltura: build %s.%s: %w", service, action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("kaltura: %s.%s: %w", service, action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kaltura: read %s.%s: %w", service, action, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("kaltura: %s.%s returned %d", service, action, resp.StatusCode)
	}

	var exception struct {
		ObjectType string `json:"objectType"`
		APIError
	}
	if json.Unmarshal(raw, &exception) == nil && exception.ObjectType == "KalturaAPIException" {
		return &exception.APIError
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("kaltura: decode %s.%s: %w", service, action, err)
	}
	return nil
}
