package kaltura

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu     sync.Mutex
	calls  []string
	bodies map[string]map[string]interface{}
}

func (f *fakePlatform) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("format"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		path := strings.TrimPrefix(r.URL.Path, "/api_v3/service/")

		f.mu.Lock()
		f.calls = append(f.calls, path)
		if f.bodies == nil {
			f.bodies = make(map[string]map[string]interface{})
		}
		f.bodies[path] = body
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch path {
		case "session/action/start":
			if body["secret"] != "s3cret" {
				_, _ = w.Write([]byte(`{"objectType":"KalturaAPIException","code":"START_SESSION_ERROR","message":"bad secret"}`))
				return
			}
			_, _ = w.Write([]byte(`"ks-token"`))
		case "schedule_scheduleresource/action/list":
			_, _ = w.Write([]byte(`{"objects":[{"id":7,"name":"Barrows 106"},{"id":9,"name":"Dwinelle 155"}],"totalCount":2}`))
		case "schedule_scheduleevent/action/add":
			_, _ = w.Write([]byte(`{"id":321,"objectType":"KalturaRecordScheduleEvent"}`))
		case "schedule_scheduleeventresource/action/add":
			_, _ = w.Write([]byte(`{"eventId":321,"resourceId":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (f *fakePlatform) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call == path {
			n++
		}
	}
	return n
}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func newTestClient(t *testing.T, secret string, cache Cache) (*Client, *fakePlatform) {
	platform := &fakePlatform{}
	server := httptest.NewServer(platform.handler(t))
	t.Cleanup(server.Close)
	client := New(Config{Enabled: true, ServiceURL: server.URL + "/", PartnerID: "1234", AdminSecret: secret}, cache, nil)
	return client, platform
}

func TestListResourcesIsCached(t *testing.T) {
	client, platform := newTestClient(t, "s3cret", &memCache{data: map[string][]byte{}})

	first, err := client.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, Resource{ID: 7, Name: "Barrows 106"}, first[0])

	second, err := client.ListResources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, platform.count("schedule_scheduleresource/action/list"))
}

func TestScheduleRecordingCreatesEventAndLinksResource(t *testing.T) {
	client, platform := newTestClient(t, "s3cret", nil)
	begin := time.Date(2020, 1, 21, 0, 0, 0, 0, time.UTC)

	id, err := client.ScheduleRecording(context.Background(), Recording{
		CourseLabel:    "BIO 1A, LEC 001",
		InstructorUIDs: []string{"A", "B"},
		Days:           SplitDays("MOWE"),
		StartTime:      "10:00",
		EndTime:        "11:00",
		PublishType:    "bCourses",
		RecordingType:  "Presenter and Audio",
		Location:       "Barrows 106",
		ResourceID:     7,
		TermBegin:      begin,
		TermEnd:        begin.AddDate(0, 4, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 321, id)

	event := platform.bodies["schedule_scheduleevent/action/add"]["scheduleEvent"].(map[string]interface{})
	assert.Equal(t, "BIO 1A, LEC 001", event["summary"])
	assert.Equal(t, "Instructor UIDs: A,B", event["contact"])
	recurrence := event["recurrence"].(map[string]interface{})
	assert.Equal(t, "MO,WE", recurrence["byDay"])
	assert.Equal(t, "MO", recurrence["weekStartDay"])

	link := platform.bodies["schedule_scheduleeventresource/action/add"]["scheduleEventResource"].(map[string]interface{})
	assert.Equal(t, float64(321), link["eventId"])
	assert.Equal(t, float64(7), link["resourceId"])
}

func TestAPIExceptionIsReturned(t *testing.T) {
	client, _ := newTestClient(t, "wrong", nil)

	err := client.Ping(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "START_SESSION_ERROR", apiErr.Code)
}

func TestDisabledClientIsInert(t *testing.T) {
	client := New(Config{}, nil, nil)

	resources, err := client.ListResources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resources)

	id, err := client.ScheduleRecording(context.Background(), Recording{CourseLabel: "BIO 1A"})
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.ErrorIs(t, client.Ping(context.Background()), ErrDisabled)
}

func TestSplitDays(t *testing.T) {
	assert.Equal(t, []string{"MO", "WE", "FR"}, SplitDays("mowefr"))
	assert.Equal(t, []string{"TU"}, SplitDays("TUX"))
	assert.Empty(t, SplitDays(""))
}
