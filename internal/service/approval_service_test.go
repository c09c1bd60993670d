package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type stubCourseLookup struct {
	courses map[int]models.Course
}

func (s *stubCourseLookup) GetCourse(ctx context.Context, termID, sectionID int) (*models.Course, error) {
	course, ok := s.courses[sectionID]
	if !ok || course.TermID != termID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no section")
	}
	return &course, nil
}

func (s *stubCourseLookup) ListCourses(ctx context.Context, termID int, sectionIDs []int) ([]models.Course, error) {
	var out []models.Course
	for _, id := range sectionIDs {
		if course, ok := s.courses[id]; ok && course.TermID == termID {
			out = append(out, course)
		}
	}
	models.SortCoursesByName(out)
	return out, nil
}

// memApprovals enforces the (approver, section, term) constraint like postgres does.
type memApprovals struct {
	rows       []models.Approval
	skipLookup bool
}

func (m *memApprovals) Create(ctx context.Context, approval *models.Approval) error {
	for _, row := range m.rows {
		if row.ApprovedByUID == approval.ApprovedByUID && row.SectionID == approval.SectionID && row.TermID == approval.TermID {
			return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	approval.ID = len(m.rows) + 1
	approval.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(m.rows)) * time.Minute)
	m.rows = append(m.rows, *approval)
	return nil
}

func (m *memApprovals) FindByApprover(ctx context.Context, uid string, sectionID, termID int) (*models.Approval, error) {
	if m.skipLookup {
		return nil, sql.ErrNoRows
	}
	for _, row := range m.rows {
		if row.ApprovedByUID == uid && row.SectionID == sectionID && row.TermID == termID {
			r := row
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memApprovals) ListBySection(ctx context.Context, sectionID, termID int) ([]models.Approval, error) {
	var out []models.Approval
	for _, row := range m.rows {
		if row.SectionID == sectionID && row.TermID == termID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memApprovals) ListByTerm(ctx context.Context, termID int) ([]models.Approval, error) {
	var out []models.Approval
	for _, row := range m.rows {
		if row.TermID == termID {
			out = append(out, row)
		}
	}
	return out, nil
}

type stubRooms struct {
	rooms map[string]models.Room
}

func (s *stubRooms) FindByLocation(ctx context.Context, location string) (*models.Room, error) {
	room, ok := s.rooms[location]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &room, nil
}

type stubScheduled struct {
	rows []models.Scheduled
}

func (s *stubScheduled) FindBySection(ctx context.Context, sectionID, termID int) (*models.Scheduled, error) {
	for _, row := range s.rows {
		if row.SectionID == sectionID && row.TermID == termID {
			r := row
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubScheduled) ListByTerm(ctx context.Context, termID int) ([]models.Scheduled, error) {
	return s.rows, nil
}

type stubPreferences struct {
	saved    []*models.CoursePreference
	optedOut []int
}

func (s *stubPreferences) UpsertOptOut(ctx context.Context, pref *models.CoursePreference) error {
	s.saved = append(s.saved, pref)
	return nil
}

func (s *stubPreferences) ListOptedOut(ctx context.Context, termID int) ([]int, error) {
	return s.optedOut, nil
}

type stubSectionIDs struct {
	ids []int
}

func (s *stubSectionIDs) SectionIDs(ctx context.Context, templateType models.TemplateType, termID int) ([]int, error) {
	return s.ids, nil
}

type stubEligible struct {
	ids []int
}

func (s *stubEligible) ListEligibleSectionIDs(ctx context.Context, termID int) ([]int, error) {
	return s.ids, nil
}

type approvalFixture struct {
	svc       *ApprovalService
	approvals *memApprovals
	sender    *recordingSender
	prefs     *stubPreferences
	scheduled *stubScheduled
}

func newApprovalFixture() *approvalFixture {
	course := models.Course{
		TermID:          2202,
		SectionID:       101,
		CourseName:      "S101",
		MeetingLocation: "Barrows 106",
		Instructors:     instructorsAB(),
	}
	elsewhere := models.Course{TermID: 2202, SectionID: 202, CourseName: "ART 8", MeetingLocation: "Off Campus", Instructors: []models.Instructor{{UID: "A"}}}
	approvals := &memApprovals{}
	sender := &recordingSender{}
	templates := &stubTemplateRepo{byType: map[models.TemplateType]*models.EmailTemplate{
		models.TemplateWaitingForApproval:        {SubjectLine: "Waiting on you for <code>course.name</code>", Message: "m"},
		models.TemplateNotifyInstructorOfChanges: {SubjectLine: "Changes to <code>course.name</code>", Message: "m"},
	}}
	prefs := &stubPreferences{}
	scheduled := &stubScheduled{}
	deps := ApprovalDeps{
		Courses:     &stubCourseLookup{courses: map[int]models.Course{101: course, 202: elsewhere}},
		Approvals:   approvals,
		Rooms:       &stubRooms{rooms: map[string]models.Room{"Barrows 106": {ID: 7, Location: "Barrows 106"}}},
		Scheduled:   scheduled,
		Preferences: prefs,
		Eligible:    &stubEligible{ids: []int{101}},
		Queued:      &stubSectionIDs{},
		Sent:        &stubSectionIDs{},
		Notifier:    NewNotificationDispatcher(templates, NewEmailMerge("https://cc.example.edu", 2202), sender, nil),
	}
	return &approvalFixture{
		svc:       NewApprovalService(deps, 2202, nil, nil),
		approvals: approvals,
		sender:    sender,
		prefs:     prefs,
		scheduled: scheduled,
	}
}

func instructorClaims(uid string) *models.JWTClaims {
	return &models.JWTClaims{UID: uid, Role: models.RoleInstructor, Name: "Instructor " + uid}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UID: "90001", Role: models.RoleAdmin, Name: "Admin"}
}

func TestRecordApprovalWalkthrough(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()
	req := dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio}

	status, err := f.svc.RecordApproval(ctx, instructorClaims("A"), req)
	require.NoError(t, err)
	assert.Equal(t, string(models.TemplateWaitingForApproval), status.NotificationSent)
	assert.False(t, status.HasNecessaryApprovals)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "B", f.sender.sent[0].Recipients[0].UID)
	assert.Equal(t, "Waiting on you for S101", f.sender.sent[0].Subject)

	status, err = f.svc.RecordApproval(ctx, instructorClaims("B"), req)
	require.NoError(t, err)
	assert.Empty(t, status.NotificationSent)
	assert.True(t, status.HasNecessaryApprovals)
	assert.Len(t, status.Approvals, 2)
	assert.Len(t, f.sender.sent, 1)

	changed := req
	changed.PublishType = models.PublishKalturaMediaGallery
	_, err = f.svc.RecordApproval(ctx, instructorClaims("B"), changed)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateApproval.Code, appErr.Code)
	assert.Equal(t, "You have already approved recording of S101, Spring 2020", appErr.Message)
	assert.Len(t, f.approvals.rows, 2)
}

func TestRecordApprovalUniqueViolationBackstop(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()
	req := dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio}

	_, err := f.svc.RecordApproval(ctx, instructorClaims("A"), req)
	require.NoError(t, err)

	f.approvals.skipLookup = true
	_, err = f.svc.RecordApproval(ctx, instructorClaims("A"), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateApproval))
	assert.Len(t, f.approvals.rows, 1)
}

func TestRecordApprovalChangeNotifiesEveryInstructor(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	_, err := f.svc.RecordApproval(ctx, adminClaims(), dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio})
	require.NoError(t, err)
	assert.Equal(t, models.ApproverAdmin, f.approvals.rows[0].ApproverType)

	status, err := f.svc.RecordApproval(ctx, instructorClaims("A"), dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresentationAudio})
	require.NoError(t, err)
	assert.Equal(t, string(models.TemplateNotifyInstructorOfChanges), status.NotificationSent)
	assert.True(t, status.HasNecessaryApprovals)
}

func TestRecordApprovalAfterAdminApprovalIsQuiet(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()
	req := dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio}

	_, err := f.svc.RecordApproval(ctx, adminClaims(), req)
	require.NoError(t, err)
	sentBefore := len(f.sender.sent)

	status, err := f.svc.RecordApproval(ctx, instructorClaims("A"), req)
	require.NoError(t, err)
	assert.Empty(t, status.NotificationSent)
	assert.Len(t, f.sender.sent, sentBefore)
}

func TestRecordApprovalRejections(t *testing.T) {
	tests := []struct {
		name  string
		actor *models.JWTClaims
		req   dto.ApproveRequest
		code  string
	}{
		{"missing section", instructorClaims("A"), dto.ApproveRequest{PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio}, appErrors.ErrValidation.Code},
		{"bad publish type", instructorClaims("A"), dto.ApproveRequest{SectionID: 101, PublishType: "youtube", RecordingType: models.RecordingPresenterAudio}, appErrors.ErrValidation.Code},
		{"bad recording type", instructorClaims("A"), dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: "video_only"}, appErrors.ErrValidation.Code},
		{"unknown section", instructorClaims("A"), dto.ApproveRequest{SectionID: 999, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio}, appErrors.ErrNotFound.Code},
		{"not an instructor", instructorClaims("Z"), dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio}, appErrors.ErrForbidden.Code},
		{"ineligible room", instructorClaims("A"), dto.ApproveRequest{SectionID: 202, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio}, appErrors.ErrInvalidLocation.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newApprovalFixture()
			_, err := f.svc.RecordApproval(context.Background(), tt.actor, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, appErrors.FromError(err).Code)
			assert.Empty(t, f.approvals.rows)
		})
	}
}

func TestRecordApprovalInvalidLocationMessage(t *testing.T) {
	f := newApprovalFixture()
	_, err := f.svc.RecordApproval(context.Background(), instructorClaims("A"), dto.ApproveRequest{SectionID: 202, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio})
	require.Error(t, err)
	assert.Equal(t, "Off Campus is not eligible for Course Capture.", appErrors.FromError(err).Message)
}

func TestRecordApprovalSurvivesNotificationFailure(t *testing.T) {
	f := newApprovalFixture()
	f.sender.fail = map[string]bool{"B": true}

	status, err := f.svc.RecordApproval(context.Background(), instructorClaims("A"), dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio})
	require.NoError(t, err)
	assert.Len(t, f.approvals.rows, 1)
	assert.Equal(t, string(models.TemplateWaitingForApproval), status.NotificationSent)
}

func TestCourseStatusAuthorization(t *testing.T) {
	f := newApprovalFixture()
	_, err := f.svc.CourseStatus(context.Background(), instructorClaims("Z"), 2202, 101)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	status, err := f.svc.CourseStatus(context.Background(), instructorClaims("B"), 2202, 101)
	require.NoError(t, err)
	require.NotNil(t, status.Room)
	assert.Equal(t, 7, status.Room.ID)
	assert.Nil(t, status.Scheduled)
	assert.Equal(t, models.PublishTypeNames, status.PublishTypeOptions)
}

func TestHasNecessaryApprovals(t *testing.T) {
	course := models.Course{Instructors: instructorsAB()}
	assert.False(t, HasNecessaryApprovals(course, nil))
	assert.False(t, HasNecessaryApprovals(course, []models.Approval{{ApprovedByUID: "A", ApproverType: models.ApproverInstructor}}))
	assert.True(t, HasNecessaryApprovals(course, []models.Approval{
		{ApprovedByUID: "A", ApproverType: models.ApproverInstructor},
		{ApprovedByUID: "B", ApproverType: models.ApproverInstructor},
	}))
	assert.True(t, HasNecessaryApprovals(course, []models.Approval{{ApprovedByUID: "90001", ApproverType: models.ApproverAdmin}}))
	assert.False(t, HasNecessaryApprovals(models.Course{}, nil))
}

func TestListCoursesFilters(t *testing.T) {
	f := newApprovalFixture()
	ctx := context.Background()

	overviews, err := f.svc.ListCourses(ctx, dto.CoursesRequest{TermID: 2202})
	require.NoError(t, err)
	require.Len(t, overviews, 1)
	assert.Equal(t, "Not Invited", overviews[0].Status)

	_, err = f.svc.RecordApproval(ctx, instructorClaims("A"), dto.ApproveRequest{SectionID: 101, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterAudio})
	require.NoError(t, err)

	overviews, err = f.svc.ListCourses(ctx, dto.CoursesRequest{TermID: 2202, Filter: dto.FilterNotInvited})
	require.NoError(t, err)
	assert.Empty(t, overviews)

	overviews, err = f.svc.ListCourses(ctx, dto.CoursesRequest{TermID: 2202, Filter: dto.FilterPartiallyApproved})
	require.NoError(t, err)
	require.Len(t, overviews, 1)
	assert.Equal(t, "Partially Approved", overviews[0].Status)
	assert.Len(t, overviews[0].Approvals, 1)

	f.scheduled.rows = []models.Scheduled{{SectionID: 101, TermID: 2202}}
	overviews, err = f.svc.ListCourses(ctx, dto.CoursesRequest{TermID: 2202, Filter: dto.FilterScheduled})
	require.NoError(t, err)
	require.Len(t, overviews, 1)
	assert.Equal(t, "Scheduled", overviews[0].Status)
	require.NotNil(t, overviews[0].Scheduled)

	_, err = f.svc.ListCourses(ctx, dto.CoursesRequest{TermID: 2202, Filter: "Bogus"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateOptOut(t *testing.T) {
	f := newApprovalFixture()
	pref, err := f.svc.UpdateOptOut(context.Background(), dto.OptOutRequest{TermID: 2202, SectionID: 101, OptOut: true})
	require.NoError(t, err)
	assert.True(t, pref.OptOut)
	require.Len(t, f.prefs.saved, 1)

	_, err = f.svc.UpdateOptOut(context.Background(), dto.OptOutRequest{SectionID: 101})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
