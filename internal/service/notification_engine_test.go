package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type stubTemplateRepo struct {
	byType map[models.TemplateType]*models.EmailTemplate
	err    error
}

func (s *stubTemplateRepo) FindByType(ctx context.Context, templateType models.TemplateType) (*models.EmailTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	tpl, ok := s.byType[templateType]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return tpl, nil
}

type recordingSender struct {
	sent []OutboundEmail
	fail map[string]bool
}

func (r *recordingSender) Send(ctx context.Context, email OutboundEmail) error {
	if len(email.Recipients) > 0 && r.fail[email.Recipients[0].UID] {
		return errors.New("relay down")
	}
	r.sent = append(r.sent, email)
	return nil
}

func approvalBy(uid string, publish models.PublishType, recording models.RecordingType, offset time.Duration) models.Approval {
	return models.Approval{
		ApprovedByUID: uid,
		ApproverType:  models.ApproverInstructor,
		SectionID:     101,
		TermID:        2202,
		PublishType:   publish,
		RecordingType: recording,
		CreatedAt:     time.Date(2020, 1, 10, 9, 0, 0, 0, time.UTC).Add(offset),
	}
}

func instructorsAB() []models.Instructor {
	return []models.Instructor{
		{UID: "A", FirstName: "Ada", LastName: "Lovelace", EmailAddress: "a@example.edu"},
		{UID: "B", FirstName: "Bob", LastName: "Babbage", EmailAddress: "b@example.edu"},
	}
}

func TestDecideNotificationWalkthrough(t *testing.T) {
	instructors := instructorsAB()

	first := approvalBy("A", models.PublishCanvas, models.RecordingPresenterAudio, 0)
	decision := DecideNotification(first, nil, instructors)
	assert.Equal(t, models.TemplateWaitingForApproval, decision.TemplateType)
	require.Len(t, decision.Recipients, 1)
	assert.Equal(t, "B", decision.Recipients[0].UID)

	second := approvalBy("B", models.PublishCanvas, models.RecordingPresenterAudio, time.Hour)
	decision = DecideNotification(second, []models.Approval{first}, instructors)
	assert.True(t, decision.None())
	assert.Empty(t, decision.Recipients)
}

func TestDecideNotificationChangeBeatsPending(t *testing.T) {
	instructors := append(instructorsAB(), models.Instructor{UID: "C"})
	first := approvalBy("A", models.PublishCanvas, models.RecordingPresenterAudio, 0)
	latest := approvalBy("B", models.PublishKalturaMediaGallery, models.RecordingPresenterAudio, time.Hour)

	decision := DecideNotification(latest, []models.Approval{first}, instructors)
	assert.Equal(t, models.TemplateNotifyInstructorOfChanges, decision.TemplateType)
	assert.Len(t, decision.Recipients, 3)
	assert.Equal(t, models.PublishCanvas, decision.PreviousPublishType)
	assert.Equal(t, models.RecordingPresenterAudio, decision.PreviousRecordingType)
}

func TestDecideNotificationComparesAgainstMostRecent(t *testing.T) {
	instructors := instructorsAB()
	history := []models.Approval{
		approvalBy("A", models.PublishCanvas, models.RecordingPresentationAudio, 0),
		approvalBy("admin", models.PublishCanvas, models.RecordingPresenterAudio, time.Hour),
	}
	latest := approvalBy("B", models.PublishCanvas, models.RecordingPresenterAudio, 2*time.Hour)

	decision := DecideNotification(latest, history, instructors)
	assert.True(t, decision.None())
}

func TestDecideNotificationPendingRecipientsAreAbsentInstructors(t *testing.T) {
	instructors := []models.Instructor{{UID: "A"}, {UID: "B"}, {UID: "C"}}
	history := []models.Approval{
		approvalBy("admin", models.PublishCanvas, models.RecordingPresenterAudio, 0),
	}
	latest := approvalBy("A", models.PublishCanvas, models.RecordingPresenterAudio, time.Hour)

	decision := DecideNotification(latest, history, instructors)
	assert.Equal(t, models.TemplateWaitingForApproval, decision.TemplateType)
	uids := []string{}
	for _, r := range decision.Recipients {
		uids = append(uids, r.UID)
	}
	assert.Equal(t, []string{"B", "C"}, uids)
}

func TestDecideNotificationAdminApproverCountsTowardTotal(t *testing.T) {
	history := []models.Approval{
		approvalBy("admin", models.PublishCanvas, models.RecordingPresenterAudio, 0),
	}
	latest := approvalBy("A", models.PublishCanvas, models.RecordingPresenterAudio, time.Hour)

	decision := DecideNotification(latest, history, instructorsAB())
	assert.True(t, decision.None())
	assert.Empty(t, decision.Recipients)

	adminOnly := approvalBy("admin", models.PublishCanvas, models.RecordingPresenterAudio, 0)
	decision = DecideNotification(adminOnly, nil, instructorsAB())
	assert.Equal(t, models.TemplateWaitingForApproval, decision.TemplateType)
	assert.Len(t, decision.Recipients, 2)
}

func TestDecideNotificationNoInstructors(t *testing.T) {
	latest := approvalBy("admin", models.PublishCanvas, models.RecordingPresenterAudio, 0)
	assert.True(t, DecideNotification(latest, nil, nil).None())
}

func TestNotificationDispatcherRendersPerRecipient(t *testing.T) {
	templates := &stubTemplateRepo{byType: map[models.TemplateType]*models.EmailTemplate{
		models.TemplateNotifyInstructorOfChanges: {
			TemplateType: models.TemplateNotifyInstructorOfChanges,
			SubjectLine:  "Changes to <code>course.name</code>",
			Message:      "Dear <code>user.name</code>, <code>approver.name</code> changed <code>publish.type.previous</code> to <code>publish.type</code>.",
		},
	}}
	sender := &recordingSender{}
	dispatcher := NewNotificationDispatcher(templates, NewEmailMerge("https://cc.example.edu", 2202), sender, nil)

	course := *sampleCourse()
	course.Instructors = instructorsAB()
	decision := DecideNotification(
		approvalBy("B", models.PublishKalturaMediaGallery, models.RecordingPresenterAudio, time.Hour),
		[]models.Approval{approvalBy("A", models.PublishCanvas, models.RecordingPresenterAudio, 0)},
		course.Instructors,
	)

	sentType, err := dispatcher.Dispatch(context.Background(), decision, course, "Bob Babbage")
	require.NoError(t, err)
	assert.Equal(t, models.TemplateNotifyInstructorOfChanges, sentType)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Changes to BIO 1A", sender.sent[0].Subject)
	assert.Equal(t, "Dear Ada Lovelace, Bob Babbage changed bCourses to My Media, in Kaltura.", sender.sent[0].Body)
	assert.Equal(t, "b@example.edu", sender.sent[1].Recipients[0].Email)
	require.NotNil(t, sender.sent[0].SectionID)
	assert.Equal(t, 26094, *sender.sent[0].SectionID)
}

func TestNotificationDispatcherNothingToSend(t *testing.T) {
	sender := &recordingSender{}
	dispatcher := NewNotificationDispatcher(&stubTemplateRepo{}, NewEmailMerge("", 2202), sender, nil)

	sentType, err := dispatcher.Dispatch(context.Background(), NotificationDecision{}, *sampleCourse(), "x")
	require.NoError(t, err)
	assert.Empty(t, sentType)
	assert.Empty(t, sender.sent)
}

func TestNotificationDispatcherMissingTemplate(t *testing.T) {
	dispatcher := NewNotificationDispatcher(&stubTemplateRepo{}, NewEmailMerge("", 2202), &recordingSender{}, nil)
	decision := NotificationDecision{TemplateType: models.TemplateWaitingForApproval, Recipients: instructorsAB()}

	_, err := dispatcher.Dispatch(context.Background(), decision, *sampleCourse(), "x")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestNotificationDispatcherContinuesAfterFailure(t *testing.T) {
	templates := &stubTemplateRepo{byType: map[models.TemplateType]*models.EmailTemplate{
		models.TemplateWaitingForApproval: {SubjectLine: "s", Message: "m"},
	}}
	sender := &recordingSender{fail: map[string]bool{"A": true}}
	dispatcher := NewNotificationDispatcher(templates, NewEmailMerge("", 2202), sender, nil)
	decision := NotificationDecision{TemplateType: models.TemplateWaitingForApproval, Recipients: instructorsAB()}

	sentType, err := dispatcher.Dispatch(context.Background(), decision, *sampleCourse(), "x")
	require.Error(t, err)
	assert.Equal(t, models.TemplateWaitingForApproval, sentType)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "B", sender.sent[0].Recipients[0].UID)
}
