package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

// memQueue applies the (section, template type, term) uniqueness of queued_emails.
type memQueue struct {
	rows   []models.QueuedEmail
	nextID int
}

func (m *memQueue) Insert(ctx context.Context, sectionID int, templateType models.TemplateType, termID int) (int64, error) {
	for _, row := range m.rows {
		if row.SectionID == sectionID && row.TemplateType == templateType && row.TermID == termID {
			return 0, nil
		}
	}
	m.nextID++
	m.rows = append(m.rows, models.QueuedEmail{ID: m.nextID, SectionID: sectionID, TemplateType: templateType, TermID: termID})
	return 1, nil
}

func (m *memQueue) ListByTerm(ctx context.Context, termID int) ([]models.QueuedEmail, error) {
	var out []models.QueuedEmail
	for _, row := range m.rows {
		if row.TermID == termID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memQueue) Delete(ctx context.Context, id int) error {
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

type queueFixture struct {
	svc    *EmailQueueService
	queue  *memQueue
	sender *recordingSender
	prefs  *stubPreferences
}

func newQueueFixture() *queueFixture {
	course := *sampleCourse()
	course.Instructors = instructorsAB()
	queue := &memQueue{}
	sender := &recordingSender{}
	prefs := &stubPreferences{}
	approvals := &memApprovals{rows: []models.Approval{{ApprovedByUID: "A", SectionID: course.SectionID, TermID: 2202, PublishType: models.PublishCanvas, RecordingType: models.RecordingPresenterPresentationAudio}}}
	templates := &stubTemplateRepo{byType: map[models.TemplateType]*models.EmailTemplate{
		models.TemplateInvitation:          {SubjectLine: "Invitation: <code>course.name</code>", Message: "Dear <code>user.name</code>"},
		models.TemplateRecordingsScheduled: {SubjectLine: "Scheduled", Message: "<code>recording.type</code> in <code>course.room</code>"},
	}}
	svc := NewEmailQueueService(EmailQueueDeps{
		Queue:       queue,
		Courses:     &stubCourseLookup{courses: map[int]models.Course{course.SectionID: course}},
		Templates:   templates,
		Approvals:   approvals,
		Preferences: prefs,
		Merge:       NewEmailMerge("https://cc.example.edu", 2202),
		Mailer:      sender,
	}, nil, nil)
	return &queueFixture{svc: svc, queue: queue, sender: sender, prefs: prefs}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()

	first, err := f.svc.Enqueue(ctx, 26094, models.TemplateInvitation, 2202)
	require.NoError(t, err)
	second, err := f.svc.Enqueue(ctx, 26094, models.TemplateInvitation, 2202)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, f.queue.rows, 1)
}

func TestEnqueueRejectsUnknownTemplateType(t *testing.T) {
	f := newQueueFixture()
	_, err := f.svc.Enqueue(context.Background(), 26094, "birthday", 2202)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestQueueBatchMessages(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()

	result, err := f.svc.QueueBatch(ctx, dto.QueueEmailsRequest{TermID: 2202, SectionIDs: []int{1, 2}, TemplateType: models.TemplateInvitation})
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewlyQueued)
	assert.Equal(t, "2 'invitation' emails will be sent.", result.Message)

	result, err = f.svc.QueueBatch(ctx, dto.QueueEmailsRequest{TermID: 2202, SectionIDs: []int{1, 2, 3}, TemplateType: models.TemplateInvitation})
	require.NoError(t, err)
	assert.Equal(t, 2, result.AlreadyQueued)
	assert.Equal(t, 1, result.NewlyQueued)
	assert.Equal(t, "2 'invitation' emails were already queued up for the courses you submitted. Thus, only 1 emails added to the queue.", result.Message)

	result, err = f.svc.QueueBatch(ctx, dto.QueueEmailsRequest{TermID: 2202, SectionIDs: []int{3}, TemplateType: models.TemplateInvitation})
	require.NoError(t, err)
	assert.Equal(t, "1 'invitation' emails were already queued up for the course you submitted. Thus, no emails added to the queue.", result.Message)
	assert.Len(t, f.queue.rows, 3)
}

func TestQueueBatchValidation(t *testing.T) {
	f := newQueueFixture()
	_, err := f.svc.QueueBatch(context.Background(), dto.QueueEmailsRequest{TermID: 2202, TemplateType: models.TemplateInvitation})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDrainDeliversAndRemoves(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()
	_, _ = f.svc.Enqueue(ctx, 26094, models.TemplateRecordingsScheduled, 2202)

	result, err := f.svc.Drain(ctx, 2202)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Sent: 1}, result)
	assert.Empty(t, f.queue.rows)
	require.Len(t, f.sender.sent, 1)
	email := f.sender.sent[0]
	assert.Len(t, email.Recipients, 2)
	assert.Equal(t, "Presenter, Presentation, and Audio in Barrows 106", email.Body)
}

func TestDrainJoinsRecipientNames(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()
	_, _ = f.svc.Enqueue(ctx, 26094, models.TemplateInvitation, 2202)

	_, err := f.svc.Drain(ctx, 2202)
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Dear Ada Lovelace,Bob Babbage", f.sender.sent[0].Body)
	assert.Equal(t, "Invitation: BIO 1A", f.sender.sent[0].Subject)
}

func TestDrainLeavesFailuresQueued(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()
	f.sender.fail = map[string]bool{"A": true}
	_, _ = f.svc.Enqueue(ctx, 26094, models.TemplateInvitation, 2202)
	_, _ = f.svc.Enqueue(ctx, 26094, models.TemplateWaitingForApproval, 2202)

	result, err := f.svc.Drain(ctx, 2202)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, f.queue.rows, 2)
}

func TestDrainSkipsOptedOutAndMissingSections(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()
	f.prefs.optedOut = []int{26094}
	_, _ = f.svc.Enqueue(ctx, 26094, models.TemplateInvitation, 2202)
	_, _ = f.svc.Enqueue(ctx, 555, models.TemplateRecordingsScheduled, 2202)

	result, err := f.svc.Drain(ctx, 2202)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Skipped: 2}, result)
	assert.Empty(t, f.queue.rows)
	assert.Empty(t, f.sender.sent)
}
