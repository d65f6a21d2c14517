package events

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
)

func TestDecoderAcceptsValidEnvelope(t *testing.T) {
	decoder, err := NewDecoder()
	require.NoError(t, err)

	event, err := decoder.Decode([]byte(`{"id":"evt-1","type":"AssessmentRescheduled","assessment_id":12,"new_due_date":"2026-11-01T09:00:00Z"}`), "")
	require.NoError(t, err)
	require.Equal(t, "evt-1", event.ID)
	require.Equal(t, dto.EventAssessmentRescheduled, event.Type)
	require.Equal(t, uint(12), event.AssessmentID)
	require.NotNil(t, event.NewDueDate)
	require.Equal(t, 2026, event.NewDueDate.Year())
}

func TestDecoderRejectsInvalidEnvelopes(t *testing.T) {
	decoder, err := NewDecoder()
	require.NoError(t, err)

	cases := map[string]string{
		"malformed":          `{"type":`,
		"unknown type":       `{"type":"CourseArchived","assessment_id":1}`,
		"missing student":    `{"type":"SubmissionReceived","assessment_id":1}`,
		"missing course":     `{"type":"StudentEnrolled","student_id":4}`,
		"missing assessment": `{"type":"AssessmentPublished"}`,
		"negative id":        `{"type":"AssessmentWithdrawn","assessment_id":-3}`,
		"bad date":           `{"type":"AssessmentRescheduled","assessment_id":1,"new_due_date":"tomorrow"}`,
	}

	for name, payload := range cases {
		_, err := decoder.Decode([]byte(payload), "")
		require.ErrorIs(t, err, service.ErrInvalidEvent, name)
	}
}

func TestDecoderUsesSubjectType(t *testing.T) {
	decoder, err := NewDecoder()
	require.NoError(t, err)

	event, err := decoder.Decode([]byte(`{"assessment_id":3,"student_id":9}`), subjectType("gema.events.SubmissionReceived"))
	require.NoError(t, err)
	require.Equal(t, dto.EventSubmissionReceived, event.Type)
	require.Equal(t, uint(9), event.StudentID)
}

func TestSubjectType(t *testing.T) {
	require.Equal(t, "StudentEnrolled", subjectType("gema.events.StudentEnrolled"))
	require.Equal(t, "", subjectType("gema.events."))
	require.Equal(t, "", subjectType("events"))
}

type recordingEventService struct {
	mu     sync.Mutex
	events []dto.DomainEvent
}

func (r *recordingEventService) Handle(_ context.Context, event dto.DomainEvent) (dto.EventResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return dto.EventResult{EventID: event.ID, Type: event.Type}, nil
}

func TestConsumerHandlesMessage(t *testing.T) {
	decoder, err := NewDecoder()
	require.NoError(t, err)

	svc := &recordingEventService{}
	consumer := NewConsumer(nil, "gema:reminders", decoder, svc, 0, zerolog.New(io.Discard))
	require.Equal(t, "gema.reminders.events.>", consumer.Subject())

	consumer.handle(context.Background(), &nats.Msg{
		Subject: "gema.reminders.events.StudentUnenrolled",
		Data:    []byte(`{"course_id":2,"student_id":5}`),
	})
	consumer.handle(context.Background(), &nats.Msg{
		Subject: "gema.reminders.events.StudentUnenrolled",
		Data:    []byte(`{"course_id":2}`),
	})

	require.Len(t, svc.events, 1)
	require.Equal(t, dto.EventStudentUnenrolled, svc.events[0].Type)
	require.Equal(t, uint(2), svc.events[0].CourseID)
}
