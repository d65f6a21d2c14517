package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/observability"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

// EventService applies domain events from collaborating services to the reminder store.
type EventService interface {
	Handle(ctx context.Context, event dto.DomainEvent) (dto.EventResult, error)
}

type eventService struct {
	scheduler   SchedulerService
	assessments repository.AssessmentRepository
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewEventService constructs the event service.
func NewEventService(scheduler SchedulerService, assessments repository.AssessmentRepository, validate *validator.Validate, logger zerolog.Logger) EventService {
	return &eventService{
		scheduler:   scheduler,
		assessments: assessments,
		validator:   validate,
		logger:      logger.With().Str("component", "event_service").Logger(),
	}
}

func (s *eventService) Handle(ctx context.Context, event dto.DomainEvent) (dto.EventResult, error) {
	result := dto.EventResult{EventID: event.ID, Type: event.Type}

	if err := s.validate(event); err != nil {
		observability.EventsProcessed().WithLabelValues(event.Type, "invalid").Inc()
		return result, err
	}

	logger := s.logger.With().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Uint("assessment_id", event.AssessmentID).
		Uint("course_id", event.CourseID).
		Uint("student_id", event.StudentID).
		Logger()

	var (
		summary dto.ReconcileSummary
		err     error
	)

	switch event.Type {
	case dto.EventAssessmentPublished, dto.EventAssessmentDeactivated:
		summary, err = s.scheduler.ReconcileAssessment(ctx, event.AssessmentID)
	case dto.EventAssessmentRescheduled:
		s.checkDueDate(ctx, logger, event)
		summary, err = s.scheduler.ReconcileAssessment(ctx, event.AssessmentID)
	case dto.EventAssessmentWithdrawn:
		summary, err = s.scheduler.CancelForAssessment(ctx, event.AssessmentID, ReasonWithdrawn)
	case dto.EventStudentEnrolled:
		summary, err = s.scheduler.ReconcileStudent(ctx, event.CourseID, event.StudentID)
	case dto.EventStudentUnenrolled:
		summary, err = s.scheduler.CancelForStudent(ctx, event.CourseID, event.StudentID, ReasonUnenrolled)
	case dto.EventSubmissionReceived:
		summary, err = s.scheduler.CancelForSubmission(ctx, event.AssessmentID, event.StudentID)
	default:
		err = fmt.Errorf("%w: unsupported type %q", ErrInvalidEvent, event.Type)
	}

	result.Summary = summary
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrAssessmentNotFound) || errors.Is(err, ErrInvalidEvent) {
			outcome = "rejected"
		}
		observability.EventsProcessed().WithLabelValues(event.Type, outcome).Inc()
		logger.Error().Err(err).Msg("domain event failed")
		return result, err
	}

	observability.EventsProcessed().WithLabelValues(event.Type, "ok").Inc()
	logger.Info().
		Int("scheduled", summary.Scheduled).
		Int("cancelled", summary.Cancelled).
		Msg("domain event applied")

	return result, nil
}

func (s *eventService) validate(event dto.DomainEvent) error {
	if err := s.validator.Struct(event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	switch event.Type {
	case dto.EventStudentEnrolled, dto.EventStudentUnenrolled:
		if event.CourseID == 0 || event.StudentID == 0 {
			return fmt.Errorf("%w: course_id and student_id are required", ErrInvalidEvent)
		}
	case dto.EventSubmissionReceived:
		if event.AssessmentID == 0 || event.StudentID == 0 {
			return fmt.Errorf("%w: assessment_id and student_id are required", ErrInvalidEvent)
		}
	default:
		if event.AssessmentID == 0 {
			return fmt.Errorf("%w: assessment_id is required", ErrInvalidEvent)
		}
	}

	return nil
}

// checkDueDate warns when the event carries a due date the assessment store does not hold yet.
func (s *eventService) checkDueDate(ctx context.Context, logger zerolog.Logger, event dto.DomainEvent) {
	if event.NewDueDate == nil {
		return
	}
	assessment, err := s.assessments.GetByID(ctx, event.AssessmentID)
	if err != nil {
		return
	}
	if !assessment.DueDate.Equal(*event.NewDueDate) {
		logger.Warn().
			Time("event_due_date", event.NewDueDate.UTC()).
			Time("stored_due_date", assessment.DueDate.UTC()).
			Dur("drift", event.NewDueDate.Sub(assessment.DueDate).Round(time.Second)).
			Msg("rescheduled due date differs from assessment store")
	}
}
