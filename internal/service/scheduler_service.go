package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/observability"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

// SchedulerService keeps the reminder store in line with what students are owed.
type SchedulerService interface {
	Reconcile(ctx context.Context, assessment models.Assessment, cohort []CohortMember, now time.Time) (dto.ReconcileSummary, error)
	ReconcileAssessment(ctx context.Context, assessmentID uint) (dto.ReconcileSummary, error)
	ReconcileStudent(ctx context.Context, courseID, studentID uint) (dto.ReconcileSummary, error)
	CancelForAssessment(ctx context.Context, assessmentID uint, reason string) (dto.ReconcileSummary, error)
	CancelForStudent(ctx context.Context, courseID, studentID uint, reason string) (dto.ReconcileSummary, error)
	CancelForSubmission(ctx context.Context, assessmentID, studentID uint) (dto.ReconcileSummary, error)
}

// SchedulerRepositories groups the stores the scheduler reads and writes.
type SchedulerRepositories struct {
	Assessments repository.AssessmentRepository
	Enrollments repository.EnrollmentRepository
	Submissions repository.SubmissionRepository
	Reminders   repository.ReminderRepository
}

type schedulerService struct {
	repos    SchedulerRepositories
	policies PolicySource
	grace    time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewSchedulerService constructs the reminder scheduler.
func NewSchedulerService(repos SchedulerRepositories, policies PolicySource, grace time.Duration, logger zerolog.Logger) SchedulerService {
	if grace < 0 {
		grace = 0
	}
	return &schedulerService{
		repos:    repos,
		policies: policies,
		grace:    grace,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "scheduler_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-reminders/internal/service/scheduler"),
	}
}

// Reconcile computes the owed reminders for the cohort and applies the difference.
func (s *schedulerService) Reconcile(ctx context.Context, assessment models.Assessment, cohort []CohortMember, now time.Time) (dto.ReconcileSummary, error) {
	spanCtx, span := s.tracer.Start(ctx, "reminders.reconcile", trace.WithAttributes(
		attribute.Int64("assessment.id", int64(assessment.ID)),
		attribute.Int("cohort.size", len(cohort)),
	))
	defer span.End()

	policies, err := s.policies.Policies(spanCtx)
	if err != nil {
		span.RecordError(err)
		return dto.ReconcileSummary{}, storeError("load policies", err)
	}

	studentIDs := make([]uint, 0, len(cohort))
	for _, member := range cohort {
		studentIDs = append(studentIDs, member.StudentID)
	}
	existing, err := s.repos.Reminders.ListForAssessment(spanCtx, assessment.ID, uniqueIDs(studentIDs))
	if err != nil {
		span.RecordError(err)
		return dto.ReconcileSummary{}, storeError("load reminders", err)
	}

	plan := PlanReconciliation(ReconcileInput{
		Assessment: assessment,
		Cohort:     cohort,
		Policies:   policies,
		Existing:   existing,
		Now:        now.UTC(),
		Grace:      s.grace,
	})

	summary, err := s.apply(spanCtx, plan, policies)
	if err != nil {
		span.RecordError(err)
	}
	return summary, err
}

func (s *schedulerService) ReconcileAssessment(ctx context.Context, assessmentID uint) (dto.ReconcileSummary, error) {
	assessment, err := s.repos.Assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReconcileSummary{}, ErrAssessmentNotFound
		}
		return dto.ReconcileSummary{}, storeError("load assessment", err)
	}

	enrolled, err := s.repos.Enrollments.ListActiveStudentIDs(ctx, assessment.CourseID)
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load enrollments", err)
	}
	holders, err := s.repos.Reminders.ListPendingForAssessment(ctx, assessment.ID)
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load pending reminders", err)
	}

	enrolledSet := make(map[uint]bool, len(enrolled))
	studentIDs := make([]uint, 0, len(enrolled)+len(holders))
	for _, id := range enrolled {
		enrolledSet[id] = true
		studentIDs = append(studentIDs, id)
	}
	for _, reminder := range holders {
		studentIDs = append(studentIDs, reminder.StudentID)
	}
	studentIDs = uniqueIDs(studentIDs)

	submitted, err := s.repos.Submissions.SubmittedAmong(ctx, assessment.ID, studentIDs)
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load submissions", err)
	}

	cohort := make([]CohortMember, 0, len(studentIDs))
	for _, id := range studentIDs {
		cohort = append(cohort, CohortMember{StudentID: id, Enrolled: enrolledSet[id], Submitted: submitted[id]})
	}

	return s.Reconcile(ctx, assessment, cohort, s.now())
}

func (s *schedulerService) ReconcileStudent(ctx context.Context, courseID, studentID uint) (dto.ReconcileSummary, error) {
	now := s.now()
	assessments, err := s.repos.Assessments.ListRemindable(ctx, courseID, now)
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load assessments", err)
	}

	active, err := s.repos.Enrollments.ActiveAmong(ctx, courseID, []uint{studentID})
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load enrollment", err)
	}

	var total dto.ReconcileSummary
	for _, assessment := range assessments {
		submitted, err := s.repos.Submissions.HasSubmitted(ctx, assessment.ID, studentID)
		if err != nil {
			return total, storeError("load submission", err)
		}

		cohort := []CohortMember{{StudentID: studentID, Enrolled: active[studentID], Submitted: submitted}}
		summary, err := s.Reconcile(ctx, assessment, cohort, now)
		total.Add(summary)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (s *schedulerService) CancelForAssessment(ctx context.Context, assessmentID uint, reason string) (dto.ReconcileSummary, error) {
	pending, err := s.repos.Reminders.ListPendingForAssessment(ctx, assessmentID)
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load pending reminders", err)
	}
	return s.cancelAll(ctx, pending, reason)
}

func (s *schedulerService) CancelForStudent(ctx context.Context, courseID, studentID uint, reason string) (dto.ReconcileSummary, error) {
	assessmentIDs, err := s.repos.Assessments.ListIDsByCourse(ctx, courseID)
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load course assessments", err)
	}
	if assessmentIDs == nil {
		assessmentIDs = []uint{}
	}

	pending, err := s.repos.Reminders.ListPendingForStudent(ctx, studentID, assessmentIDs)
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load pending reminders", err)
	}
	return s.cancelAll(ctx, pending, reason)
}

func (s *schedulerService) CancelForSubmission(ctx context.Context, assessmentID, studentID uint) (dto.ReconcileSummary, error) {
	pending, err := s.repos.Reminders.ListPendingForStudent(ctx, studentID, []uint{assessmentID})
	if err != nil {
		return dto.ReconcileSummary{}, storeError("load pending reminders", err)
	}
	return s.cancelAll(ctx, pending, ReasonSubmitted)
}

func (s *schedulerService) cancelAll(ctx context.Context, reminders []models.ScheduledReminder, reason string) (dto.ReconcileSummary, error) {
	plan := ReconcilePlan{Cancel: make([]PlannedCancellation, 0, len(reminders))}
	for _, reminder := range reminders {
		plan.Cancel = append(plan.Cancel, PlannedCancellation{Reminder: reminder, Reason: reason})
	}
	return s.apply(ctx, plan, nil)
}

func (s *schedulerService) apply(ctx context.Context, plan ReconcilePlan, policies []models.ReminderPolicy) (dto.ReconcileSummary, error) {
	var summary dto.ReconcileSummary

	for _, cancellation := range plan.Cancel {
		reminder := cancellation.Reminder
		audit := &models.AuditEntry{
			AssessmentID: uintPtr(reminder.AssessmentID),
			StudentID:    uintPtr(reminder.StudentID),
			Action:       models.AuditActionCancelled,
			Details: datatypes.JSONMap{
				"reason":        cancellation.Reason,
				"policy_id":     reminder.PolicyID,
				"scheduled_for": reminder.ScheduledFor.UTC().Format(time.RFC3339),
			},
		}

		cancelled, err := s.repos.Reminders.Cancel(ctx, reminder.ID, cancellation.Reason, audit)
		if err != nil {
			return summary, storeError("cancel reminder", err)
		}
		if !cancelled {
			s.logger.Debug().Uint("reminder_id", reminder.ID).Msg("reminder left pending state before cancellation")
			continue
		}

		summary.Cancelled++
		observability.RemindersCancelled().WithLabelValues(cancellation.Reason).Inc()
		s.logger.Info().
			Uint("reminder_id", reminder.ID).
			Uint("assessment_id", reminder.AssessmentID).
			Uint("student_id", reminder.StudentID).
			Str("reason", cancellation.Reason).
			Msg("reminder cancelled")
	}

	labels := make(map[uint]string, len(policies))
	for _, policy := range policies {
		labels[policy.ID] = policy.Label()
	}

	for _, planned := range plan.Create {
		reminder := planned
		audit := &models.AuditEntry{
			AssessmentID: uintPtr(reminder.AssessmentID),
			StudentID:    uintPtr(reminder.StudentID),
			Action:       models.AuditActionScheduled,
			Details: datatypes.JSONMap{
				"policy_id":     reminder.PolicyID,
				"lead_time":     labels[reminder.PolicyID],
				"scheduled_for": reminder.ScheduledFor.UTC().Format(time.RFC3339),
			},
		}

		created, err := s.repos.Reminders.CreatePending(ctx, &reminder, audit)
		if err != nil {
			return summary, storeError("create reminder", err)
		}
		if !created {
			summary.Duplicates++
			observability.ReminderDuplicates().Inc()
			s.logger.Warn().
				Err(ErrInvariantViolation).
				Uint("assessment_id", reminder.AssessmentID).
				Uint("student_id", reminder.StudentID).
				Uint("policy_id", reminder.PolicyID).
				Msg("duplicate reminder insert ignored")
			continue
		}

		summary.Scheduled++
		observability.RemindersScheduled().WithLabelValues(labels[reminder.PolicyID]).Inc()
	}

	if summary.Scheduled > 0 || summary.Cancelled > 0 {
		s.logger.Info().
			Int("scheduled", summary.Scheduled).
			Int("cancelled", summary.Cancelled).
			Int("duplicates", summary.Duplicates).
			Msg("reminders reconciled")
	}

	return summary, nil
}
