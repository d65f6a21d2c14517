package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/observability"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

// NotificationAnnouncer pushes a committed notification to live subscribers.
type NotificationAnnouncer interface {
	Announce(ctx context.Context, notification models.Notification)
}

// DispatcherOptions tunes ProcessDue runs.
type DispatcherOptions struct {
	BatchSize   int
	Timeout     time.Duration
	MaxFailures uint
	MaxAttempts uint
}

// DispatcherService turns due reminders into notifications and delivery jobs.
type DispatcherService interface {
	ProcessDue(ctx context.Context, now time.Time, batchSize int) (dto.DispatchSummary, error)
}

// DispatcherRepositories groups the stores the dispatcher reads and writes.
type DispatcherRepositories struct {
	Assessments repository.AssessmentRepository
	Students    repository.StudentRepository
	Enrollments repository.EnrollmentRepository
	Submissions repository.SubmissionRepository
	Reminders   repository.ReminderRepository
	Audit       repository.AuditRepository
}

type dispatcherService struct {
	repos     DispatcherRepositories
	policies  PolicySource
	announcer NotificationAnnouncer
	opts      DispatcherOptions
	renderer  reminderRenderer
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewDispatcherService constructs the dispatcher. announcer may be nil.
func NewDispatcherService(repos DispatcherRepositories, policies PolicySource, announcer NotificationAnnouncer, opts DispatcherOptions, logger zerolog.Logger) DispatcherService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 5
	}
	return &dispatcherService{
		repos:     repos,
		policies:  policies,
		announcer: announcer,
		opts:      opts,
		renderer:  newReminderRenderer(),
		logger:    logger.With().Str("component", "dispatcher_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-reminders/internal/service/dispatcher"),
	}
}

// dispatchContext is the collaborator state loaded once per batch.
type dispatchContext struct {
	assessments map[uint]models.Assessment
	students    map[uint]models.Student
	policies    map[uint]models.ReminderPolicy
	enrolled    map[uint]map[uint]bool
	submitted   map[uint]map[uint]bool
}

func (s *dispatcherService) ProcessDue(ctx context.Context, now time.Time, batchSize int) (dto.DispatchSummary, error) {
	var summary dto.DispatchSummary
	if batchSize <= 0 {
		batchSize = s.opts.BatchSize
	}
	now = now.UTC()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	spanCtx, span := s.tracer.Start(ctx, "reminders.process_due", trace.WithAttributes(attribute.Int("batch.size", batchSize)))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.DispatchDuration().Observe(time.Since(start).Seconds())
	}()

	due, err := s.repos.Reminders.ListDue(spanCtx, now, batchSize)
	if err != nil {
		span.RecordError(err)
		return summary, storeError("list due reminders", err)
	}
	summary.Selected = len(due)
	if len(due) == 0 {
		return summary, nil
	}

	state, err := s.load(spanCtx, due)
	if err != nil {
		span.RecordError(err)
		return summary, err
	}

	for i, reminder := range due {
		if spanCtx.Err() != nil {
			summary.Deferred += len(due) - i
			s.logger.Warn().Int("deferred", summary.Deferred).Msg("dispatch budget exhausted")
			break
		}
		s.dispatch(spanCtx, reminder, state, now, &summary)
	}

	s.logger.Info().
		Int("selected", summary.Selected).
		Int("sent", summary.Sent).
		Int("enqueued", summary.Enqueued).
		Int("cancelled", summary.Cancelled).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("deferred", summary.Deferred).
		Msg("due reminders processed")

	return summary, nil
}

func (s *dispatcherService) load(ctx context.Context, due []models.ScheduledReminder) (dispatchContext, error) {
	state := dispatchContext{
		policies:  make(map[uint]models.ReminderPolicy),
		enrolled:  make(map[uint]map[uint]bool),
		submitted: make(map[uint]map[uint]bool),
	}

	assessmentIDs := make([]uint, 0, len(due))
	studentIDs := make([]uint, 0, len(due))
	byAssessment := make(map[uint][]uint)
	for _, reminder := range due {
		assessmentIDs = append(assessmentIDs, reminder.AssessmentID)
		studentIDs = append(studentIDs, reminder.StudentID)
		byAssessment[reminder.AssessmentID] = append(byAssessment[reminder.AssessmentID], reminder.StudentID)
	}

	var err error
	if state.assessments, err = s.repos.Assessments.ListByIDs(ctx, uniqueIDs(assessmentIDs)); err != nil {
		return state, storeError("load assessments", err)
	}
	if state.students, err = s.repos.Students.ListByIDs(ctx, uniqueIDs(studentIDs)); err != nil {
		return state, storeError("load students", err)
	}

	policies, err := s.policies.Policies(ctx)
	if err != nil {
		return state, storeError("load policies", err)
	}
	for _, policy := range policies {
		state.policies[policy.ID] = policy
	}

	byCourse := make(map[uint][]uint)
	for assessmentID, students := range byAssessment {
		students = uniqueIDs(students)
		submitted, err := s.repos.Submissions.SubmittedAmong(ctx, assessmentID, students)
		if err != nil {
			return state, storeError("load submissions", err)
		}
		state.submitted[assessmentID] = submitted

		if assessment, ok := state.assessments[assessmentID]; ok {
			byCourse[assessment.CourseID] = append(byCourse[assessment.CourseID], students...)
		}
	}
	for courseID, students := range byCourse {
		active, err := s.repos.Enrollments.ActiveAmong(ctx, courseID, uniqueIDs(students))
		if err != nil {
			return state, storeError("load enrollments", err)
		}
		state.enrolled[courseID] = active
	}

	return state, nil
}

func (s *dispatcherService) dispatch(ctx context.Context, reminder models.ScheduledReminder, state dispatchContext, now time.Time, summary *dto.DispatchSummary) {
	logger := s.logger.With().
		Uint("reminder_id", reminder.ID).
		Uint("assessment_id", reminder.AssessmentID).
		Uint("student_id", reminder.StudentID).
		Logger()

	assessment, hasAssessment := state.assessments[reminder.AssessmentID]
	policy, hasPolicy := state.policies[reminder.PolicyID]
	student, hasStudent := state.students[reminder.StudentID]

	reason := ""
	switch {
	case !hasAssessment:
		reason = ReasonAssessmentMissing
	case !hasPolicy || !policy.Active:
		reason = ReasonPolicyInactive
	default:
		member := CohortMember{
			StudentID: reminder.StudentID,
			Enrolled:  hasStudent && state.enrolled[assessment.CourseID][reminder.StudentID],
			Submitted: state.submitted[reminder.AssessmentID][reminder.StudentID],
		}
		reason = dispatchBlocker(assessment, member, policy, reminder, now)
	}

	if reason != "" {
		s.cancel(ctx, logger, reminder, reason, summary)
		return
	}

	bundle := s.bundle(reminder, assessment, student, policy, now)
	claimed, err := s.repos.Reminders.ClaimAndDispatch(ctx, bundle)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		// The transaction rolled back with the run budget; the reminder stays pending untouched.
		summary.Deferred++
		logger.Warn().Err(err).Msg("dispatch budget expired during claim")
		return
	}
	if err != nil {
		summary.Failed++
		observability.ReminderDispatch().WithLabelValues("failed").Inc()
		s.recordFailure(ctx, logger, reminder, err)
		return
	}
	if !claimed {
		summary.Skipped++
		observability.ReminderDispatch().WithLabelValues("skipped").Inc()
		logger.Debug().Msg("reminder claimed elsewhere or submission landed")
		return
	}

	summary.Sent++
	observability.ReminderDispatch().WithLabelValues("sent").Inc()
	if bundle.Job != nil {
		summary.Enqueued++
	}
	logger.Info().
		Uint("notification_id", bundle.Notification.ID).
		Str("channel", string(bundle.Notification.Channel)).
		Bool("email_enqueued", bundle.Job != nil).
		Msg("reminder dispatched")

	if s.announcer != nil {
		s.announcer.Announce(ctx, *bundle.Notification)
	}
}

// dispatchBlocker re-checks the owed condition against current collaborator state.
func dispatchBlocker(assessment models.Assessment, member CohortMember, policy models.ReminderPolicy, reminder models.ScheduledReminder, now time.Time) string {
	if reason := blockingReason(assessment, member); reason != "" {
		return reason
	}
	if !assessment.DueDate.After(now) {
		return ReasonDeadlinePassed
	}
	if !sameInstant(reminder.ScheduledFor, assessment.DueDate.Add(-policy.Offset())) {
		return ReasonRescheduled
	}
	return ""
}

func (s *dispatcherService) bundle(reminder models.ScheduledReminder, assessment models.Assessment, student models.Student, policy models.ReminderPolicy, now time.Time) repository.DispatchBundle {
	channel := student.PreferredChannel()
	expires := assessment.DueDate.UTC()

	notification := &models.Notification{
		UserID:        strconv.FormatUint(uint64(reminder.StudentID), 10),
		Kind:          models.NotificationKindReminder,
		Channel:       channel,
		Status:        models.NotificationStatusUnread,
		ReferenceType: models.ReferenceTypeScheduledReminder,
		ReferenceID:   reminder.ID,
		Payload:       s.renderer.payload(reminder, assessment, policy),
		ExpiresAt:     &expires,
	}

	var job *models.DeliveryJob
	if channel.IncludesEmail() && student.Email != "" {
		message := s.renderer.email(student, assessment, policy)
		job = &models.DeliveryJob{
			Recipient:    student.Email,
			Subject:      message.Subject,
			Body:         message.Text,
			HTMLBody:     message.HTML,
			Status:       models.DeliveryStatusPending,
			MaxAttempts:  s.opts.MaxAttempts,
			ScheduledFor: now,
		}
	}

	audit := &models.AuditEntry{
		AssessmentID: uintPtr(reminder.AssessmentID),
		StudentID:    uintPtr(reminder.StudentID),
		Action:       models.AuditActionSent,
		Details: datatypes.JSONMap{
			"channel":       string(models.NotificationChannelDashboard),
			"preference":    string(channel),
			"policy_id":     policy.ID,
			"scheduled_for": reminder.ScheduledFor.UTC().Format(time.RFC3339),
			"dispatched_at": now.Format(time.RFC3339),
		},
	}

	return repository.DispatchBundle{
		ReminderID:   reminder.ID,
		ClaimedAt:    now,
		Notification: notification,
		Job:          job,
		Audit:        audit,
	}
}

func (s *dispatcherService) cancel(ctx context.Context, logger zerolog.Logger, reminder models.ScheduledReminder, reason string, summary *dto.DispatchSummary) {
	audit := &models.AuditEntry{
		AssessmentID: uintPtr(reminder.AssessmentID),
		StudentID:    uintPtr(reminder.StudentID),
		Action:       models.AuditActionCancelled,
		Details: datatypes.JSONMap{
			"reason":        reason,
			"policy_id":     reminder.PolicyID,
			"scheduled_for": reminder.ScheduledFor.UTC().Format(time.RFC3339),
			"stage":         "dispatch",
		},
	}

	cancelled, err := s.repos.Reminders.Cancel(ctx, reminder.ID, reason, audit)
	if err != nil {
		summary.Failed++
		observability.ReminderDispatch().WithLabelValues("failed").Inc()
		logger.Error().Err(storeError("cancel reminder", err)).Msg("failed to cancel reminder no longer owed")
		return
	}
	if !cancelled {
		summary.Skipped++
		observability.ReminderDispatch().WithLabelValues("skipped").Inc()
		return
	}

	summary.Cancelled++
	observability.ReminderDispatch().WithLabelValues("cancelled").Inc()
	observability.RemindersCancelled().WithLabelValues(reason).Inc()
	logger.Info().Str("reason", reason).Msg("reminder no longer owed at dispatch")
}

func (s *dispatcherService) recordFailure(ctx context.Context, logger zerolog.Logger, reminder models.ScheduledReminder, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := storeError("dispatch reminder", cause)
	logger.Error().Err(err).Msg("reminder dispatch rolled back")

	terminal, recordErr := s.repos.Reminders.RecordFailure(ctx, reminder.ID, cause.Error(), s.opts.MaxFailures)
	if recordErr != nil {
		logger.Error().Err(recordErr).Msg("failed to record dispatch failure")
	}

	entry := &models.AuditEntry{
		ReminderID:   uintPtr(reminder.ID),
		AssessmentID: uintPtr(reminder.AssessmentID),
		StudentID:    uintPtr(reminder.StudentID),
		Action:       models.AuditActionFailed,
		Details: datatypes.JSONMap{
			"stage":    "dispatch",
			"error":    cause.Error(),
			"terminal": terminal,
		},
	}
	if auditErr := s.repos.Audit.Append(ctx, entry); auditErr != nil {
		logger.Error().Err(auditErr).Msg("failed to append dispatch failure audit")
	}
}
