package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/models"
)

func planAssessment(due time.Time) models.Assessment {
	return models.Assessment{ID: 7, CourseID: 3, Title: "Essay", DueDate: due, IsActive: true, IsPublished: true}
}

func TestOwedReminderChecksAssessmentBeforeStudent(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 1, Active: true}
	withdrawn := baseTime

	cases := []struct {
		name       string
		assessment models.Assessment
		member     CohortMember
		policy     models.ReminderPolicy
		now        time.Time
		want       string
	}{
		{name: "owed", assessment: planAssessment(due), member: CohortMember{StudentID: 1, Enrolled: true}, policy: policy, now: baseTime},
		{name: "withdrawn wins over submitted", assessment: func() models.Assessment {
			a := planAssessment(due)
			a.WithdrawnAt = &withdrawn
			return a
		}(), member: CohortMember{StudentID: 1, Enrolled: true, Submitted: true}, policy: policy, now: baseTime, want: ReasonWithdrawn},
		{name: "inactive", assessment: func() models.Assessment {
			a := planAssessment(due)
			a.IsActive = false
			return a
		}(), member: CohortMember{StudentID: 1, Enrolled: true}, policy: policy, now: baseTime, want: ReasonDeactivated},
		{name: "unpublished", assessment: func() models.Assessment {
			a := planAssessment(due)
			a.IsPublished = false
			return a
		}(), member: CohortMember{StudentID: 1, Enrolled: true}, policy: policy, now: baseTime, want: ReasonUnpublished},
		{name: "unenrolled", assessment: planAssessment(due), member: CohortMember{StudentID: 1}, policy: policy, now: baseTime, want: ReasonUnenrolled},
		{name: "submitted", assessment: planAssessment(due), member: CohortMember{StudentID: 1, Enrolled: true, Submitted: true}, policy: policy, now: baseTime, want: ReasonSubmitted},
		{name: "policy inactive", assessment: planAssessment(due), member: CohortMember{StudentID: 1, Enrolled: true}, policy: models.ReminderPolicy{ID: 2, DaysBefore: 1}, now: baseTime, want: ReasonPolicyInactive},
		{name: "instant already passed", assessment: planAssessment(due), member: CohortMember{StudentID: 1, Enrolled: true}, policy: policy, now: due.Add(-time.Hour), want: ReasonOffsetPassed},
		{name: "instant equals now", assessment: planAssessment(due), member: CohortMember{StudentID: 1, Enrolled: true}, policy: policy, now: due.Add(-24 * time.Hour), want: ReasonOffsetPassed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at, reason := OwedReminder(tc.assessment, tc.member, tc.policy, tc.now, 0)
			require.Equal(t, tc.want, reason)
			require.True(t, at.Equal(due.Add(-tc.policy.Offset())))
		})
	}
}

func TestOwedReminderHonoursGrace(t *testing.T) {
	due := baseTime.Add(24*time.Hour + 2*time.Minute)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 1, Active: true}
	member := CohortMember{StudentID: 1, Enrolled: true}

	now := baseTime.Add(5 * time.Minute)
	_, reason := OwedReminder(planAssessment(due), member, policy, now, 0)
	require.Equal(t, ReasonOffsetPassed, reason)

	_, reason = OwedReminder(planAssessment(due), member, policy, now, 10*time.Minute)
	require.Empty(t, reason)
}

func TestPlanReconciliationCreatesOwedSet(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policies := []models.ReminderPolicy{
		{ID: 1, DaysBefore: 7, Active: true},
		{ID: 2, DaysBefore: 1, Active: true},
	}
	cohort := []CohortMember{
		{StudentID: 30, Enrolled: true},
		{StudentID: 10, Enrolled: true},
		{StudentID: 20, Enrolled: true},
		{StudentID: 10, Enrolled: true},
	}

	plan := PlanReconciliation(ReconcileInput{Assessment: planAssessment(due), Cohort: cohort, Policies: policies, Now: baseTime})
	require.Empty(t, plan.Cancel)
	require.Len(t, plan.Create, 6)
	require.Equal(t, uint(10), plan.Create[0].StudentID)
	require.Equal(t, uint(1), plan.Create[0].PolicyID)
	require.True(t, plan.Create[0].ScheduledFor.Equal(due.Add(-7*24*time.Hour)))
	require.True(t, plan.Create[1].ScheduledFor.Equal(due.Add(-24*time.Hour)))
	for _, reminder := range plan.Create {
		require.Equal(t, models.ReminderStatusPending, reminder.Status)
		require.True(t, reminder.ScheduledFor.After(baseTime))
	}
}

func TestPlanReconciliationIsIdempotent(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 1, Active: true}
	existing := []models.ScheduledReminder{
		{ID: 5, AssessmentID: 7, StudentID: 10, PolicyID: 1, ScheduledFor: due.Add(-24 * time.Hour), Status: models.ReminderStatusPending},
	}

	plan := PlanReconciliation(ReconcileInput{
		Assessment: planAssessment(due),
		Cohort:     []CohortMember{{StudentID: 10, Enrolled: true}},
		Policies:   []models.ReminderPolicy{policy},
		Existing:   existing,
		Now:        baseTime,
	})
	require.True(t, plan.Empty())
}

func TestPlanReconciliationReplacesMovedReminder(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 1, Active: true}
	stale := models.ScheduledReminder{ID: 5, AssessmentID: 7, StudentID: 10, PolicyID: 1, ScheduledFor: due.Add(-48 * time.Hour), Status: models.ReminderStatusPending}

	plan := PlanReconciliation(ReconcileInput{
		Assessment: planAssessment(due),
		Cohort:     []CohortMember{{StudentID: 10, Enrolled: true}},
		Policies:   []models.ReminderPolicy{policy},
		Existing:   []models.ScheduledReminder{stale},
		Now:        baseTime,
	})
	require.Len(t, plan.Cancel, 1)
	require.Equal(t, ReasonRescheduled, plan.Cancel[0].Reason)
	require.Len(t, plan.Create, 1)
	require.True(t, plan.Create[0].ScheduledFor.Equal(due.Add(-24*time.Hour)))
}

func TestPlanReconciliationSkipsInstantAlreadySent(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 1, Active: true}
	sentAt := due.Add(-24 * time.Hour)
	sent := models.ScheduledReminder{ID: 5, AssessmentID: 7, StudentID: 10, PolicyID: 1, ScheduledFor: sentAt, Status: models.ReminderStatusSent, SentAt: &sentAt}

	plan := PlanReconciliation(ReconcileInput{
		Assessment: planAssessment(due),
		Cohort:     []CohortMember{{StudentID: 10, Enrolled: true}},
		Policies:   []models.ReminderPolicy{policy},
		Existing:   []models.ScheduledReminder{sent},
		Now:        baseTime,
	})
	require.True(t, plan.Empty())

	later := planAssessment(due.Add(48 * time.Hour))
	plan = PlanReconciliation(ReconcileInput{
		Assessment: later,
		Cohort:     []CohortMember{{StudentID: 10, Enrolled: true}},
		Policies:   []models.ReminderPolicy{policy},
		Existing:   []models.ScheduledReminder{sent},
		Now:        baseTime,
	})
	require.Len(t, plan.Create, 1)
}

func TestPlanReconciliationCancelsForUnknownPolicyAndBlockers(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 1, Active: true}
	existing := []models.ScheduledReminder{
		{ID: 1, AssessmentID: 7, StudentID: 10, PolicyID: 1, ScheduledFor: due.Add(-24 * time.Hour), Status: models.ReminderStatusPending},
		{ID: 2, AssessmentID: 7, StudentID: 10, PolicyID: 99, ScheduledFor: due.Add(-72 * time.Hour), Status: models.ReminderStatusPending},
		{ID: 3, AssessmentID: 7, StudentID: 20, PolicyID: 1, ScheduledFor: due.Add(-24 * time.Hour), Status: models.ReminderStatusPending},
		{ID: 4, AssessmentID: 7, StudentID: 40, PolicyID: 1, ScheduledFor: due.Add(-24 * time.Hour), Status: models.ReminderStatusPending},
	}

	plan := PlanReconciliation(ReconcileInput{
		Assessment: planAssessment(due),
		Cohort: []CohortMember{
			{StudentID: 10, Enrolled: true},
			{StudentID: 20, Enrolled: true, Submitted: true},
		},
		Policies: []models.ReminderPolicy{policy},
		Existing: existing,
		Now:      baseTime,
	})

	require.Empty(t, plan.Create)
	require.Len(t, plan.Cancel, 2)
	require.Equal(t, uint(2), plan.Cancel[0].Reminder.ID)
	require.Equal(t, ReasonPolicyInactive, plan.Cancel[0].Reason)
	require.Equal(t, uint(3), plan.Cancel[1].Reminder.ID)
	require.Equal(t, ReasonSubmitted, plan.Cancel[1].Reason)
}

func TestPlanReconciliationKeepsDueReminderAtOriginalInstant(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 7, Active: true}
	fireAt := due.Add(-7 * 24 * time.Hour)
	waiting := models.ScheduledReminder{ID: 5, AssessmentID: 7, StudentID: 10, PolicyID: 1, ScheduledFor: fireAt, Status: models.ReminderStatusPending}

	plan := PlanReconciliation(ReconcileInput{
		Assessment: planAssessment(due),
		Cohort:     []CohortMember{{StudentID: 10, Enrolled: true}},
		Policies:   []models.ReminderPolicy{policy},
		Existing:   []models.ScheduledReminder{waiting},
		Now:        fireAt.Add(time.Minute),
	})
	require.True(t, plan.Empty())

	// Moving the deadline so the new instant is already past still cancels.
	moved := planAssessment(due.Add(-time.Hour))
	plan = PlanReconciliation(ReconcileInput{
		Assessment: moved,
		Cohort:     []CohortMember{{StudentID: 10, Enrolled: true}},
		Policies:   []models.ReminderPolicy{policy},
		Existing:   []models.ScheduledReminder{waiting},
		Now:        fireAt.Add(time.Minute),
	})
	require.Empty(t, plan.Create)
	require.Len(t, plan.Cancel, 1)
	require.Equal(t, ReasonOffsetPassed, plan.Cancel[0].Reason)
}

func TestPlanReconciliationSkipsInstantAlreadyFailed(t *testing.T) {
	due := baseTime.Add(10 * 24 * time.Hour)
	policy := models.ReminderPolicy{ID: 1, DaysBefore: 1, Active: true}
	failed := models.ScheduledReminder{ID: 5, AssessmentID: 7, StudentID: 10, PolicyID: 1, ScheduledFor: due.Add(-24 * time.Hour), Status: models.ReminderStatusFailed}

	plan := PlanReconciliation(ReconcileInput{
		Assessment: planAssessment(due),
		Cohort:     []CohortMember{{StudentID: 10, Enrolled: true}},
		Policies:   []models.ReminderPolicy{policy},
		Existing:   []models.ScheduledReminder{failed},
		Now:        baseTime,
	})
	require.True(t, plan.Empty())
}
