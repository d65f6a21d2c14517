package service

import (
	"sort"
	"time"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// Reasons recorded when a pending reminder is cancelled.
const (
	ReasonWithdrawn         = "withdrawn"
	ReasonDeactivated       = "deactivated"
	ReasonUnpublished       = "unpublished"
	ReasonUnenrolled        = "unenrolled"
	ReasonSubmitted         = "submitted"
	ReasonOffsetPassed      = "offset_passed"
	ReasonPolicyInactive    = "policy_inactive"
	ReasonRescheduled       = "rescheduled"
	ReasonDeadlinePassed    = "deadline_passed"
	ReasonAssessmentMissing = "assessment_missing"
)

// scheduleTolerance absorbs sub-millisecond drift introduced by stores that
// truncate timestamps.
const scheduleTolerance = time.Millisecond

// CohortMember is a student's standing for one assessment.
type CohortMember struct {
	StudentID uint
	Enrolled  bool
	Submitted bool
}

// ReconcileInput is the snapshot a reconciliation pass decides on.
// Policies holds every known policy; inactive ones only cancel.
// Existing holds the pending, sent and failed reminders of the assessment for the cohort.
type ReconcileInput struct {
	Assessment models.Assessment
	Cohort     []CohortMember
	Policies   []models.ReminderPolicy
	Existing   []models.ScheduledReminder
	Now        time.Time
	Grace      time.Duration
}

// PlannedCancellation pairs a pending reminder with the reason it is no longer owed.
type PlannedCancellation struct {
	Reminder models.ScheduledReminder
	Reason   string
}

// ReconcilePlan lists the writes that bring the store in line with what is owed.
// Cancellations are applied before creations.
type ReconcilePlan struct {
	Create []models.ScheduledReminder
	Cancel []PlannedCancellation
}

// Empty reports whether the plan changes nothing.
func (p ReconcilePlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Cancel) == 0
}

// OwedReminder decides whether a reminder is owed for the student under the
// policy. It returns the instant the reminder should fire and, when it is not
// owed, the reason. Assessment state is checked before the student's, and the
// lead time last.
func OwedReminder(assessment models.Assessment, member CohortMember, policy models.ReminderPolicy, now time.Time, grace time.Duration) (time.Time, string) {
	candidate := assessment.DueDate.Add(-policy.Offset()).UTC()

	if reason := blockingReason(assessment, member); reason != "" {
		return candidate, reason
	}
	if !policy.Active {
		return candidate, ReasonPolicyInactive
	}
	if !candidate.After(now.Add(-grace)) {
		return candidate, ReasonOffsetPassed
	}

	return candidate, ""
}

func blockingReason(assessment models.Assessment, member CohortMember) string {
	switch {
	case assessment.IsWithdrawn():
		return ReasonWithdrawn
	case !assessment.IsActive:
		return ReasonDeactivated
	case !assessment.IsPublished:
		return ReasonUnpublished
	case !member.Enrolled:
		return ReasonUnenrolled
	case member.Submitted:
		return ReasonSubmitted
	}
	return ""
}

type reminderKey struct {
	studentID uint
	policyID  uint
}

// PlanReconciliation compares the owed set with the stored reminders and returns
// the cancellations and creations needed. A pending reminder whose instant moved
// is replaced; one that fell due at its unchanged instant is kept for dispatch. A
// triple that already had a reminder sent or failed for the same instant is not
// scheduled again. Students outside the cohort are left untouched.
func PlanReconciliation(in ReconcileInput) ReconcilePlan {
	pending := make(map[reminderKey]models.ScheduledReminder)
	settled := make(map[reminderKey][]time.Time)
	for _, reminder := range in.Existing {
		if reminder.AssessmentID != in.Assessment.ID {
			continue
		}
		key := reminderKey{studentID: reminder.StudentID, policyID: reminder.PolicyID}
		switch reminder.Status {
		case models.ReminderStatusPending:
			pending[key] = reminder
		case models.ReminderStatusSent, models.ReminderStatusFailed:
			settled[key] = append(settled[key], reminder.ScheduledFor)
		}
	}

	knownPolicies := make(map[uint]struct{}, len(in.Policies))
	for _, policy := range in.Policies {
		knownPolicies[policy.ID] = struct{}{}
	}

	var plan ReconcilePlan
	visited := make(map[uint]struct{}, len(in.Cohort))
	for _, member := range in.Cohort {
		if _, seen := visited[member.StudentID]; seen {
			continue
		}
		visited[member.StudentID] = struct{}{}

		for _, policy := range in.Policies {
			key := reminderKey{studentID: member.StudentID, policyID: policy.ID}
			candidate, reason := OwedReminder(in.Assessment, member, policy, in.Now, in.Grace)
			existing, hasPending := pending[key]

			if reason != "" {
				// A due reminder at its original instant belongs to the dispatcher.
				if reason == ReasonOffsetPassed && hasPending && sameInstant(existing.ScheduledFor, candidate) {
					continue
				}
				if hasPending {
					plan.Cancel = append(plan.Cancel, PlannedCancellation{Reminder: existing, Reason: reason})
				}
				continue
			}

			if hasPending {
				if sameInstant(existing.ScheduledFor, candidate) {
					continue
				}
				plan.Cancel = append(plan.Cancel, PlannedCancellation{Reminder: existing, Reason: ReasonRescheduled})
			} else if containsInstant(settled[key], candidate) {
				continue
			}

			plan.Create = append(plan.Create, models.ScheduledReminder{
				AssessmentID: in.Assessment.ID,
				StudentID:    member.StudentID,
				PolicyID:     policy.ID,
				ScheduledFor: candidate,
				Status:       models.ReminderStatusPending,
			})
		}

		for key, reminder := range pending {
			if key.studentID != member.StudentID {
				continue
			}
			if _, known := knownPolicies[key.policyID]; !known {
				plan.Cancel = append(plan.Cancel, PlannedCancellation{Reminder: reminder, Reason: ReasonPolicyInactive})
			}
		}
	}

	sort.SliceStable(plan.Cancel, func(i, j int) bool {
		return plan.Cancel[i].Reminder.ID < plan.Cancel[j].Reminder.ID
	})
	sort.SliceStable(plan.Create, func(i, j int) bool {
		if plan.Create[i].StudentID != plan.Create[j].StudentID {
			return plan.Create[i].StudentID < plan.Create[j].StudentID
		}
		return plan.Create[i].PolicyID < plan.Create[j].PolicyID
	})

	return plan
}

func sameInstant(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff < scheduleTolerance
}

func containsInstant(instants []time.Time, target time.Time) bool {
	for _, instant := range instants {
		if sameInstant(instant, target) {
			return true
		}
	}
	return false
}
