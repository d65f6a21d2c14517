package service

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientStore marks a store failure the caller may retry on the next tick.
	ErrTransientStore = errors.New("reminder store unavailable")
	// ErrTransport marks a failed hand-off to the email provider.
	ErrTransport = errors.New("email transport failed")
	// ErrInvariantViolation marks a write that collided with the one-pending-reminder rule.
	ErrInvariantViolation = errors.New("pending reminder already exists")
	// ErrAssessmentNotFound is returned when an event names an unknown assessment.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrPolicyNotFound is returned when a policy id does not exist.
	ErrPolicyNotFound = errors.New("reminder policy not found")
	// ErrPolicyInUse is returned when changing the lead time of a policy reminders already reference.
	ErrPolicyInUse = errors.New("reminder policy is referenced by reminders")
	// ErrPolicyNameTaken is returned when another policy already uses the name.
	ErrPolicyNameTaken = errors.New("reminder policy name already in use")
	// ErrInvalidPolicy is returned for policies without a positive lead time.
	ErrInvalidPolicy = errors.New("policy lead time must be positive")
	// ErrInvalidEvent is returned for events that fail validation.
	ErrInvalidEvent = errors.New("invalid domain event")
	// ErrNotificationNotFound is returned when a notification does not belong to the caller.
	ErrNotificationNotFound = errors.New("notification not found")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientStore, err)
}
