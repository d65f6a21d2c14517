package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-reminders/internal/models"
)

const dueDateLayout = "Mon, 02 Jan 2006 15:04 MST"

type reminderMessage struct {
	Subject string
	Text    string
	HTML    string
}

type reminderRenderer struct {
	sanitizer *bluemonday.Policy
}

func newReminderRenderer() reminderRenderer {
	return reminderRenderer{sanitizer: bluemonday.StrictPolicy()}
}

func (r reminderRenderer) title(assessment models.Assessment) string {
	title := strings.TrimSpace(html.UnescapeString(r.sanitizer.Sanitize(assessment.Title)))
	if title == "" {
		title = fmt.Sprintf("Assessment #%d", assessment.ID)
	}
	return title
}

func (r reminderRenderer) payload(reminder models.ScheduledReminder, assessment models.Assessment, policy models.ReminderPolicy) datatypes.JSONMap {
	return datatypes.JSONMap{
		"assessment_id":    assessment.ID,
		"assessment_title": r.title(assessment),
		"course_id":        assessment.CourseID,
		"due_date":         assessment.DueDate.UTC().Format(time.RFC3339),
		"policy_id":        policy.ID,
		"policy_name":      policy.Name,
		"lead_time":        policy.Label(),
		"scheduled_for":    reminder.ScheduledFor.UTC().Format(time.RFC3339),
		"message":          fmt.Sprintf("%s is due in %s", r.title(assessment), policy.Label()),
	}
}

func (r reminderRenderer) email(student models.Student, assessment models.Assessment, policy models.ReminderPolicy) reminderMessage {
	title := r.title(assessment)
	due := assessment.DueDate.UTC().Format(dueDateLayout)
	name := strings.TrimSpace(student.Name)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("Hi %s,\n\n%s is due on %s (%s from now).\nSubmit before the deadline to stop these reminders.\n", name, title, due, policy.Label())

	var body strings.Builder
	body.WriteString("<p>Hi ")
	body.WriteString(html.EscapeString(name))
	body.WriteString(",</p><p><strong>")
	body.WriteString(html.EscapeString(title))
	body.WriteString("</strong> is due on ")
	body.WriteString(html.EscapeString(due))
	body.WriteString(" (")
	body.WriteString(html.EscapeString(policy.Label()))
	body.WriteString(" from now).</p><p>Submit before the deadline to stop these reminders.</p>")

	return reminderMessage{
		Subject: fmt.Sprintf("Reminder: %s is due in %s", title, policy.Label()),
		Text:    text,
		HTML:    body.String(),
	}
}
