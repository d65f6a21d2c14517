package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/database"
	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// reminderFixture wires the real repositories over a private in-memory database.
type reminderFixture struct {
	t           *testing.T
	db          *gorm.DB
	assessments repository.AssessmentRepository
	students    repository.StudentRepository
	enrollments repository.EnrollmentRepository
	submissions repository.SubmissionRepository
	policyRepo  repository.PolicyRepository
	reminders   repository.ReminderRepository
	audit       repository.AuditRepository
	jobs        repository.DeliveryRepository
	policies    PolicyService
	validate    *validator.Validate
}

func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	policyRepo := repository.NewPolicyRepository(db)

	return &reminderFixture{
		t:           t,
		db:          db,
		assessments: repository.NewAssessmentRepository(db),
		students:    repository.NewStudentRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		policyRepo:  policyRepo,
		reminders:   repository.NewReminderRepository(db),
		audit:       repository.NewAuditRepository(db),
		jobs:        repository.NewDeliveryRepository(db),
		policies:    NewPolicyService(policyRepo, nil, time.Minute, validate, testLogger()),
		validate:    validate,
	}
}

func (f *reminderFixture) scheduler(now time.Time) *schedulerService {
	svc := NewSchedulerService(SchedulerRepositories{
		Assessments: f.assessments,
		Enrollments: f.enrollments,
		Submissions: f.submissions,
		Reminders:   f.reminders,
	}, f.policies, 0, testLogger()).(*schedulerService)
	svc.now = func() time.Time { return now }
	return svc
}

func (f *reminderFixture) dispatcher(announcer NotificationAnnouncer, opts DispatcherOptions) DispatcherService {
	return NewDispatcherService(DispatcherRepositories{
		Assessments: f.assessments,
		Students:    f.students,
		Enrollments: f.enrollments,
		Submissions: f.submissions,
		Reminders:   f.reminders,
		Audit:       f.audit,
	}, f.policies, announcer, opts, testLogger())
}

func (f *reminderFixture) policy(name string, days, hours uint) models.ReminderPolicy {
	f.t.Helper()
	policy := models.ReminderPolicy{Name: name, DaysBefore: days, HoursBefore: hours, Active: true}
	require.NoError(f.t, f.db.Create(&policy).Error)
	return policy
}

func (f *reminderFixture) assessment(courseID uint, title string, due time.Time) models.Assessment {
	f.t.Helper()
	assessment := models.Assessment{CourseID: courseID, Title: title, DueDate: due, IsActive: true, IsPublished: true}
	require.NoError(f.t, f.db.Create(&assessment).Error)
	return assessment
}

func (f *reminderFixture) student(name string, channel models.NotificationChannel) models.Student {
	f.t.Helper()
	student := models.Student{Name: name, Email: fmt.Sprintf("%s@example.com", uuid.NewString()[:8]), NotificationChannel: channel}
	require.NoError(f.t, f.db.Create(&student).Error)
	return student
}

func (f *reminderFixture) enroll(courseID, studentID uint) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&models.Enrollment{CourseID: courseID, StudentID: studentID, Status: models.EnrollmentStatusActive, JoinedAt: time.Now().UTC()}).Error)
}

func (f *reminderFixture) submit(assessmentID, studentID uint) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&models.Submission{AssessmentID: assessmentID, StudentID: studentID, Status: models.SubmissionStatusSubmitted}).Error)
}

func (f *reminderFixture) remindersFor(assessmentID uint, status models.ReminderStatus) []models.ScheduledReminder {
	f.t.Helper()
	var reminders []models.ScheduledReminder
	require.NoError(f.t, f.db.Where("assessment_id = ? AND status = ?", assessmentID, status).Order("student_id ASC, policy_id ASC").Find(&reminders).Error)
	return reminders
}

func (f *reminderFixture) count(model interface{}, query string, args ...interface{}) int64 {
	f.t.Helper()
	var total int64
	db := f.db.Model(model)
	if query != "" {
		db = db.Where(query, args...)
	}
	require.NoError(f.t, db.Count(&total).Error)
	return total
}

type recordingAnnouncer struct {
	mu        sync.Mutex
	announced []models.Notification
}

func (r *recordingAnnouncer) Announce(_ context.Context, notification models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announced = append(r.announced, notification)
}

func (r *recordingAnnouncer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.announced)
}

// baseTime is a whole-second UTC instant so stored timestamps compare exactly.
var baseTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
