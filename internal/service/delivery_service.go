package service

import (
	"context"
	"errors"
	"fmt"
	"math"
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
	"github.com/noah-isme/gema-reminders/pkg/mailer"
)

// DeliveryOptions tunes delivery queue drains.
type DeliveryOptions struct {
	BatchSize     int
	Timeout       time.Duration
	SendTimeout   time.Duration
	BackoffBase   time.Duration
	BackoffFactor float64
	BackoffMax    time.Duration
	StaleAfter    time.Duration
}

// DeliveryService drains the email delivery queue.
type DeliveryService interface {
	Drain(ctx context.Context, now time.Time, batchSize int) (dto.DrainSummary, error)
	List(ctx context.Context, status string, page, pageSize int) (dto.DeliveryJobListResponse, error)
}

type deliveryService struct {
	jobs      repository.DeliveryRepository
	reminders repository.ReminderRepository
	sender    mailer.Sender
	opts      DeliveryOptions
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewDeliveryService constructs the delivery queue drain.
func NewDeliveryService(jobs repository.DeliveryRepository, reminders repository.ReminderRepository, sender mailer.Sender, opts DeliveryOptions, logger zerolog.Logger) DeliveryService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Minute
	}
	if opts.BackoffFactor < 1 {
		opts.BackoffFactor = 2
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = time.Hour
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}
	return &deliveryService{
		jobs:      jobs,
		reminders: reminders,
		sender:    sender,
		opts:      opts,
		logger:    logger.With().Str("component", "delivery_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-reminders/internal/service/delivery"),
	}
}

// BackoffDelay returns base*factor^(attempts-1), capped at max.
func BackoffDelay(attempts uint, base time.Duration, factor float64, max time.Duration) time.Duration {
	if attempts == 0 {
		attempts = 1
	}
	delay := float64(base) * math.Pow(factor, float64(attempts-1))
	if max > 0 && delay > float64(max) {
		return max
	}
	return time.Duration(delay)
}

func (s *deliveryService) Drain(ctx context.Context, now time.Time, batchSize int) (dto.DrainSummary, error) {
	var summary dto.DrainSummary
	if batchSize <= 0 {
		batchSize = s.opts.BatchSize
	}
	now = now.UTC()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	spanCtx, span := s.tracer.Start(ctx, "delivery.drain", trace.WithAttributes(attribute.Int("batch.size", batchSize)))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.DeliveryDuration().Observe(time.Since(start).Seconds())
	}()

	if err := s.sweep(spanCtx, now, batchSize, &summary); err != nil {
		span.RecordError(err)
		return summary, err
	}

	ready, err := s.jobs.ListReady(spanCtx, now, batchSize)
	if err != nil {
		span.RecordError(err)
		return summary, storeError("list ready jobs", err)
	}
	summary.Selected = len(ready)

	for i, candidate := range ready {
		if spanCtx.Err() != nil {
			summary.Deferred += len(ready) - i
			break
		}
		if deferred := s.deliver(spanCtx, candidate.ID, now, &summary); deferred {
			summary.Deferred += len(ready) - i
			break
		}
	}

	if summary.Selected > 0 || summary.Reclaimed > 0 {
		s.logger.Info().
			Int("reclaimed", summary.Reclaimed).
			Int("selected", summary.Selected).
			Int("sent", summary.Sent).
			Int("retried", summary.Retried).
			Int("failed", summary.Failed).
			Int("deferred", summary.Deferred).
			Msg("delivery queue drained")
	}

	return summary, nil
}

// sweep returns processing jobs whose claim expired to the queue.
func (s *deliveryService) sweep(ctx context.Context, now time.Time, limit int, summary *dto.DrainSummary) error {
	stale, err := s.jobs.ListStale(ctx, now.Add(-s.opts.StaleAfter), limit)
	if err != nil {
		return storeError("list stale jobs", err)
	}

	for _, job := range stale {
		const reason = "claim expired before delivery completed"
		logger := s.logger.With().Uint("job_id", job.ID).Uint("attempts", job.Attempts).Logger()
		if !job.HasAttemptsLeft() {
			ok, err := s.jobs.Fail(ctx, job, reason, s.failureAudit(ctx, job, reason))
			if err != nil {
				return storeError("fail stale job", err)
			}
			if ok {
				summary.Failed++
				observability.DeliveryJobs().WithLabelValues("failed").Inc()
				logger.Warn().Msg("stale delivery job out of attempts")
			}
			continue
		}

		ok, err := s.jobs.Retry(ctx, job, now, reason)
		if err != nil {
			return storeError("reclaim job", err)
		}
		if ok {
			summary.Reclaimed++
			observability.DeliveryJobs().WithLabelValues("reclaimed").Inc()
			logger.Warn().Msg("stale delivery job reclaimed")
		}
	}

	return nil
}

// deliver claims and sends one job. It returns true when the drain budget ran out mid-send.
func (s *deliveryService) deliver(ctx context.Context, id uint, now time.Time, summary *dto.DrainSummary) bool {
	job, claimed, err := s.jobs.Claim(ctx, id, now)
	if err != nil {
		summary.Skipped++
		s.logger.Error().Err(storeError("claim job", err)).Uint("job_id", id).Msg("failed to claim delivery job")
		return false
	}
	if !claimed {
		summary.Skipped++
		return false
	}

	logger := s.logger.With().Uint("job_id", job.ID).Uint("attempt", job.Attempts).Logger()

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	sendErr := s.sender.Send(sendCtx, mailer.Message{
		To:      job.Recipient,
		Subject: job.Subject,
		Text:    job.Body,
		HTML:    job.HTMLBody,
	})
	cancel()

	if sendErr == nil {
		ok, err := s.jobs.Complete(ctx, job, now, s.sentAudit(ctx, job))
		switch {
		case err != nil:
			logger.Error().Err(storeError("complete job", err)).Msg("email sent but job completion failed")
		case ok:
			summary.Sent++
			observability.DeliveryJobs().WithLabelValues("sent").Inc()
			logger.Info().Msg("reminder email sent")
		default:
			summary.Skipped++
		}
		return false
	}

	if ctx.Err() != nil {
		logger.Warn().Err(sendErr).Msg("drain budget expired during send; job left for the stale sweep")
		return true
	}

	cause := fmt.Errorf("%w: %w", ErrTransport, sendErr)
	if job.HasAttemptsLeft() && !mailer.IsPermanent(sendErr) {
		next := now.Add(BackoffDelay(job.Attempts, s.opts.BackoffBase, s.opts.BackoffFactor, s.opts.BackoffMax))
		ok, err := s.jobs.Retry(ctx, job, next, cause.Error())
		if err != nil {
			logger.Error().Err(storeError("retry job", err)).Msg("failed to reschedule delivery job")
			return false
		}
		if ok {
			summary.Retried++
			observability.DeliveryJobs().WithLabelValues("retried").Inc()
			logger.Warn().Err(cause).Time("next_attempt", next).Msg("email delivery failed; retry scheduled")
		}
		return false
	}

	ok, err := s.jobs.Fail(ctx, job, cause.Error(), s.failureAudit(ctx, job, cause.Error()))
	if err != nil {
		logger.Error().Err(storeError("fail job", err)).Msg("failed to mark delivery job failed")
		return false
	}
	if ok {
		summary.Failed++
		observability.DeliveryJobs().WithLabelValues("failed").Inc()
		logger.Error().Err(cause).Msg("email delivery failed permanently")
	}
	return false
}

func (s *deliveryService) sentAudit(ctx context.Context, job models.DeliveryJob) *models.AuditEntry {
	entry := s.auditFor(ctx, job, models.AuditActionSent)
	entry.Details["channel"] = string(models.NotificationChannelEmail)
	return entry
}

func (s *deliveryService) failureAudit(ctx context.Context, job models.DeliveryJob, reason string) *models.AuditEntry {
	entry := s.auditFor(ctx, job, models.AuditActionFailed)
	entry.Details["channel"] = string(models.NotificationChannelEmail)
	entry.Details["error"] = reason
	return entry
}

func (s *deliveryService) auditFor(ctx context.Context, job models.DeliveryJob, action models.AuditAction) *models.AuditEntry {
	entry := &models.AuditEntry{
		ReminderID: job.ReminderID,
		Action:     action,
		Details: datatypes.JSONMap{
			"delivery_job_id": job.ID,
			"attempts":        job.Attempts,
		},
	}
	if job.ReminderID != nil {
		reminder, err := s.reminders.GetByID(ctx, *job.ReminderID)
		if err == nil {
			entry.AssessmentID = uintPtr(reminder.AssessmentID)
			entry.StudentID = uintPtr(reminder.StudentID)
		}
	}
	return entry
}

func (s *deliveryService) List(ctx context.Context, status string, page, pageSize int) (dto.DeliveryJobListResponse, error) {
	filter := repository.DeliveryFilter{
		Status:   models.DeliveryStatus(status),
		Page:     maxInt(page, 1),
		PageSize: clampPageSize(pageSize),
	}
	switch filter.Status {
	case "", models.DeliveryStatusPending, models.DeliveryStatusProcessing, models.DeliveryStatusSent, models.DeliveryStatusFailed:
	default:
		return dto.DeliveryJobListResponse{}, errors.New("unknown delivery status")
	}

	jobs, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return dto.DeliveryJobListResponse{}, err
	}

	items := make([]dto.DeliveryJobResponse, 0, len(jobs))
	for _, job := range jobs {
		item := dto.NewDeliveryJobResponse(job)
		item.Recipient = maskEmailAddress(item.Recipient)
		items = append(items, item)
	}
	return dto.DeliveryJobListResponse{Items: items, Pagination: paginationMeta(filter.Page, filter.PageSize, total)}, nil
}
