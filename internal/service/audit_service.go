package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

// AuditService exposes the reminder audit log to operators.
type AuditService interface {
	List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error)
}

type auditService struct {
	repo      repository.AuditRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuditService constructs the audit log service.
func NewAuditService(repo repository.AuditRepository, validate *validator.Validate, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuditListResponse{}, err
	}

	req.Page = maxInt(req.Page, 1)
	req.PageSize = clampPageSize(req.PageSize)

	filter := repository.AuditFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Action:   models.AuditAction(strings.TrimSpace(req.Action)),
	}
	if req.ReminderID > 0 {
		filter.ReminderID = &req.ReminderID
	}
	if req.AssessmentID > 0 {
		filter.AssessmentID = &req.AssessmentID
	}
	if req.StudentID > 0 {
		filter.StudentID = &req.StudentID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditListResponse{}, fmt.Errorf("list audit entries: %w", err)
	}

	responses := make([]dto.AuditResponse, 0, len(entries))
	for _, entry := range entries {
		entry.Details = redactDetails(entry.Details)
		responses = append(responses, dto.NewAuditResponse(entry))
	}

	return dto.AuditListResponse{Items: responses, Pagination: paginationMeta(req.Page, req.PageSize, total)}, nil
}
