package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

// ReminderService serves reminder history to students and staff.
type ReminderService interface {
	List(ctx context.Context, req dto.ReminderListRequest) (dto.ReminderListResponse, error)
	ListByStudent(ctx context.Context, studentID uint, status string, page, pageSize int) (dto.ReminderListResponse, error)
}

type reminderService struct {
	repo      repository.ReminderRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReminderService constructs the reminder history service.
func NewReminderService(repo repository.ReminderRepository, validate *validator.Validate, logger zerolog.Logger) ReminderService {
	return &reminderService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "reminder_service").Logger(),
	}
}

func (s *reminderService) ListByStudent(ctx context.Context, studentID uint, status string, page, pageSize int) (dto.ReminderListResponse, error) {
	if studentID == 0 {
		return dto.ReminderListResponse{}, fmt.Errorf("student id is required")
	}
	return s.List(ctx, dto.ReminderListRequest{StudentID: studentID, Status: status, Page: page, PageSize: pageSize})
}

func (s *reminderService) List(ctx context.Context, req dto.ReminderListRequest) (dto.ReminderListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReminderListResponse{}, err
	}

	req.Page = maxInt(req.Page, 1)
	req.PageSize = clampPageSize(req.PageSize)

	filter := repository.ReminderFilter{
		Status:   models.ReminderStatus(req.Status),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.StudentID > 0 {
		filter.StudentID = &req.StudentID
	}
	if req.AssessmentID > 0 {
		filter.AssessmentID = &req.AssessmentID
	}

	reminders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ReminderListResponse{}, fmt.Errorf("list reminders: %w", err)
	}

	items := make([]dto.ReminderResponse, 0, len(reminders))
	for _, reminder := range reminders {
		items = append(items, dto.NewReminderResponse(reminder))
	}

	return dto.ReminderListResponse{Items: items, Pagination: paginationMeta(req.Page, req.PageSize, total)}, nil
}
