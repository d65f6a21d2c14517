package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
	"github.com/noah-isme/gema-reminders/internal/utils"
)

// ReminderHandler serves reminder history.
type ReminderHandler struct {
	service service.ReminderService
	logger  zerolog.Logger
}

// NewReminderHandler constructs the reminder handler.
func NewReminderHandler(service service.ReminderService, logger zerolog.Logger) *ReminderHandler {
	return &ReminderHandler{
		service: service,
		logger:  logger.With().Str("component", "reminder_handler").Logger(),
	}
}

// RegisterStudent binds the routes a student uses for their own reminders.
func (h *ReminderHandler) RegisterStudent(router fiber.Router) {
	router.Get("/", h.mine)
}

// RegisterStaff binds the teacher and admin reminder routes.
func (h *ReminderHandler) RegisterStaff(router fiber.Router) {
	router.Get("/reminders", h.list)
	router.Get("/students/:id/reminders", h.byStudent)
}

func (h *ReminderHandler) mine(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	return h.respond(c, dto.ReminderListRequest{StudentID: studentID})
}

func (h *ReminderHandler) byStudent(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	return h.respond(c, dto.ReminderListRequest{StudentID: studentID})
}

func (h *ReminderHandler) list(c *fiber.Ctx) error {
	assessmentID, err := parseQueryUint(c, "assessment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assessment_id")
	}
	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}
	return h.respond(c, dto.ReminderListRequest{AssessmentID: assessmentID, StudentID: studentID})
}

func (h *ReminderHandler) respond(c *fiber.Ctx, req dto.ReminderListRequest) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	req.Page = page
	req.PageSize = pageSize
	req.Status = c.Query("status")

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, response.Items, "reminders", response.Pagination)
}
