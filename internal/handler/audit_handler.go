package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
	"github.com/noah-isme/gema-reminders/internal/utils"
)

// AuditHandler exposes the reminder audit log.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler constructs the audit handler.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register binds the audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	req := dto.AuditListRequest{Action: c.Query("action")}

	var err error
	if req.Page, err = parseQueryInt(c, "page"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if req.PageSize, err = parseQueryInt(c, "page_size"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	if req.ReminderID, err = parseQueryUint(c, "reminder_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid reminder_id")
	}
	if req.AssessmentID, err = parseQueryUint(c, "assessment_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assessment_id")
	}
	if req.StudentID, err = parseQueryUint(c, "student_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, response.Items, "reminder audit log", response.Pagination)
}
